package gateway

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// refPrefix tags every merchant transaction reference issued by this service.
const refPrefix = "CNPY"

// ErrMalformedReference is returned when a merchant reference cannot be
// parsed back into an attempt id.
var ErrMalformedReference = errors.New("malformed merchant reference")

// NewMerchantReference encodes the attempt id into the merchant transaction
// reference sent to the gateway: "CNPY-<attemptID>-<suffix>". The random
// suffix keeps retried registrations for the same attempt distinct on the
// provider side.
func NewMerchantReference(attemptID string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", refPrefix, attemptID, suffix)
}

// ParseMerchantReference recovers the attempt id embedded in a merchant
// reference. The attempt id is a UUID and therefore contains hyphens itself,
// so the reference is split on the fixed prefix and the final suffix segment.
func ParseMerchantReference(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, refPrefix+"-")
	if !ok {
		return "", errors.Wrapf(ErrMalformedReference, "%q", ref)
	}

	cut := strings.LastIndex(rest, "-")
	if cut <= 0 {
		return "", errors.Wrapf(ErrMalformedReference, "%q", ref)
	}
	attemptID := rest[:cut]

	if _, err := uuid.Parse(attemptID); err != nil {
		return "", errors.Wrapf(ErrMalformedReference, "%q", ref)
	}
	return attemptID, nil
}
