package gateway

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerchantReference_RoundTrip(t *testing.T) {
	attemptID := uuid.New().String()

	ref := NewMerchantReference(attemptID)
	assert.True(t, strings.HasPrefix(ref, "CNPY-"))

	got, err := ParseMerchantReference(ref)
	require.NoError(t, err)
	assert.Equal(t, attemptID, got)
}

func TestMerchantReference_SuffixesDiffer(t *testing.T) {
	attemptID := uuid.New().String()
	assert.NotEqual(t, NewMerchantReference(attemptID), NewMerchantReference(attemptID))
}

func TestParseMerchantReference_Malformed(t *testing.T) {
	tests := []string{
		"",
		"CNPY-",
		"CNPY--ABC123",
		"ORDER-123-XYZ",
		"CNPY-not-a-uuid-ABC123",
		uuid.New().String(),
	}

	for _, ref := range tests {
		_, err := ParseMerchantReference(ref)
		assert.ErrorIs(t, err, ErrMalformedReference, "ref %q", ref)
	}
}
