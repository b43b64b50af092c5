package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// defaultTimeout bounds every outbound call to a remote provider. Gateway
// APIs that have not answered within this window are treated as failed; the
// local attempt stays initiated and is safe to retry.
const defaultTimeout = 10 * time.Second

// RESTConfig configures a RESTProvider.
type RESTConfig struct {
	// Name identifies the provider in merchant records, e.g. "razorpay".
	Name string
	// BaseURL is the provider's API root, e.g. "https://api.razorpay.com/v1".
	BaseURL string
	// KeyID and KeySecret are the basic-auth credentials.
	KeyID     string
	KeySecret string
	// Timeout overrides defaultTimeout when positive.
	Timeout time.Duration
}

var _ Provider = (*RESTProvider)(nil)

// RESTProvider talks to a hosted-checkout payment gateway over its REST API.
// The create-order call registers the pending payment and returns the handle
// the frontend needs to open the provider's checkout.
type RESTProvider struct {
	cfg    RESTConfig
	client *http.Client
}

// NewRESTProvider creates a RESTProvider for the given configuration.
func NewRESTProvider(cfg RESTConfig) *RESTProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &RESTProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Name returns the provider identifier used in payment records.
func (p *RESTProvider) Name() string { return p.cfg.Name }

type createOrderBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// CreateOrder registers a pending payment with the provider. The amount is
// sent in the smallest currency unit, as gateway APIs conventionally expect.
func (p *RESTProvider) CreateOrder(ctx context.Context, req CreateOrderRequest) (*RemoteOrder, error) {
	body := createOrderBody{
		Amount:   req.Amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency: req.Currency,
		Receipt:  req.MerchantReference,
		Notes:    req.Notes,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshal create order body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/orders", bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrap(err, "build create order request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(p.cfg.KeyID, p.cfg.KeySecret)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call gateway")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(ErrGateway, "create order: status %d: %s",
			resp.StatusCode, string(respBody))
	}

	var out createOrderResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, errors.Wrapf(ErrGateway, "unparseable create order response: %v", err)
	}

	return &RemoteOrder{
		Gateway:     p.cfg.Name,
		OrderID:     out.ID,
		Amount:      decimal.NewFromInt(out.Amount).Div(decimal.NewFromInt(100)),
		Currency:    out.Currency,
		RedirectURL: out.RedirectURL,
	}, nil
}
