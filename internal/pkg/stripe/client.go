package stripe

import (
	"context"
	"fmt"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Client calls the Stripe API through an owned client instance. The package
// level stripe.Key is never touched.
type Client struct {
	api *client.API
}

type Option func(*stripeapi.BackendConfig)

// WithBackendURL points every backend at url. Used against local fakes.
func WithBackendURL(url string) Option {
	return func(c *stripeapi.BackendConfig) { c.URL = stripeapi.String(url) }
}

// WithMaxRetries overrides the SDK retry count.
func WithMaxRetries(n int64) Option {
	return func(c *stripeapi.BackendConfig) { c.MaxNetworkRetries = stripeapi.Int64(n) }
}

func NewClient(secretKey string, opts ...Option) *Client {
	cfg := &stripeapi.BackendConfig{
		MaxNetworkRetries: stripeapi.Int64(2),
		LeveledLogger:     &stripeapi.LeveledLogger{Level: stripeapi.LevelError},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, cfg),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, cfg),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, cfg),
	}
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Client{api: api}
}

// TransferRequest moves funds to a connected account.
type TransferRequest struct {
	AmountMinor    int64
	Currency       string
	Destination    string
	IdempotencyKey string
	Metadata       map[string]string
}

// CreateTransfer returns the Stripe transfer id.
func (c *Client) CreateTransfer(ctx context.Context, req TransferRequest) (string, error) {
	params := &stripeapi.TransferParams{
		Amount:      stripeapi.Int64(req.AmountMinor),
		Currency:    stripeapi.String(strings.ToLower(req.Currency)),
		Destination: stripeapi.String(req.Destination),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	tr, err := c.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe transfer: %w", err)
	}
	return tr.ID, nil
}

// RefundRequest refunds (part of) a payment intent.
type RefundRequest struct {
	PaymentIntentID string
	AmountMinor     int64
	IdempotencyKey  string
	Metadata        map[string]string
}

// CreateRefund returns the Stripe refund id. A zero amount refunds the full
// remaining charge.
func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (string, error) {
	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(req.PaymentIntentID),
		Reason:        stripeapi.String(string(stripeapi.RefundReasonRequestedByCustomer)),
	}
	if req.AmountMinor > 0 {
		params.Amount = stripeapi.Int64(req.AmountMinor)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	re, err := c.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe refund: %w", err)
	}
	return re.ID, nil
}
