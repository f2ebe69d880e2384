package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// StripeGateway implements Gateway using Stripe payment intents.
type StripeGateway struct {
	currency string
}

// StripeConfig holds the Stripe credentials.
type StripeConfig struct {
	SecretKey string
	Currency  string
}

// NewStripeGateway creates a Stripe gateway.  The API key is set globally,
// as stripe-go expects.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripe.Key = cfg.SecretKey
	cur := cfg.Currency
	if cur == "" {
		cur = "eur"
	}
	return &StripeGateway{currency: cur}, nil
}

// CreatePaymentIntent opens a payment intent with automatic payment methods.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	cur := req.Currency
	if cur == "" {
		cur = g.currency
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(cur),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: make(map[string]string, len(req.Metadata)),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

// GetPaymentIntent retrieves a payment intent by id.
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	if id == "" {
		return nil, ErrIntentNotFound
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) Name() string { return "stripe" }

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
	}
}
