// Package payment talks to the external payment provider: it creates
// payment intents for a checkout and reads their status back.
package payment

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidAmount   = errors.New("payment amount must be positive")
	ErrIntentNotFound  = errors.New("payment intent not found")
	ErrMalformedSecret = errors.New("malformed client secret")
)

// Intent statuses used by the checkout flow.
const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusProcessing            = "processing"
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"
)

// Metadata keys written on every intent.  Finalization reads them back to
// make sure an intent pays for the booking it is presented with.
const (
	MetaShowtimeID = "showtime_id"
	MetaSeats      = "seats"
	MetaDiscounts  = "discounts"
	MetaUserID     = "user_id"
)

// IntentRequest describes the amount to collect for one checkout.
type IntentRequest struct {
	AmountCents int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// Intent is the provider's view of a payment.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
	Metadata     map[string]string
}

// Succeeded reports whether the payment has been captured.
func (i *Intent) Succeeded() bool { return i != nil && i.Status == StatusSucceeded }

// Gateway is implemented by each payment provider.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	Name() string
}

// IntentIDFromClientSecret derives the intent id from a client secret of
// the form "<id>_secret_<token>".
func IntentIDFromClientSecret(secret string) (string, error) {
	id, _, ok := strings.Cut(secret, "_secret_")
	if !ok || id == "" {
		return "", ErrMalformedSecret
	}
	return id, nil
}
