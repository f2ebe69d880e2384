package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is an in-memory Gateway for development and tests.  Intents
// start in requires_payment_method and move to succeeded through Confirm.
type MockGateway struct {
	mu      sync.RWMutex
	intents map[string]*Intent
	// FailCreate makes CreatePaymentIntent return this error when set.
	FailCreate error
}

// NewMockGateway returns an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{intents: make(map[string]*Intent)}
}

func (g *MockGateway) CreatePaymentIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	if g.FailCreate != nil {
		return nil, g.FailCreate
	}
	if req.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	id := "pi_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		AmountCents:  req.AmountCents,
		Currency:     req.Currency,
		Status:       StatusRequiresPaymentMethod,
		Metadata:     meta,
	}
	g.mu.Lock()
	g.intents[id] = in
	g.mu.Unlock()
	cp := *in
	return &cp, nil
}

func (g *MockGateway) GetPaymentIntent(_ context.Context, id string) (*Intent, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	in, ok := g.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	cp := *in
	return &cp, nil
}

// Confirm marks the intent as paid, as the provider's embedded form would.
func (g *MockGateway) Confirm(id string) error {
	return g.setStatus(id, StatusSucceeded)
}

// Cancel marks the intent as canceled.
func (g *MockGateway) Cancel(id string) error {
	return g.setStatus(id, StatusCanceled)
}

func (g *MockGateway) setStatus(id, status string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	in, ok := g.intents[id]
	if !ok {
		return ErrIntentNotFound
	}
	in.Status = status
	return nil
}

func (g *MockGateway) Name() string { return "mock" }
