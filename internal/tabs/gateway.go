package tabs

import (
	"context"

	"github.com/tablewire/pos-engine/pkg/money"
)

// Authorization is a hold placed on a card before any items exist.
type Authorization struct {
	AuthorizationID string
	AmountCents     money.Cents
}

// CaptureResult is a completed charge against an authorization.
type CaptureResult struct {
	CaptureID   string
	AmountCents money.Cents
}

// PaymentGateway abstracts the card processor. Calls are bounded by the
// configured timeouts; a timed-out call is treated as failed, never as
// success.
type PaymentGateway interface {
	Authorize(ctx context.Context, amount money.Cents, reference string) (*Authorization, error)
	Capture(ctx context.Context, authorizationID string, amount money.Cents) (*CaptureResult, error)
}
