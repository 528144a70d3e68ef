package tabs

import (
	"context"

	"github.com/google/uuid"

	"github.com/tablewire/pos-engine/pkg/money"
)

// LocalGateway approves every call. It stands in for a card processor in
// development and venues that settle tabs outside the engine.
type LocalGateway struct{}

func NewLocalGateway() *LocalGateway {
	return &LocalGateway{}
}

func (g *LocalGateway) Authorize(ctx context.Context, amount money.Cents, reference string) (*Authorization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Authorization{
		AuthorizationID: "local-auth-" + uuid.NewString(),
		AmountCents:     amount,
	}, nil
}

func (g *LocalGateway) Capture(ctx context.Context, authorizationID string, amount money.Cents) (*CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &CaptureResult{
		CaptureID:   "local-capture-" + uuid.NewString(),
		AmountCents: amount,
	}, nil
}
