package identity

import (
	"context"

	"github.com/google/uuid"

	"github.com/tablewire/pos-engine/pkg/enums"
)

// Authorizer answers capability questions for void/comp/discount/override
// gates. The engine consumes this contract; session authentication lives
// with the host application.
type Authorizer interface {
	HasCapability(ctx context.Context, staffID uuid.UUID, capability enums.Capability) (bool, error)
	VerifyPIN(ctx context.Context, staffID uuid.UUID, pin string) (bool, error)
}
