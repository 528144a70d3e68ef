package identity

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/tablewire/pos-engine/pkg/db"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/security"
)

// Service is the staff-backed default Authorizer.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) findStaff(ctx context.Context, staffID uuid.UUID) (*models.Staff, error) {
	var staff models.Staff
	err := s.db.WithContext(ctx).Where("id = ?", staffID).First(&staff).Error
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "staff not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load staff")
	}
	return &staff, nil
}

// HasCapability reports whether the staff member holds the capability.
func (s *Service) HasCapability(ctx context.Context, staffID uuid.UUID, capability enums.Capability) (bool, error) {
	staff, err := s.findStaff(ctx, staffID)
	if err != nil {
		return false, err
	}
	return staff.Capabilities.Has(capability.String()), nil
}

// VerifyPIN checks a manager PIN against the stored argon2id hash.
func (s *Service) VerifyPIN(ctx context.Context, staffID uuid.UUID, pin string) (bool, error) {
	staff, err := s.findStaff(ctx, staffID)
	if err != nil {
		return false, err
	}
	if staff.PinHash == "" {
		return false, nil
	}
	return security.VerifyPIN(pin, staff.PinHash)
}

// Authorize returns Unauthorized unless the staff member holds the
// capability. A nil staff id always fails.
func Authorize(ctx context.Context, auth Authorizer, staffID uuid.UUID, capability enums.Capability) error {
	if staffID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authorizing identity required")
	}
	ok, err := auth.HasCapability(ctx, staffID, capability)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "identity lacks capability "+capability.String())
	}
	return nil
}
