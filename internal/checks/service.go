package checks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/internal/catalog"
	"github.com/tablewire/pos-engine/internal/identity"
	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/metrics"
	"github.com/tablewire/pos-engine/pkg/money"
)

// Service applies line-level mutations to checks. Every operation is keyed
// by a client operation id; replays return the committed result without a
// second application.
type Service struct {
	store   *orders.Store
	repo    orders.Repository
	catalog catalog.Gateway
	auth    identity.Authorizer
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

func NewService(store *orders.Store, repo orders.Repository, cat catalog.Gateway, auth identity.Authorizer, m *metrics.EngineMetrics, logg *logger.Logger) *Service {
	return &Service{
		store:   store,
		repo:    repo,
		catalog: cat,
		auth:    auth,
		metrics: m,
		logg:    logg,
	}
}

// AddSelectionInput describes a line item to add to a check.
type AddSelectionInput struct {
	OperationID   string
	MenuItemID    uuid.UUID
	Quantity      int
	ModifierNames []string
	Seat          *int
	CourseIndex   *int
	Notes         *string
}

// AddSelection snapshots the item's current price onto a new selection.
// Unavailable items are rejected before anything is written.
func (s *Service) AddSelection(ctx context.Context, checkID uuid.UUID, input AddSelectionInput) (*models.Order, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.Seat != nil && *input.Seat < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seat must be at least 1")
	}
	if input.CourseIndex != nil && *input.CourseIndex < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course index must be at least 1")
	}

	item, err := s.catalog.ResolveItem(ctx, input.MenuItemID)
	if err != nil {
		return nil, err
	}
	if !item.Available {
		return nil, pkgerrors.New(pkgerrors.CodeItemUnavailable, "menu item is not orderable").
			WithDetails(map[string]any{"menu_item_id": item.ItemID})
	}
	modifiers, err := item.PickModifiers(input.ModifierNames)
	if err != nil {
		return nil, err
	}

	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "selection.add"); err != nil {
			return err
		}
		check, err := s.openCheck(order, checkID)
		if err != nil {
			return err
		}

		if input.CourseIndex != nil {
			if err := s.ensureCourse(ctx, tx, order, *input.CourseIndex); err != nil {
				return err
			}
		}

		itemID := item.ItemID
		selection := models.Selection{
			CheckID:        check.ID,
			MenuItemID:     &itemID,
			Name:           item.Name,
			UnitPriceCents: item.PriceCents,
			Quantity:       input.Quantity,
			Modifiers:      modifiers,
			Taxable:        true,
			Seat:           input.Seat,
			CourseIndex:    input.CourseIndex,
			Notes:          input.Notes,
		}
		if err := s.repo.WithTx(tx).SaveSelection(ctx, &selection); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save selection")
		}
		return nil
	})
	s.observe("selection.add", err)
	return order, err
}

// StatusChangeInput authorizes a void or comp. Reason is mandatory; the
// authorizing staff member must hold the matching capability.
type StatusChangeInput struct {
	OperationID  string
	Reason       string
	AuthorizedBy uuid.UUID
}

// VoidSelection marks a selection voided. The row keeps its price for loss
// reporting; only the derived totals drop it.
func (s *Service) VoidSelection(ctx context.Context, checkID, selectionID uuid.UUID, input StatusChangeInput) (*models.Order, error) {
	return s.changeStatus(ctx, checkID, selectionID, input, enums.SelectionStatusVoided, enums.CapabilityVoidSelection, "selection.void")
}

// CompSelection marks a selection comped. Comped lines stay visible on the
// check at zero contribution.
func (s *Service) CompSelection(ctx context.Context, checkID, selectionID uuid.UUID, input StatusChangeInput) (*models.Order, error) {
	return s.changeStatus(ctx, checkID, selectionID, input, enums.SelectionStatusComped, enums.CapabilityCompSelection, "selection.comp")
}

func (s *Service) changeStatus(ctx context.Context, checkID, selectionID uuid.UUID, input StatusChangeInput, target enums.SelectionStatus, capability enums.Capability, kind string) (*models.Order, error) {
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}
	if err := identity.Authorize(ctx, s.auth, input.AuthorizedBy, capability); err != nil {
		return nil, err
	}

	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, kind); err != nil {
			return err
		}
		check, err := s.openCheck(order, checkID)
		if err != nil {
			return err
		}
		selection := check.SelectionByID(selectionID)
		if selection == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "selection not found")
		}
		if selection.Status != enums.SelectionStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "selection is already "+selection.Status.String())
		}

		now := time.Now().UTC()
		reason := input.Reason
		authorizedBy := input.AuthorizedBy
		selection.Status = target
		selection.StatusReason = &reason
		selection.AuthorizedByID = &authorizedBy
		selection.StatusAt = &now
		if err := s.repo.WithTx(tx).SaveSelection(ctx, selection); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save selection")
		}
		return nil
	})
	s.observe(kind, err)
	return order, err
}

// ApplyDiscountInput describes a check-level discount. Value is a percentage
// for percent discounts and a currency amount for fixed ones.
type ApplyDiscountInput struct {
	OperationID  string
	Type         enums.DiscountType
	Value        decimal.Decimal
	Reason       string
	AuthorizedBy uuid.UUID
}

// ApplyDiscount stores the discount terms on the check. The amount itself is
// derived at recompute time, so later voids and comps rescale it; a fixed
// discount never pushes the total below zero. Applying again replaces the
// prior discount.
func (s *Service) ApplyDiscount(ctx context.Context, checkID uuid.UUID, input ApplyDiscountInput) (*models.Order, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	}
	if input.Value.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount value must not be negative")
	}
	if input.Type == enums.DiscountTypePercent && input.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percent discount cannot exceed 100")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}
	if err := identity.Authorize(ctx, s.auth, input.AuthorizedBy, enums.CapabilityApplyDiscount); err != nil {
		return nil, err
	}

	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "check.discount"); err != nil {
			return err
		}
		check, err := s.openCheck(order, checkID)
		if err != nil {
			return err
		}
		return s.repo.WithTx(tx).UpdateCheck(ctx, check.ID, map[string]any{
			"discount_type":   input.Type,
			"discount_value":  input.Value.String(),
			"discount_reason": input.Reason,
		})
	})
	s.observe("check.discount", err)
	return order, err
}

// SettleCheckInput records payment against the full balance of a check.
type SettleCheckInput struct {
	OperationID string
	PaymentRef  string
	AmountCents money.Cents
}

// SettleCheck marks the check settled. The tendered amount must match the
// balance due exactly; partial payment is a split, not a settle.
func (s *Service) SettleCheck(ctx context.Context, checkID uuid.UUID, input SettleCheckInput) (*models.Order, error) {
	if input.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}

	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "check.settle"); err != nil {
			return err
		}
		check, err := s.openCheck(order, checkID)
		if err != nil {
			return err
		}
		if input.AmountCents != check.BalanceDue() {
			return pkgerrors.New(pkgerrors.CodeValidation, "tendered amount does not match balance due").
				WithDetails(map[string]any{"balance_due_cents": check.BalanceDue()})
		}

		now := time.Now().UTC()
		return s.repo.WithTx(tx).UpdateCheck(ctx, check.ID, map[string]any{
			"status":      enums.CheckStatusSettled,
			"settled_at":  now,
			"payment_ref": input.PaymentRef,
		})
	})
	s.observe("check.settle", err)
	return order, err
}

// openCheck returns the check when it still accepts mutations.
func (s *Service) openCheck(order *models.Order, checkID uuid.UUID) (*models.Check, error) {
	check := order.CheckByID(checkID)
	if check == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "check not found")
	}
	if check.Status != enums.CheckStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "check is "+check.Status.String()+" and immutable")
	}
	return check, nil
}

// ensureCourse creates the course row the first time a selection references
// its index.
func (s *Service) ensureCourse(ctx context.Context, tx *gorm.DB, order *models.Order, index int) error {
	for i := range order.Courses {
		if order.Courses[i].Index == index {
			return nil
		}
	}
	course := models.Course{
		OrderID: order.ID,
		Index:   index,
		Status:  enums.CourseStatusHeld,
	}
	if err := s.repo.WithTx(tx).SaveCourse(ctx, &course); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create course")
	}
	return nil
}

func (s *Service) observe(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveMutation(operation, outcome)
}
