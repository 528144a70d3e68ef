package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/internal/tables"
	"github.com/tablewire/pos-engine/pkg/config"
	dbpkg "github.com/tablewire/pos-engine/pkg/db"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/outbox"
)

// ErrAlreadyApplied signals that an operation key was claimed by an earlier
// run of the same request. The surrounding transaction is rolled back and
// the caller receives the current committed state instead.
var ErrAlreadyApplied = errors.New("operation already applied")

// Store is the single owner of the order/check/selection tree. Every
// mutation goes through Mutate so totals are recomputed, the revision is
// bumped, and a delta event is queued in one place.
type Store struct {
	db     *gorm.DB
	repo   Repository
	outbox *outbox.Service
	tables *tables.Service
	locks  *orderLocks
	policy config.PolicyConfig
	logg   *logger.Logger
}

func NewStore(db *gorm.DB, repo Repository, ob *outbox.Service, tbls *tables.Service, policy config.PolicyConfig, logg *logger.Logger) *Store {
	return &Store{
		db:     db,
		repo:   repo,
		outbox: ob,
		tables: tbls,
		locks:  newOrderLocks(),
		policy: policy,
		logg:   logg,
	}
}

// TaxRateBPS exposes the venue tax rate applied during recompute.
func (s *Store) TaxRateBPS() int {
	return s.policy.TaxRateBPS
}

// CreateOrderInput carries the identity context for a new order.
type CreateOrderInput struct {
	Type     enums.OrderType
	TableID  *uuid.UUID
	ServerID uuid.UUID
	DeviceID string
}

// CreateOrder opens an order with exactly one empty check. Dine-in orders
// require a table and occupy it.
func (s *Store) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	if input.ServerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "server identity required")
	}
	if input.Type.RequiresTable() && input.TableID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dine-in orders require a table")
	}

	var created *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if input.TableID != nil {
			if err := s.tables.SetStatusTx(ctx, tx, *input.TableID, enums.TableStatusOccupied); err != nil {
				return err
			}
		}

		order := &models.Order{
			Type:     input.Type,
			TableID:  input.TableID,
			Status:   enums.OrderStatusOpen,
			ServerID: input.ServerID,
			DeviceID: input.DeviceID,
			Revision: 1,
			Checks:   []models.Check{{Number: 1}},
		}
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		loaded, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		created = loaded

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType: enums.EventOrderCreated,
			OrderID:   loaded.ID,
			Revision:  loaded.Revision,
			Data:      loaded,
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, created.ID.String()), "order created")
	}
	return created, nil
}

// GetOrder returns the committed order tree.
func (s *Store) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// ListActiveOrdersForTable returns the open orders seated at a table.
func (s *Store) ListActiveOrdersForTable(ctx context.Context, tableID uuid.UUID) ([]models.Order, error) {
	rows, err := s.repo.ListActiveForTable(ctx, tableID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders for table")
	}
	return rows, nil
}

// OrderIDForCheck resolves the owning order of a check.
func (s *Store) OrderIDForCheck(ctx context.Context, checkID uuid.UUID) (uuid.UUID, error) {
	orderID, err := s.repo.FindOrderIDByCheck(ctx, checkID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "check not found")
		}
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve check")
	}
	return orderID, nil
}

// Mutate applies fn to the order under the per-order lock, then recomputes
// totals, bumps the revision, and queues an order.updated delta. fn receives
// the freshly loaded order and persists its own row changes through tx.
func (s *Store) Mutate(ctx context.Context, orderID uuid.UUID, fn func(tx *gorm.DB, order *models.Order) error) (*models.Order, error) {
	return s.MutateEvent(ctx, orderID, enums.EventOrderUpdated, fn)
}

// MutateEvent is Mutate with a caller-chosen delta event type.
func (s *Store) MutateEvent(ctx context.Context, orderID uuid.UUID, eventType enums.EventType, fn func(tx *gorm.DB, order *models.Order) error) (*models.Order, error) {
	entry := s.locks.acquire(orderID)
	defer s.locks.release(orderID, entry)

	var result *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is "+order.Status.String()+" and immutable")
		}

		priorRevision := order.Revision
		if err := fn(tx, order); err != nil {
			return err
		}

		// fn may have inserted or moved rows; derive totals from a clean load.
		updated, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		recomputeOrder(updated, s.policy.TaxRateBPS)

		for i := range updated.Checks {
			check := &updated.Checks[i]
			err := repo.UpdateCheck(ctx, check.ID, map[string]any{
				"subtotal_cents": check.SubtotalCents,
				"discount_cents": check.DiscountCents,
				"tax_cents":      check.TaxCents,
				"total_cents":    check.TotalCents,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist check totals")
			}
		}

		updated.Revision = priorRevision + 1
		err = repo.UpdateOrder(ctx, orderID, map[string]any{
			"total_cents": updated.TotalCents,
			"revision":    updated.Revision,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order totals")
		}

		result = updated
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType: eventType,
			OrderID:   orderID,
			Revision:  updated.Revision,
			Data:      updated,
		})
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyApplied) {
			// Idempotent replay: the original run already committed.
			return s.GetOrder(ctx, orderID)
		}
		return nil, err
	}
	return result, nil
}

// MutatePair locks two orders in deterministic id order and applies fn to
// both under one transaction. Used for cross-order moves (check transfer).
func (s *Store) MutatePair(ctx context.Context, sourceID, targetID uuid.UUID, fn func(tx *gorm.DB, source, target *models.Order) error) (*models.Order, *models.Order, error) {
	if sourceID == targetID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "source and target orders are the same")
	}

	first, second := sourceID, targetID
	if second.String() < first.String() {
		first, second = second, first
	}
	firstEntry := s.locks.acquire(first)
	defer s.locks.release(first, firstEntry)
	secondEntry := s.locks.acquire(second)
	defer s.locks.release(second, secondEntry)

	var outSource, outTarget *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		source, err := repo.FindByID(ctx, sourceID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source order")
		}
		target, err := repo.FindByID(ctx, targetID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load target order")
		}
		if source.Status.IsTerminal() || target.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move checks on a closed order")
		}

		sourceRev, targetRev := source.Revision, target.Revision
		if err := fn(tx, source, target); err != nil {
			return err
		}

		for _, side := range []struct {
			id       uuid.UUID
			revision int64
			out      **models.Order
		}{
			{sourceID, sourceRev, &outSource},
			{targetID, targetRev, &outTarget},
		} {
			updated, err := repo.FindByID(ctx, side.id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
			}
			recomputeOrder(updated, s.policy.TaxRateBPS)
			for i := range updated.Checks {
				check := &updated.Checks[i]
				err := repo.UpdateCheck(ctx, check.ID, map[string]any{
					"subtotal_cents": check.SubtotalCents,
					"discount_cents": check.DiscountCents,
					"tax_cents":      check.TaxCents,
					"total_cents":    check.TotalCents,
				})
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist check totals")
				}
			}
			updated.Revision = side.revision + 1
			err = repo.UpdateOrder(ctx, side.id, map[string]any{
				"total_cents": updated.TotalCents,
				"revision":    updated.Revision,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order totals")
			}
			*side.out = updated

			err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType: enums.EventOrderUpdated,
				OrderID:   side.id,
				Revision:  updated.Revision,
				Data:      updated,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyApplied) {
			src, getErr := s.GetOrder(ctx, sourceID)
			if getErr != nil {
				return nil, nil, getErr
			}
			dst, getErr := s.GetOrder(ctx, targetID)
			if getErr != nil {
				return nil, nil, getErr
			}
			return src, dst, nil
		}
		return nil, nil, err
	}
	return outSource, outTarget, nil
}

// AppendCheck adds an empty check to an open order.
func (s *Store) AppendCheck(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		next := 0
		for i := range order.Checks {
			if order.Checks[i].Number > next {
				next = order.Checks[i].Number
			}
		}
		check := models.Check{OrderID: order.ID, Number: next + 1}
		if err := tx.WithContext(ctx).Create(&check).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append check")
		}
		return nil
	})
}

// CloseOrder closes the order once every check is settled with zero balance
// due, and vacates the table.
func (s *Store) CloseOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.MutateEvent(ctx, orderID, enums.EventOrderClosed, func(tx *gorm.DB, order *models.Order) error {
		for i := range order.Checks {
			if order.Checks[i].BalanceDue() != 0 {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "check has balance due").
					WithDetails(map[string]any{"check_id": order.Checks[i].ID})
			}
		}

		now := time.Now().UTC()
		err := s.repo.WithTx(tx).UpdateOrder(ctx, order.ID, map[string]any{
			"status":    enums.OrderStatusClosed,
			"closed_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close order")
		}

		return s.vacateIfLastTx(ctx, tx, order)
	})
}

// CloseEmptiedTx closes an order whose last check was transferred away and
// vacates its table per policy. Runs inside the caller's mutation
// transaction; the vacate policy gates the close itself.
func (s *Store) CloseEmptiedTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if !s.policy.VacateClosesEmptyOrder {
		return nil
	}
	now := time.Now().UTC()
	err := s.repo.WithTx(tx).UpdateOrder(ctx, order.ID, map[string]any{
		"status":    enums.OrderStatusClosed,
		"closed_at": now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close emptied order")
	}
	return s.vacateIfLastTx(ctx, tx, order)
}

// vacateIfLastTx marks the order's table dirty when no other active order is
// seated there.
func (s *Store) vacateIfLastTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.TableID == nil || !s.policy.VacateClosesEmptyOrder {
		return nil
	}
	remaining, err := s.repo.WithTx(tx).ListActiveForTable(ctx, *order.TableID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check table occupancy")
	}
	others := 0
	for i := range remaining {
		if remaining[i].ID != order.ID {
			others++
		}
	}
	if others == 0 {
		if err := s.tables.SetStatusTx(ctx, tx, *order.TableID, enums.TableStatusDirty); err != nil {
			return err
		}
	}
	return nil
}

// ClaimOperation records a client operation id for a check inside tx.
// Returns ErrAlreadyApplied when the key was claimed by a previous run, in
// which case the whole mutation must roll back.
func ClaimOperation(ctx context.Context, tx *gorm.DB, checkID uuid.UUID, operationID, kind string) error {
	if operationID == "" {
		return nil
	}
	key := models.OperationKey{
		CheckID:     checkID,
		OperationID: operationID,
		Kind:        kind,
	}
	if err := tx.WithContext(ctx).Create(&key).Error; err != nil {
		if dbpkg.IsUniqueViolation(err) {
			return ErrAlreadyApplied
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim operation key")
	}
	return nil
}
