package splits

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/internal/identity"
	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/metrics"
	"github.com/tablewire/pos-engine/pkg/money"
)

// Service reshapes checks without changing what the table owes. Every split
// retires the source check and accounts for its value on the checks it
// produces; the order total before and after is identical to the cent.
type Service struct {
	store   *orders.Store
	repo    orders.Repository
	auth    identity.Authorizer
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

func NewService(store *orders.Store, repo orders.Repository, auth identity.Authorizer, m *metrics.EngineMetrics, logg *logger.Logger) *Service {
	return &Service{
		store:   store,
		repo:    repo,
		auth:    auth,
		metrics: m,
		logg:    logg,
	}
}

// SplitEqualInput asks for the check to be divided into equal ways.
type SplitEqualInput struct {
	OperationID string
	Ways        int
}

// SplitEqual replaces the check with n checks of equal value. Each new check
// carries a single share line covering its slice of the already-taxed total;
// the cent remainder lands on the first share.
func (s *Service) SplitEqual(ctx context.Context, checkID uuid.UUID, input SplitEqualInput) (*models.Order, error) {
	if input.Ways < 2 || input.Ways > money.MaxSplitWays {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("ways must be between 2 and %d", money.MaxSplitWays))
	}

	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "split.equal"); err != nil {
			return err
		}
		check, err := s.splittableCheck(order, checkID)
		if err != nil {
			return err
		}
		if check.TotalCents <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "check has nothing to split")
		}

		shares, err := money.SplitEven(check.TotalCents, input.Ways)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "split check total")
		}

		repo := s.repo.WithTx(tx)
		number := maxCheckNumber(order)
		for i, share := range shares {
			number++
			newCheck := models.Check{
				OrderID: order.ID,
				Number:  number,
				Selections: []models.Selection{{
					Name:           fmt.Sprintf("Split %d of %d, check %d", i+1, input.Ways, check.Number),
					UnitPriceCents: share,
					Quantity:       1,
					Taxable:        false,
				}},
			}
			if err := repo.SaveCheck(ctx, &newCheck); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create split check")
			}
		}
		return s.retireSource(ctx, tx, check)
	})
	s.observe("split.equal", err)
	return order, err
}

// SplitBySeatInput asks for the check to be regrouped by seat.
type SplitBySeatInput struct {
	OperationID string
}

// SplitBySeat moves each seat's selections onto its own new check. Lines
// with no seat assignment land together on one shared check. Discounted
// checks cannot be regrouped; remove the discount first.
func (s *Service) SplitBySeat(ctx context.Context, checkID uuid.UUID, input SplitBySeatInput) (*models.Order, error) {
	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "split.seat"); err != nil {
			return err
		}
		check, err := s.splittableCheck(order, checkID)
		if err != nil {
			return err
		}
		if check.DiscountType != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "remove the check discount before splitting by line")
		}

		bySeat := make(map[int][]*models.Selection)
		var shared []*models.Selection
		for i := range check.Selections {
			sel := &check.Selections[i]
			if sel.Seat == nil {
				shared = append(shared, sel)
				continue
			}
			bySeat[*sel.Seat] = append(bySeat[*sel.Seat], sel)
		}

		groups := len(bySeat)
		if len(shared) > 0 {
			groups++
		}
		if groups < 2 {
			return pkgerrors.New(pkgerrors.CodeValidation, "check does not span multiple seats")
		}

		seats := make([]int, 0, len(bySeat))
		for seat := range bySeat {
			seats = append(seats, seat)
		}
		sort.Ints(seats)

		for _, seat := range seats {
			if err := s.moveToNewCheck(ctx, tx, order, bySeat[seat]); err != nil {
				return err
			}
		}
		if len(shared) > 0 {
			if err := s.moveToNewCheck(ctx, tx, order, shared); err != nil {
				return err
			}
		}
		return s.retireSource(ctx, tx, check)
	})
	s.observe("split.seat", err)
	return order, err
}

// SplitByItemInput partitions the check's selections into explicit groups.
type SplitByItemInput struct {
	OperationID string
	Groups      [][]uuid.UUID
}

// SplitByItem moves each group of selections onto its own new check. The
// groups must cover every selection on the check exactly once.
func (s *Service) SplitByItem(ctx context.Context, checkID uuid.UUID, input SplitByItemInput) (*models.Order, error) {
	if len(input.Groups) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least two groups required")
	}

	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "split.item"); err != nil {
			return err
		}
		check, err := s.splittableCheck(order, checkID)
		if err != nil {
			return err
		}
		if check.DiscountType != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "remove the check discount before splitting by line")
		}

		assigned := make(map[uuid.UUID]bool, len(check.Selections))
		groups := make([][]*models.Selection, 0, len(input.Groups))
		for _, ids := range input.Groups {
			if len(ids) == 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "empty split group")
			}
			group := make([]*models.Selection, 0, len(ids))
			for _, id := range ids {
				sel := check.SelectionByID(id)
				if sel == nil {
					return pkgerrors.New(pkgerrors.CodeIncompleteSplit, "selection does not belong to the check").
						WithDetails(map[string]any{"selection_id": id})
				}
				if assigned[id] {
					return pkgerrors.New(pkgerrors.CodeIncompleteSplit, "selection assigned to more than one group").
						WithDetails(map[string]any{"selection_id": id})
				}
				assigned[id] = true
				group = append(group, sel)
			}
			groups = append(groups, group)
		}
		if len(assigned) != len(check.Selections) {
			missing := make([]uuid.UUID, 0)
			for i := range check.Selections {
				if !assigned[check.Selections[i].ID] {
					missing = append(missing, check.Selections[i].ID)
				}
			}
			return pkgerrors.New(pkgerrors.CodeIncompleteSplit, "groups do not cover every selection").
				WithDetails(map[string]any{"unassigned_selection_ids": missing})
		}

		for _, group := range groups {
			if err := s.moveToNewCheck(ctx, tx, order, group); err != nil {
				return err
			}
		}
		return s.retireSource(ctx, tx, check)
	})
	s.observe("split.item", err)
	return order, err
}

// TransferCheckInput moves a check to another table.
type TransferCheckInput struct {
	OperationID  string
	AuthorizedBy uuid.UUID
}

// TransferCheck reassigns the check to the target table's open order,
// creating a fresh order there when the table has none. The check is
// renumbered after the target's existing checks; both orders are mutated and
// resynced in one transaction. A source order left with no checks is closed
// per the vacate policy.
func (s *Service) TransferCheck(ctx context.Context, checkID, targetTableID uuid.UUID, input TransferCheckInput) (source *models.Order, target *models.Order, err error) {
	if err := identity.Authorize(ctx, s.auth, input.AuthorizedBy, enums.CapabilityTransferCheck); err != nil {
		return nil, nil, err
	}

	sourceOrderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, nil, err
	}
	targetOrderID, err := s.resolveTargetOrder(ctx, sourceOrderID, targetTableID)
	if err != nil {
		return nil, nil, err
	}

	source, target, err = s.store.MutatePair(ctx, sourceOrderID, targetOrderID, func(tx *gorm.DB, src, dst *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "check.transfer"); err != nil {
			return err
		}
		check := src.CheckByID(checkID)
		if check == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "check not found")
		}
		if check.Status != enums.CheckStatusOpen {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "check is "+check.Status.String()+" and cannot move")
		}
		err := s.repo.WithTx(tx).UpdateCheck(ctx, check.ID, map[string]any{
			"order_id": dst.ID,
			"number":   maxCheckNumber(dst) + 1,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move check")
		}

		if len(src.Checks) == 1 {
			return s.store.CloseEmptiedTx(ctx, tx, src)
		}
		return nil
	})
	s.observe("check.transfer", err)
	return source, target, err
}

// resolveTargetOrder finds the active order seated at the table, or opens a
// fresh one carrying the source order's server and device.
func (s *Service) resolveTargetOrder(ctx context.Context, sourceOrderID, targetTableID uuid.UUID) (uuid.UUID, error) {
	active, err := s.store.ListActiveOrdersForTable(ctx, targetTableID)
	if err != nil {
		return uuid.Nil, err
	}
	if len(active) > 0 {
		if active[0].ID == sourceOrderID {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "check is already seated at the target table")
		}
		return active[0].ID, nil
	}

	src, err := s.store.GetOrder(ctx, sourceOrderID)
	if err != nil {
		return uuid.Nil, err
	}
	created, err := s.store.CreateOrder(ctx, orders.CreateOrderInput{
		Type:     enums.OrderTypeDineIn,
		TableID:  &targetTableID,
		ServerID: src.ServerID,
		DeviceID: src.DeviceID,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

// splittableCheck returns the check when it can still be reshaped.
func (s *Service) splittableCheck(order *models.Order, checkID uuid.UUID) (*models.Check, error) {
	check := order.CheckByID(checkID)
	if check == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "check not found")
	}
	if check.Status != enums.CheckStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "check is "+check.Status.String()+" and cannot be split")
	}
	if check.TabStatus == enums.TabStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "close the tab before splitting the check")
	}
	return check, nil
}

// moveToNewCheck creates a fresh check on the order and reparents the
// selections onto it.
func (s *Service) moveToNewCheck(ctx context.Context, tx *gorm.DB, order *models.Order, selections []*models.Selection) error {
	repo := s.repo.WithTx(tx)
	newCheck := models.Check{
		OrderID: order.ID,
		Number:  maxCheckNumber(order) + 1,
	}
	if err := repo.SaveCheck(ctx, &newCheck); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create split check")
	}
	order.Checks = append(order.Checks, newCheck)
	for _, sel := range selections {
		sel.CheckID = newCheck.ID
		if err := repo.SaveSelection(ctx, sel); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move selection")
		}
	}
	return nil
}

// retireSource marks the split source. Its value now lives on the new
// checks; the rollup skips it.
func (s *Service) retireSource(ctx context.Context, tx *gorm.DB, check *models.Check) error {
	err := s.repo.WithTx(tx).UpdateCheck(ctx, check.ID, map[string]any{
		"status": enums.CheckStatusSplit,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire split source")
	}
	return nil
}

func maxCheckNumber(order *models.Order) int {
	max := 0
	for i := range order.Checks {
		if order.Checks[i].Number > max {
			max = order.Checks[i].Number
		}
	}
	return max
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
