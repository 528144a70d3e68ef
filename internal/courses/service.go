package courses

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/metrics"
)

// KitchenNotifier tells the kitchen a course was released. Notification is
// best effort; the fire is committed either way.
type KitchenNotifier interface {
	CourseFired(ctx context.Context, orderID uuid.UUID, index int) error
}

// Service sequences courses within an order. Courses fire in index order and
// never unfire.
type Service struct {
	store    *orders.Store
	repo     orders.Repository
	notifier KitchenNotifier
	metrics  *metrics.EngineMetrics
	logg     *logger.Logger
}

func NewService(store *orders.Store, repo orders.Repository, notifier KitchenNotifier, m *metrics.EngineMetrics, logg *logger.Logger) *Service {
	return &Service{
		store:    store,
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		logg:     logg,
	}
}

// FireCourse releases a held course to the kitchen. Lower-index courses must
// already be fired; the first fire moves the order into preparation.
func (s *Service) FireCourse(ctx context.Context, orderID uuid.UUID, index int) (*models.Order, error) {
	order, err := s.store.MutateEvent(ctx, orderID, enums.EventCourseFired, func(tx *gorm.DB, order *models.Order) error {
		course := courseByIndex(order, index)
		if course == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		if course.Status != enums.CourseStatusHeld {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "course is already "+course.Status.String())
		}
		for i := range order.Courses {
			earlier := &order.Courses[i]
			if earlier.Index < index && earlier.Status == enums.CourseStatusHeld {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "an earlier course is still held").
					WithDetails(map[string]any{"held_course_index": earlier.Index})
			}
		}

		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()
		course.Status = enums.CourseStatusFired
		course.FiredAt = &now
		if err := repo.SaveCourse(ctx, course); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fire course")
		}

		if order.Status == enums.OrderStatusOpen {
			err := repo.UpdateOrder(ctx, order.ID, map[string]any{
				"status": enums.OrderStatusInPreparation,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order status")
			}
		}
		return nil
	})
	s.observe("course.fire", err)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if notifyErr := s.notifier.CourseFired(ctx, orderID, index); notifyErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "kitchen notification failed: "+notifyErr.Error())
		}
	}
	return order, nil
}

// MarkServed records that a fired course hit the table. Serving the last
// course moves the order to ready.
func (s *Service) MarkServed(ctx context.Context, orderID uuid.UUID, index int) (*models.Order, error) {
	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		course := courseByIndex(order, index)
		if course == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
		}
		if course.Status != enums.CourseStatusFired {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "course is "+course.Status.String()+", not fired")
		}

		repo := s.repo.WithTx(tx)
		now := time.Now().UTC()
		course.Status = enums.CourseStatusServed
		course.ServedAt = &now
		if err := repo.SaveCourse(ctx, course); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "serve course")
		}

		allServed := true
		for i := range order.Courses {
			if order.Courses[i].Status != enums.CourseStatusServed {
				allServed = false
				break
			}
		}
		if allServed && order.Status == enums.OrderStatusInPreparation {
			err := repo.UpdateOrder(ctx, order.ID, map[string]any{
				"status": enums.OrderStatusReady,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order status")
			}
		}
		return nil
	})
	s.observe("course.serve", err)
	return order, err
}

// AssignInput moves a selection to a different seat or course.
type AssignInput struct {
	OperationID string
	Seat        *int
	CourseIndex *int
}

// AssignSelection updates a selection's seat and course while the kitchen
// has not seen it. Selections cannot move into a course that already fired.
func (s *Service) AssignSelection(ctx context.Context, checkID, selectionID uuid.UUID, input AssignInput) (*models.Order, error) {
	if input.Seat == nil && input.CourseIndex == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to assign")
	}
	if input.Seat != nil && *input.Seat < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seat must be at least 1")
	}
	if input.CourseIndex != nil && *input.CourseIndex < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course index must be at least 1")
	}

	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "selection.assign"); err != nil {
			return err
		}
		check := order.CheckByID(checkID)
		if check == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "check not found")
		}
		selection := check.SelectionByID(selectionID)
		if selection == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "selection not found")
		}
		if selection.Status != enums.SelectionStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "selection is "+selection.Status.String())
		}

		repo := s.repo.WithTx(tx)
		if input.CourseIndex != nil {
			target := courseByIndex(order, *input.CourseIndex)
			if target == nil {
				created := models.Course{
					OrderID: order.ID,
					Index:   *input.CourseIndex,
					Status:  enums.CourseStatusHeld,
				}
				if err := repo.SaveCourse(ctx, &created); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create course")
				}
			} else if target.Status != enums.CourseStatusHeld {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "course already fired").
					WithDetails(map[string]any{"course_index": *input.CourseIndex})
			}
			selection.CourseIndex = input.CourseIndex
		}
		if input.Seat != nil {
			selection.Seat = input.Seat
		}
		if err := repo.SaveSelection(ctx, selection); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save selection")
		}
		return nil
	})
	s.observe("selection.assign", err)
	return order, err
}

func courseByIndex(order *models.Order, index int) *models.Course {
	for i := range order.Courses {
		if order.Courses[i].Index == index {
			return &order.Courses[i]
		}
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
