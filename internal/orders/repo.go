package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
)

// Repository owns the order/check/selection tree. No other component touches
// these rows directly.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderIDByCheck(ctx context.Context, checkID uuid.UUID) (uuid.UUID, error)
	ListActiveForTable(ctx context.Context, tableID uuid.UUID) ([]models.Order, error)
	SaveCheck(ctx context.Context, check *models.Check) error
	SaveSelection(ctx context.Context, selection *models.Selection) error
	SaveCourse(ctx context.Context, course *models.Course) error
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateCheck(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ClaimOperationKey(ctx context.Context, key *models.OperationKey) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Checks", func(db *gorm.DB) *gorm.DB {
			return db.Order("checks.number ASC")
		}).
		Preload("Checks.Selections", func(db *gorm.DB) *gorm.DB {
			return db.Order("selections.created_at ASC")
		}).
		Preload("Courses", func(db *gorm.DB) *gorm.DB {
			return db.Order("courses.idx ASC")
		}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderIDByCheck(ctx context.Context, checkID uuid.UUID) (uuid.UUID, error) {
	var check models.Check
	err := r.db.WithContext(ctx).
		Select("order_id").
		Where("id = ?", checkID).
		First(&check).Error
	if err != nil {
		return uuid.Nil, err
	}
	return check.OrderID, nil
}

func (r *repository) ListActiveForTable(ctx context.Context, tableID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Checks", func(db *gorm.DB) *gorm.DB {
			return db.Order("checks.number ASC")
		}).
		Preload("Checks.Selections").
		Where("table_id = ? AND status NOT IN ?", tableID, []enums.OrderStatus{
			enums.OrderStatusClosed,
			enums.OrderStatusVoided,
		}).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SaveCheck(ctx context.Context, check *models.Check) error {
	return r.db.WithContext(ctx).Save(check).Error
}

func (r *repository) SaveSelection(ctx context.Context, selection *models.Selection) error {
	return r.db.WithContext(ctx).Save(selection).Error
}

func (r *repository) SaveCourse(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Save(course).Error
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateCheck(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Check{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ClaimOperationKey(ctx context.Context, key *models.OperationKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}
