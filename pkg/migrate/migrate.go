package migrate

import (
	"context"

	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/logger"
)

// All lists every model the engine owns, in dependency order.
func All() []any {
	return []any{
		&models.Table{},
		&models.Order{},
		&models.Check{},
		&models.Selection{},
		&models.Course{},
		&models.MenuItem{},
		&models.Staff{},
		&models.OperationKey{},
		&models.OutboxEvent{},
	}
}

// AutoRun applies the schema for every engine model.
func AutoRun(ctx context.Context, conn *gorm.DB, logg *logger.Logger) error {
	if err := conn.WithContext(ctx).AutoMigrate(All()...); err != nil {
		return err
	}
	if logg != nil {
		logg.Info(ctx, "schema migration complete")
	}
	return nil
}
