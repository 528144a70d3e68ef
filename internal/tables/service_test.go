package tables

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/migrate"
)

func newTableService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(migrate.All()...))

	return NewService(NewRepository(conn)), conn
}

func seedTableWithStatus(t *testing.T, conn *gorm.DB, number int, status enums.TableStatus) *models.Table {
	t.Helper()
	table := &models.Table{Number: number, Capacity: 4, Status: status}
	require.NoError(t, conn.Create(table).Error)
	return table
}

func TestSetStatusLegalTransitions(t *testing.T) {
	svc, conn := newTableService(t)
	table := seedTableWithStatus(t, conn, 1, enums.TableStatusAvailable)

	for _, status := range []enums.TableStatus{
		enums.TableStatusOccupied,
		enums.TableStatusDirty,
		enums.TableStatusMaintenance,
		enums.TableStatusAvailable,
	} {
		updated, err := svc.SetStatus(context.Background(), table.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, updated.Status)
	}
}

func TestSetStatusRejectsIllegalMove(t *testing.T) {
	svc, conn := newTableService(t)
	table := seedTableWithStatus(t, conn, 1, enums.TableStatusAvailable)

	// An available table was never seated, so there is nothing to bus.
	_, err := svc.SetStatus(context.Background(), table.ID, enums.TableStatusDirty)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
}

func TestSetStatusSameStatusIsNoOp(t *testing.T) {
	svc, conn := newTableService(t)
	table := seedTableWithStatus(t, conn, 1, enums.TableStatusReserved)

	updated, err := svc.SetStatus(context.Background(), table.ID, enums.TableStatusReserved)
	require.NoError(t, err)
	assert.Equal(t, enums.TableStatusReserved, updated.Status)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	svc, conn := newTableService(t)
	table := seedTableWithStatus(t, conn, 1, enums.TableStatusAvailable)

	_, err := svc.SetStatus(context.Background(), table.ID, enums.TableStatus("flooded"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSetStatusTableNotFound(t *testing.T) {
	svc, _ := newTableService(t)

	_, err := svc.SetStatus(context.Background(), uuid.New(), enums.TableStatusOccupied)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestListOrdersByNumber(t *testing.T) {
	svc, conn := newTableService(t)
	seedTableWithStatus(t, conn, 7, enums.TableStatusAvailable)
	seedTableWithStatus(t, conn, 3, enums.TableStatusAvailable)
	seedTableWithStatus(t, conn, 5, enums.TableStatusReserved)

	rows, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 3, rows[0].Number)
	assert.Equal(t, 5, rows[1].Number)
	assert.Equal(t, 7, rows[2].Number)
}
