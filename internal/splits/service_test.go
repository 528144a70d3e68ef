package splits

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/internal/tables"
	"github.com/tablewire/pos-engine/pkg/config"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/migrate"
	"github.com/tablewire/pos-engine/pkg/money"
	"github.com/tablewire/pos-engine/pkg/outbox"
)

type grantAll struct{}

func (grantAll) HasCapability(context.Context, uuid.UUID, enums.Capability) (bool, error) {
	return true, nil
}

func (grantAll) VerifyPIN(context.Context, uuid.UUID, string) (bool, error) { return true, nil }

type denyAll struct{}

func (denyAll) HasCapability(context.Context, uuid.UUID, enums.Capability) (bool, error) {
	return false, nil
}

func (denyAll) VerifyPIN(context.Context, uuid.UUID, string) (bool, error) { return false, nil }

func newSplitService(t *testing.T) (*Service, *orders.Store, *gorm.DB) {
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

	repo := orders.NewRepository(conn)
	tablesSvc := tables.NewService(tables.NewRepository(conn))
	store := orders.NewStore(conn, repo, outbox.NewService(nil), tablesSvc,
		config.PolicyConfig{TaxRateBPS: 825, VacateClosesEmptyOrder: true}, nil)
	return NewService(store, repo, grantAll{}, nil, nil), store, conn
}

func seedFloorTable(t *testing.T, conn *gorm.DB, number int) *models.Table {
	t.Helper()
	table := &models.Table{Number: number, Capacity: 4, Status: enums.TableStatusAvailable}
	require.NoError(t, conn.Create(table).Error)
	return table
}

type line struct {
	name    string
	price   money.Cents
	seat    *int
	taxable bool
}

func seedOrderWithLines(t *testing.T, store *orders.Store, lines []line) (*models.Order, uuid.UUID) {
	t.Helper()

	order, err := store.CreateOrder(context.Background(), orders.CreateOrderInput{
		Type:     enums.OrderTypeTakeout,
		ServerID: uuid.New(),
	})
	require.NoError(t, err)
	checkID := order.Checks[0].ID

	seeded, err := store.Mutate(context.Background(), order.ID, func(tx *gorm.DB, o *models.Order) error {
		for _, l := range lines {
			sel := models.Selection{
				CheckID:        checkID,
				Name:           l.name,
				UnitPriceCents: l.price,
				Quantity:       1,
				Seat:           l.seat,
				Taxable:        l.taxable,
			}
			if err := tx.Create(&sel).Error; err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return seeded, checkID
}

func seat(n int) *int { return &n }

func TestSplitEqualPreservesOrderTotal(t *testing.T) {
	svc, store, _ := newSplitService(t)
	order, checkID := seedOrderWithLines(t, store, []line{
		{name: "tasting menu", price: 2800, taxable: false},
	})
	require.EqualValues(t, 2800, order.TotalCents)

	split, err := svc.SplitEqual(context.Background(), checkID, SplitEqualInput{
		OperationID: "op-1",
		Ways:        3,
	})
	require.NoError(t, err)

	source := split.CheckByID(checkID)
	assert.Equal(t, enums.CheckStatusSplit, source.Status)

	var shares []money.Cents
	for i := range split.Checks {
		c := &split.Checks[i]
		if c.ID == checkID {
			continue
		}
		shares = append(shares, c.TotalCents)
	}
	// The cent remainder lands on the first share.
	require.Equal(t, []money.Cents{934, 933, 933}, shares)
	assert.EqualValues(t, 2800, split.TotalCents)
}

func TestSplitEqualWithTaxedLines(t *testing.T) {
	svc, store, _ := newSplitService(t)
	order, checkID := seedOrderWithLines(t, store, []line{
		{name: "steak", price: 999, taxable: true},
	})
	// 8.25% of 9.99 rounds to 82 cents.
	require.EqualValues(t, 1081, order.TotalCents)

	split, err := svc.SplitEqual(context.Background(), checkID, SplitEqualInput{
		OperationID: "op-1",
		Ways:        2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1081, split.TotalCents)
}

func TestSplitEqualWaysOutOfRange(t *testing.T) {
	svc, store, _ := newSplitService(t)
	_, checkID := seedOrderWithLines(t, store, []line{
		{name: "soup", price: 600, taxable: false},
	})

	for _, ways := range []int{0, 1, money.MaxSplitWays + 1} {
		_, err := svc.SplitEqual(context.Background(), checkID, SplitEqualInput{
			OperationID: "op-1",
			Ways:        ways,
		})
		require.Error(t, err)
		assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	}
}

func TestSplitEqualEmptyCheckRejected(t *testing.T) {
	svc, store, _ := newSplitService(t)
	order, err := store.CreateOrder(context.Background(), orders.CreateOrderInput{
		Type:     enums.OrderTypeTakeout,
		ServerID: uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.SplitEqual(context.Background(), order.Checks[0].ID, SplitEqualInput{
		OperationID: "op-1",
		Ways:        2,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSplitBySeatGroupsSeatsAndShared(t *testing.T) {
	svc, store, _ := newSplitService(t)
	order, checkID := seedOrderWithLines(t, store, []line{
		{name: "pasta", price: 1400, seat: seat(1), taxable: true},
		{name: "salmon", price: 2200, seat: seat(2), taxable: true},
		{name: "bread basket", price: 600, taxable: true},
	})
	before := order.TotalCents

	split, err := svc.SplitBySeat(context.Background(), checkID, SplitBySeatInput{OperationID: "op-1"})
	require.NoError(t, err)

	assert.Equal(t, enums.CheckStatusSplit, split.CheckByID(checkID).Status)
	require.Len(t, split.Checks, 4)
	assert.EqualValues(t, before, split.TotalCents)

	// Seat checks in seat order, then the shared check.
	assert.Equal(t, "pasta", split.Checks[1].Selections[0].Name)
	assert.Equal(t, "salmon", split.Checks[2].Selections[0].Name)
	assert.Equal(t, "bread basket", split.Checks[3].Selections[0].Name)
}

func TestSplitBySeatSingleSeatRejected(t *testing.T) {
	svc, store, _ := newSplitService(t)
	_, checkID := seedOrderWithLines(t, store, []line{
		{name: "pasta", price: 1400, seat: seat(1), taxable: true},
		{name: "wine", price: 900, seat: seat(1), taxable: true},
	})

	_, err := svc.SplitBySeat(context.Background(), checkID, SplitBySeatInput{OperationID: "op-1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSplitByItemExactPartition(t *testing.T) {
	svc, store, _ := newSplitService(t)
	order, checkID := seedOrderWithLines(t, store, []line{
		{name: "burger", price: 1250, taxable: true},
		{name: "fries", price: 450, taxable: true},
		{name: "shake", price: 650, taxable: true},
	})
	before := order.TotalCents
	sels := order.CheckByID(checkID).Selections

	split, err := svc.SplitByItem(context.Background(), checkID, SplitByItemInput{
		OperationID: "op-1",
		Groups: [][]uuid.UUID{
			{sels[0].ID, sels[1].ID},
			{sels[2].ID},
		},
	})
	require.NoError(t, err)
	require.Len(t, split.Checks, 3)
	assert.EqualValues(t, before, split.TotalCents)
	assert.Equal(t, enums.CheckStatusSplit, split.CheckByID(checkID).Status)
}

func TestSplitByItemIncompletePartition(t *testing.T) {
	svc, store, _ := newSplitService(t)
	order, checkID := seedOrderWithLines(t, store, []line{
		{name: "burger", price: 1250, taxable: true},
		{name: "fries", price: 450, taxable: true},
		{name: "shake", price: 650, taxable: true},
	})
	sels := order.CheckByID(checkID).Selections

	_, err := svc.SplitByItem(context.Background(), checkID, SplitByItemInput{
		OperationID: "op-1",
		Groups: [][]uuid.UUID{
			{sels[0].ID},
			{sels[1].ID},
		},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeIncompleteSplit))
}

func TestSplitByItemDuplicateAssignment(t *testing.T) {
	svc, store, _ := newSplitService(t)
	order, checkID := seedOrderWithLines(t, store, []line{
		{name: "burger", price: 1250, taxable: true},
		{name: "fries", price: 450, taxable: true},
	})
	sels := order.CheckByID(checkID).Selections

	_, err := svc.SplitByItem(context.Background(), checkID, SplitByItemInput{
		OperationID: "op-1",
		Groups: [][]uuid.UUID{
			{sels[0].ID, sels[1].ID},
			{sels[1].ID},
		},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeIncompleteSplit))
}

func TestSplitBlockedOnDiscountedCheck(t *testing.T) {
	svc, store, _ := newSplitService(t)
	order, checkID := seedOrderWithLines(t, store, []line{
		{name: "burger", price: 1250, seat: seat(1), taxable: true},
		{name: "fries", price: 450, seat: seat(2), taxable: true},
	})
	sels := order.CheckByID(checkID).Selections

	discountType := enums.DiscountTypePercent
	_, err := store.Mutate(context.Background(), order.ID, func(tx *gorm.DB, o *models.Order) error {
		return tx.Model(&models.Check{}).Where("id = ?", checkID).Updates(map[string]any{
			"discount_type":   discountType,
			"discount_value":  "10",
			"discount_reason": "regular",
		}).Error
	})
	require.NoError(t, err)

	_, err = svc.SplitBySeat(context.Background(), checkID, SplitBySeatInput{OperationID: "op-1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.SplitByItem(context.Background(), checkID, SplitByItemInput{
		OperationID: "op-2",
		Groups:      [][]uuid.UUID{{sels[0].ID}, {sels[1].ID}},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	// An equal split still works: the shares carry the discounted total.
	_, err = svc.SplitEqual(context.Background(), checkID, SplitEqualInput{OperationID: "op-3", Ways: 2})
	require.NoError(t, err)
}

func TestTransferCheckJoinsTablesOpenOrder(t *testing.T) {
	svc, store, conn := newSplitService(t)
	table := seedFloorTable(t, conn, 9)

	target, err := store.CreateOrder(context.Background(), orders.CreateOrderInput{
		Type:     enums.OrderTypeDineIn,
		TableID:  &table.ID,
		ServerID: uuid.New(),
	})
	require.NoError(t, err)

	source, checkID := seedOrderWithLines(t, store, []line{
		{name: "martini", price: 1500, taxable: true},
	})

	// Add a second check so the source is not emptied by the move.
	_, err = store.AppendCheck(context.Background(), source.ID)
	require.NoError(t, err)

	updatedSource, updatedTarget, err := svc.TransferCheck(context.Background(), checkID, table.ID, TransferCheckInput{
		OperationID:  "op-1",
		AuthorizedBy: uuid.New(),
	})
	require.NoError(t, err)

	assert.Equal(t, target.ID, updatedTarget.ID)
	assert.Nil(t, updatedSource.CheckByID(checkID))
	assert.Equal(t, enums.OrderStatusOpen, updatedSource.Status)
	moved := updatedTarget.CheckByID(checkID)
	require.NotNil(t, moved)
	assert.Equal(t, 2, moved.Number)
	assert.EqualValues(t, 0, updatedSource.TotalCents)
	assert.Equal(t, updatedTarget.TotalCents, moved.TotalCents)
}

func TestTransferCheckToEmptyTableOpensOrderAndClosesSource(t *testing.T) {
	svc, store, conn := newSplitService(t)
	table := seedFloorTable(t, conn, 4)
	_, checkID := seedOrderWithLines(t, store, []line{
		{name: "martini", price: 1500, taxable: true},
	})

	source, target, err := svc.TransferCheck(context.Background(), checkID, table.ID, TransferCheckInput{
		OperationID:  "op-1",
		AuthorizedBy: uuid.New(),
	})
	require.NoError(t, err)

	require.NotNil(t, target.TableID)
	assert.Equal(t, table.ID, *target.TableID)
	moved := target.CheckByID(checkID)
	require.NotNil(t, moved)
	assert.Equal(t, target.TotalCents, moved.TotalCents)

	// The move emptied the source order, which closes per the vacate policy.
	assert.Equal(t, enums.OrderStatusClosed, source.Status)
	assert.Empty(t, source.Checks)

	var seated models.Table
	require.NoError(t, conn.First(&seated, "id = ?", table.ID).Error)
	assert.Equal(t, enums.TableStatusOccupied, seated.Status)
}

func TestTransferCheckOwnTableRejected(t *testing.T) {
	svc, store, conn := newSplitService(t)
	table := seedFloorTable(t, conn, 6)

	order, err := store.CreateOrder(context.Background(), orders.CreateOrderInput{
		Type:     enums.OrderTypeDineIn,
		TableID:  &table.ID,
		ServerID: uuid.New(),
	})
	require.NoError(t, err)

	_, _, err = svc.TransferCheck(context.Background(), order.Checks[0].ID, table.ID, TransferCheckInput{
		OperationID:  "op-1",
		AuthorizedBy: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestTransferCheckRequiresCapability(t *testing.T) {
	svc, store, _ := newSplitService(t)
	svc.auth = denyAll{}
	_, checkID := seedOrderWithLines(t, store, []line{
		{name: "martini", price: 1500, taxable: true},
	})

	_, _, err := svc.TransferCheck(context.Background(), checkID, uuid.New(), TransferCheckInput{
		OperationID:  "op-1",
		AuthorizedBy: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}
