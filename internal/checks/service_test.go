package checks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tablewire/pos-engine/internal/catalog"
	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/internal/tables"
	"github.com/tablewire/pos-engine/pkg/config"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/migrate"
	"github.com/tablewire/pos-engine/pkg/money"
	"github.com/tablewire/pos-engine/pkg/outbox"
	"github.com/tablewire/pos-engine/pkg/types"
)

type stubCatalog struct {
	items map[uuid.UUID]*catalog.ResolvedItem
}

func (s *stubCatalog) ResolveItem(_ context.Context, itemID uuid.UUID) (*catalog.ResolvedItem, error) {
	item, ok := s.items[itemID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
	}
	return item, nil
}

type stubAuthorizer struct {
	granted map[enums.Capability]bool
}

func (s *stubAuthorizer) HasCapability(_ context.Context, _ uuid.UUID, capability enums.Capability) (bool, error) {
	return s.granted[capability], nil
}

func (s *stubAuthorizer) VerifyPIN(_ context.Context, _ uuid.UUID, _ string) (bool, error) {
	return true, nil
}

type fixture struct {
	svc     *Service
	store   *orders.Store
	catalog *stubCatalog
	auth    *stubAuthorizer
	checkID uuid.UUID
	orderID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
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
	policy := config.PolicyConfig{TaxRateBPS: 825}
	store := orders.NewStore(conn, repo, outbox.NewService(nil), tablesSvc, policy, nil)

	cat := &stubCatalog{items: map[uuid.UUID]*catalog.ResolvedItem{}}
	auth := &stubAuthorizer{granted: map[enums.Capability]bool{}}
	svc := NewService(store, repo, cat, auth, nil, nil)

	order, err := store.CreateOrder(context.Background(), orders.CreateOrderInput{
		Type:     enums.OrderTypeTakeout,
		ServerID: uuid.New(),
	})
	require.NoError(t, err)

	return &fixture{
		svc:     svc,
		store:   store,
		catalog: cat,
		auth:    auth,
		checkID: order.Checks[0].ID,
		orderID: order.ID,
	}
}

func (f *fixture) seedItem(price money.Cents, modifiers types.Modifiers, available bool) uuid.UUID {
	itemID := uuid.New()
	f.catalog.items[itemID] = &catalog.ResolvedItem{
		ItemID:     itemID,
		Name:       "menu item",
		PriceCents: price,
		Modifiers:  modifiers,
		Available:  available,
	}
	return itemID
}

func TestAddSelectionSnapshotsPriceAndModifiers(t *testing.T) {
	f := newFixture(t)
	itemID := f.seedItem(1295, types.Modifiers{{Name: "extra cheese", DeltaCents: 100}}, true)

	order, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID:   "op-1",
		MenuItemID:    itemID,
		Quantity:      2,
		ModifierNames: []string{"extra cheese"},
	})
	require.NoError(t, err)

	check := order.CheckByID(f.checkID)
	require.Len(t, check.Selections, 1)
	sel := check.Selections[0]
	assert.EqualValues(t, 1295, sel.UnitPriceCents)
	assert.Equal(t, 2, sel.Quantity)
	assert.EqualValues(t, 2790, sel.ExtendedPrice())

	// 8.25% of 27.90 rounds to 230 cents.
	assert.EqualValues(t, 2790, check.SubtotalCents)
	assert.EqualValues(t, 230, check.TaxCents)
	assert.EqualValues(t, 3020, check.TotalCents)
}

func TestAddSelectionLaterPriceChangeDoesNotTouchCheck(t *testing.T) {
	f := newFixture(t)
	itemID := f.seedItem(1000, nil, true)

	_, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1",
		MenuItemID:  itemID,
		Quantity:    1,
	})
	require.NoError(t, err)

	f.catalog.items[itemID].PriceCents = 9999

	order, err := f.store.GetOrder(context.Background(), f.orderID)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, order.CheckByID(f.checkID).Selections[0].UnitPriceCents)
}

func TestAddSelectionRejectsUnavailableItem(t *testing.T) {
	f := newFixture(t)
	itemID := f.seedItem(500, nil, false)

	_, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1",
		MenuItemID:  itemID,
		Quantity:    1,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeItemUnavailable))
}

func TestAddSelectionRejectsUnknownModifier(t *testing.T) {
	f := newFixture(t)
	itemID := f.seedItem(500, nil, true)

	_, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID:   "op-1",
		MenuItemID:    itemID,
		Quantity:      1,
		ModifierNames: []string{"no such thing"},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestAddSelectionReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	itemID := f.seedItem(750, nil, true)

	input := AddSelectionInput{OperationID: "op-same", MenuItemID: itemID, Quantity: 1}
	first, err := f.svc.AddSelection(context.Background(), f.checkID, input)
	require.NoError(t, err)
	second, err := f.svc.AddSelection(context.Background(), f.checkID, input)
	require.NoError(t, err)

	require.Len(t, second.CheckByID(f.checkID).Selections, 1)
	assert.Equal(t, first.TotalCents, second.TotalCents)
	assert.Equal(t, first.Revision, second.Revision)
}

func TestVoidSelectionRequiresCapability(t *testing.T) {
	f := newFixture(t)
	itemID := f.seedItem(900, nil, true)

	order, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1", MenuItemID: itemID, Quantity: 1,
	})
	require.NoError(t, err)
	selectionID := order.CheckByID(f.checkID).Selections[0].ID

	_, err = f.svc.VoidSelection(context.Background(), f.checkID, selectionID, StatusChangeInput{
		OperationID:  "op-2",
		Reason:       "customer changed mind",
		AuthorizedBy: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestVoidSelectionKeepsPriceDropsTotal(t *testing.T) {
	f := newFixture(t)
	f.auth.granted[enums.CapabilityVoidSelection] = true
	itemID := f.seedItem(900, nil, true)

	order, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1", MenuItemID: itemID, Quantity: 1,
	})
	require.NoError(t, err)
	selectionID := order.CheckByID(f.checkID).Selections[0].ID

	voided, err := f.svc.VoidSelection(context.Background(), f.checkID, selectionID, StatusChangeInput{
		OperationID:  "op-2",
		Reason:       "customer changed mind",
		AuthorizedBy: uuid.New(),
	})
	require.NoError(t, err)

	check := voided.CheckByID(f.checkID)
	sel := check.SelectionByID(selectionID)
	assert.Equal(t, enums.SelectionStatusVoided, sel.Status)
	assert.EqualValues(t, 900, sel.UnitPriceCents)
	require.NotNil(t, sel.StatusReason)
	assert.Equal(t, "customer changed mind", *sel.StatusReason)
	assert.EqualValues(t, 0, check.TotalCents)
	assert.EqualValues(t, 0, voided.TotalCents)
}

func TestVoidSelectionRequiresReason(t *testing.T) {
	f := newFixture(t)
	f.auth.granted[enums.CapabilityVoidSelection] = true

	_, err := f.svc.VoidSelection(context.Background(), f.checkID, uuid.New(), StatusChangeInput{
		OperationID:  "op-2",
		AuthorizedBy: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestVoidAlreadyVoidedConflicts(t *testing.T) {
	f := newFixture(t)
	f.auth.granted[enums.CapabilityVoidSelection] = true
	itemID := f.seedItem(900, nil, true)

	order, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1", MenuItemID: itemID, Quantity: 1,
	})
	require.NoError(t, err)
	selectionID := order.CheckByID(f.checkID).Selections[0].ID

	_, err = f.svc.VoidSelection(context.Background(), f.checkID, selectionID, StatusChangeInput{
		OperationID: "op-2", Reason: "spill", AuthorizedBy: uuid.New(),
	})
	require.NoError(t, err)

	_, err = f.svc.VoidSelection(context.Background(), f.checkID, selectionID, StatusChangeInput{
		OperationID: "op-3", Reason: "again", AuthorizedBy: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestCompSelectionZeroesContribution(t *testing.T) {
	f := newFixture(t)
	f.auth.granted[enums.CapabilityCompSelection] = true
	itemID := f.seedItem(1800, nil, true)

	order, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1", MenuItemID: itemID, Quantity: 1,
	})
	require.NoError(t, err)
	selectionID := order.CheckByID(f.checkID).Selections[0].ID

	comped, err := f.svc.CompSelection(context.Background(), f.checkID, selectionID, StatusChangeInput{
		OperationID: "op-2", Reason: "manager comp", AuthorizedBy: uuid.New(),
	})
	require.NoError(t, err)

	check := comped.CheckByID(f.checkID)
	assert.Equal(t, enums.SelectionStatusComped, check.SelectionByID(selectionID).Status)
	assert.EqualValues(t, 0, check.TotalCents)
}

func TestApplyDiscountPercentRescalesWithLaterVoids(t *testing.T) {
	f := newFixture(t)
	f.auth.granted[enums.CapabilityApplyDiscount] = true
	f.auth.granted[enums.CapabilityVoidSelection] = true
	itemID := f.seedItem(1000, nil, true)

	_, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1", MenuItemID: itemID, Quantity: 1,
	})
	require.NoError(t, err)
	order, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-2", MenuItemID: itemID, Quantity: 1,
	})
	require.NoError(t, err)

	discounted, err := f.svc.ApplyDiscount(context.Background(), f.checkID, ApplyDiscountInput{
		OperationID:  "op-3",
		Type:         enums.DiscountTypePercent,
		Value:        decimal.NewFromInt(10),
		Reason:       "happy hour",
		AuthorizedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 200, discounted.CheckByID(f.checkID).DiscountCents)

	// Voiding a line rescales the derived discount, no stored amount to fix up.
	selectionID := order.CheckByID(f.checkID).Selections[0].ID
	voided, err := f.svc.VoidSelection(context.Background(), f.checkID, selectionID, StatusChangeInput{
		OperationID: "op-4", Reason: "wrong item", AuthorizedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 100, voided.CheckByID(f.checkID).DiscountCents)
}

func TestApplyDiscountPercentOver100Rejected(t *testing.T) {
	f := newFixture(t)
	f.auth.granted[enums.CapabilityApplyDiscount] = true

	_, err := f.svc.ApplyDiscount(context.Background(), f.checkID, ApplyDiscountInput{
		OperationID:  "op-1",
		Type:         enums.DiscountTypePercent,
		Value:        decimal.NewFromInt(150),
		Reason:       "typo",
		AuthorizedBy: uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestApplyDiscountFixedClampsAtZero(t *testing.T) {
	f := newFixture(t)
	f.auth.granted[enums.CapabilityApplyDiscount] = true
	itemID := f.seedItem(500, nil, true)

	_, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1", MenuItemID: itemID, Quantity: 1,
	})
	require.NoError(t, err)

	order, err := f.svc.ApplyDiscount(context.Background(), f.checkID, ApplyDiscountInput{
		OperationID:  "op-2",
		Type:         enums.DiscountTypeFixed,
		Value:        decimal.NewFromInt(20),
		Reason:       "voucher",
		AuthorizedBy: uuid.New(),
	})
	require.NoError(t, err)

	check := order.CheckByID(f.checkID)
	assert.EqualValues(t, 500, check.DiscountCents)
	assert.Equal(t, check.TaxCents, check.TotalCents)
}

func TestSettleCheckExactAmount(t *testing.T) {
	f := newFixture(t)
	itemID := f.seedItem(1000, nil, true)

	order, err := f.svc.AddSelection(context.Background(), f.checkID, AddSelectionInput{
		OperationID: "op-1", MenuItemID: itemID, Quantity: 1,
	})
	require.NoError(t, err)
	total := order.CheckByID(f.checkID).TotalCents

	_, err = f.svc.SettleCheck(context.Background(), f.checkID, SettleCheckInput{
		OperationID: "op-2",
		PaymentRef:  "cash-001",
		AmountCents: total - 1,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	settled, err := f.svc.SettleCheck(context.Background(), f.checkID, SettleCheckInput{
		OperationID: "op-3",
		PaymentRef:  "cash-001",
		AmountCents: total,
	})
	require.NoError(t, err)

	check := settled.CheckByID(f.checkID)
	assert.Equal(t, enums.CheckStatusSettled, check.Status)
	assert.EqualValues(t, 0, check.BalanceDue())
}
