package tabs

import (
	"context"
	"testing"
	"time"

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

// fakeGateway records calls and can be told to fail or stall. onCapture runs
// before a successful capture returns, standing in for work that races the
// gateway round trip.
type fakeGateway struct {
	authorizations []money.Cents
	captures       []money.Cents
	authorizeErr   error
	captureErr     error
	stall          bool
	onCapture      func()
}

func (g *fakeGateway) Authorize(ctx context.Context, amount money.Cents, _ string) (*Authorization, error) {
	if g.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.authorizeErr != nil {
		return nil, g.authorizeErr
	}
	g.authorizations = append(g.authorizations, amount)
	return &Authorization{AuthorizationID: "auth-" + uuid.NewString(), AmountCents: amount}, nil
}

func (g *fakeGateway) Capture(ctx context.Context, _ string, amount money.Cents) (*CaptureResult, error) {
	if g.stall {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.captureErr != nil {
		return nil, g.captureErr
	}
	if g.onCapture != nil {
		g.onCapture()
	}
	g.captures = append(g.captures, amount)
	return &CaptureResult{CaptureID: "cap-" + uuid.NewString(), AmountCents: amount}, nil
}

func newTabService(t *testing.T, gateway PaymentGateway) (*Service, *orders.Store) {
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
		config.PolicyConfig{TaxRateBPS: 0}, nil)
	cfg := config.GatewayConfig{AuthorizeTimeout: 50 * time.Millisecond, CaptureTimeout: 50 * time.Millisecond}
	return NewService(store, repo, gateway, cfg, nil, nil), store
}

func seedTab(t *testing.T, store *orders.Store, total money.Cents) (uuid.UUID, uuid.UUID) {
	t.Helper()

	order, err := store.CreateOrder(context.Background(), orders.CreateOrderInput{
		Type:     enums.OrderTypeTakeout,
		ServerID: uuid.New(),
	})
	require.NoError(t, err)
	checkID := order.Checks[0].ID

	if total > 0 {
		_, err = store.Mutate(context.Background(), order.ID, func(tx *gorm.DB, o *models.Order) error {
			sel := models.Selection{CheckID: checkID, Name: "bar round", UnitPriceCents: total, Quantity: 1}
			return tx.Create(&sel).Error
		})
		require.NoError(t, err)
	}
	return order.ID, checkID
}

func TestOpenTabRecordsHold(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTabService(t, gateway)
	_, checkID := seedTab(t, store, 0)

	order, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID:  "op-1",
		TabName:      "Jordan",
		PreauthCents: 5000,
	})
	require.NoError(t, err)

	check := order.CheckByID(checkID)
	assert.Equal(t, enums.TabStatusOpen, check.TabStatus)
	require.NotNil(t, check.TabName)
	assert.Equal(t, "Jordan", *check.TabName)
	require.NotNil(t, check.PreauthCents)
	assert.EqualValues(t, 5000, *check.PreauthCents)
	assert.NotNil(t, check.PreauthID)
	assert.Equal(t, []money.Cents{5000}, gateway.authorizations)
}

func TestOpenTabValidatesInput(t *testing.T) {
	svc, store := newTabService(t, &fakeGateway{})
	_, checkID := seedTab(t, store, 0)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{OperationID: "op-1", PreauthCents: 5000})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.OpenTab(context.Background(), checkID, OpenTabInput{OperationID: "op-2", TabName: "Jordan", PreauthCents: -1})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestOpenTabWithoutHold(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTabService(t, gateway)
	_, checkID := seedTab(t, store, 0)

	order, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1",
		TabName:     "Jordan",
	})
	require.NoError(t, err)

	check := order.CheckByID(checkID)
	assert.Equal(t, enums.TabStatusOpen, check.TabStatus)
	assert.Nil(t, check.PreauthID)
	assert.Nil(t, check.PreauthCents)
	assert.Empty(t, gateway.authorizations)
}

func TestCloseTabWithoutHoldLeavesCheckPayable(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTabService(t, gateway)
	_, checkID := seedTab(t, store, 3100)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1",
		TabName:     "Jordan",
	})
	require.NoError(t, err)

	order, err := svc.CloseTab(context.Background(), checkID, CloseTabInput{OperationID: "op-2"})
	require.NoError(t, err)

	// No hold, nothing captured; the check settles through normal payment.
	check := order.CheckByID(checkID)
	assert.Equal(t, enums.TabStatusClosed, check.TabStatus)
	assert.Equal(t, enums.CheckStatusOpen, check.Status)
	assert.Nil(t, check.PaymentRef)
	assert.Empty(t, gateway.captures)
	assert.EqualValues(t, 3100, check.BalanceDue())
}

func TestOpenTabTwiceRejected(t *testing.T) {
	svc, store := newTabService(t, &fakeGateway{})
	_, checkID := seedTab(t, store, 0)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1", TabName: "Jordan", PreauthCents: 5000,
	})
	require.NoError(t, err)

	_, err = svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-2", TabName: "Jordan", PreauthCents: 5000,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
}

func TestCloseTabCapturesWithinHold(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTabService(t, gateway)
	_, checkID := seedTab(t, store, 4200)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1", TabName: "Jordan", PreauthCents: 5000,
	})
	require.NoError(t, err)

	order, err := svc.CloseTab(context.Background(), checkID, CloseTabInput{OperationID: "op-2"})
	require.NoError(t, err)

	check := order.CheckByID(checkID)
	assert.Equal(t, enums.TabStatusClosed, check.TabStatus)
	assert.Equal(t, enums.CheckStatusSettled, check.Status)
	assert.NotNil(t, check.PaymentRef)
	assert.Equal(t, []money.Cents{4200}, gateway.captures)
}

func TestCloseTabRefusesWhenTotalOutranHold(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTabService(t, gateway)
	_, checkID := seedTab(t, store, 6200)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1", TabName: "Jordan", PreauthCents: 5000,
	})
	require.NoError(t, err)

	_, err = svc.CloseTab(context.Background(), checkID, CloseTabInput{OperationID: "op-2"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePreauthExceeded))
	assert.Empty(t, gateway.captures)

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 6200, details["total_cents"])
	assert.EqualValues(t, 5000, details["preauth_cents"])
}

func TestCloseTabRefusesWhenTotalChangedDuringCapture(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTabService(t, gateway)
	orderID, checkID := seedTab(t, store, 4200)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1", TabName: "Jordan", PreauthCents: 5000,
	})
	require.NoError(t, err)

	// A late round lands between the gateway capture and the settle write.
	gateway.onCapture = func() {
		_, err := store.Mutate(context.Background(), orderID, func(tx *gorm.DB, _ *models.Order) error {
			sel := models.Selection{CheckID: checkID, Name: "nightcap", UnitPriceCents: 700, Quantity: 1}
			return tx.Create(&sel).Error
		})
		require.NoError(t, err)
	}

	_, err = svc.CloseTab(context.Background(), checkID, CloseTabInput{OperationID: "op-2"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	order, err := store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	check := order.CheckByID(checkID)
	assert.Equal(t, enums.TabStatusOpen, check.TabStatus)
	assert.Equal(t, enums.CheckStatusOpen, check.Status)
	assert.EqualValues(t, 4900, check.TotalCents)
}

func TestCaptureOrFallbackChargesFullTotal(t *testing.T) {
	gateway := &fakeGateway{}
	svc, store := newTabService(t, gateway)
	_, checkID := seedTab(t, store, 6200)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1", TabName: "Jordan", PreauthCents: 5000,
	})
	require.NoError(t, err)

	order, err := svc.CaptureOrFallback(context.Background(), checkID, CaptureOrFallbackInput{OperationID: "op-2"})
	require.NoError(t, err)

	check := order.CheckByID(checkID)
	assert.Equal(t, enums.CheckStatusSettled, check.Status)
	assert.Equal(t, []money.Cents{5000, 6200}, gateway.authorizations)
	assert.Equal(t, []money.Cents{6200}, gateway.captures)
}

func TestCloseTabWithoutOpenTab(t *testing.T) {
	svc, store := newTabService(t, &fakeGateway{})
	_, checkID := seedTab(t, store, 1000)

	_, err := svc.CloseTab(context.Background(), checkID, CloseTabInput{OperationID: "op-1"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
}

func TestGatewayTimeoutMapsToTypedError(t *testing.T) {
	gateway := &fakeGateway{stall: true}
	svc, store := newTabService(t, gateway)
	_, checkID := seedTab(t, store, 0)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1", TabName: "Jordan", PreauthCents: 5000,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGatewayTimeout))
}

func TestGatewayFailurePassesThroughTypedErrors(t *testing.T) {
	declined := pkgerrors.New(pkgerrors.CodeGatewayError, "card declined")
	gateway := &fakeGateway{authorizeErr: declined}
	svc, store := newTabService(t, gateway)
	_, checkID := seedTab(t, store, 0)

	_, err := svc.OpenTab(context.Background(), checkID, OpenTabInput{
		OperationID: "op-1", TabName: "Jordan", PreauthCents: 5000,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeGatewayError))
}

func TestLocalGatewayApproves(t *testing.T) {
	gateway := NewLocalGateway()

	auth, err := gateway.Authorize(context.Background(), 5000, "check-1")
	require.NoError(t, err)
	assert.EqualValues(t, 5000, auth.AmountCents)

	capture, err := gateway.Capture(context.Background(), auth.AuthorizationID, 4200)
	require.NoError(t, err)
	assert.EqualValues(t, 4200, capture.AmountCents)
}
