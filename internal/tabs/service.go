package tabs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/pkg/config"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/metrics"
	"github.com/tablewire/pos-engine/pkg/money"
)

// Service runs bar tabs: a named check backed by a card pre-authorization.
// Gateway calls happen outside the order transaction; only their results are
// recorded.
type Service struct {
	store   *orders.Store
	repo    orders.Repository
	gateway PaymentGateway
	cfg     config.GatewayConfig
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

func NewService(store *orders.Store, repo orders.Repository, gateway PaymentGateway, cfg config.GatewayConfig, m *metrics.EngineMetrics, logg *logger.Logger) *Service {
	return &Service{
		store:   store,
		repo:    repo,
		gateway: gateway,
		cfg:     cfg,
		metrics: m,
		logg:    logg,
	}
}

// OpenTabInput names the tab and optionally sets a hold amount. A zero
// PreauthCents opens the tab without any card hold.
type OpenTabInput struct {
	OperationID  string
	TabName      string
	PreauthCents money.Cents
}

// OpenTab marks the check as an open tab, placing a card hold first when one
// was requested. The hold happens before the order transaction; if recording
// fails the hold is released by gateway expiry, never by a partial write.
func (s *Service) OpenTab(ctx context.Context, checkID uuid.UUID, input OpenTabInput) (*models.Order, error) {
	if input.TabName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tab name required")
	}
	if input.PreauthCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preauth amount must not be negative")
	}

	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.tabOpenable(order, checkID); err != nil {
		return nil, err
	}

	var auth *Authorization
	if input.PreauthCents > 0 {
		auth, err = s.authorize(ctx, input.PreauthCents, checkID.String())
		if err != nil {
			return nil, err
		}
	}

	order, err = s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, input.OperationID, "tab.open"); err != nil {
			return err
		}
		if err := s.tabOpenable(order, checkID); err != nil {
			return err
		}
		now := time.Now().UTC()
		updates := map[string]any{
			"tab_status":    enums.TabStatusOpen,
			"tab_name":      input.TabName,
			"tab_opened_at": now,
		}
		if auth != nil {
			updates["preauth_id"] = auth.AuthorizationID
			updates["preauth_cents"] = auth.AmountCents
		}
		return s.repo.WithTx(tx).UpdateCheck(ctx, checkID, updates)
	})
	s.observe("tab.open", err)
	return order, err
}

// CloseTabInput closes a tab against its original hold.
type CloseTabInput struct {
	OperationID string
}

// CloseTab captures the check total against the pre-authorization. When the
// total has run past the hold the close is refused with the overage; the
// client falls back to CaptureOrFallback. A tab opened without a hold closes
// immediately and the check stays open for normal payment.
func (s *Service) CloseTab(ctx context.Context, checkID uuid.UUID, input CloseTabInput) (*models.Order, error) {
	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	check, err := openTabCheck(order, checkID)
	if err != nil {
		return nil, err
	}

	if check.PreauthID == nil {
		order, err = s.finalizeUnbackedTab(ctx, orderID, checkID, input.OperationID)
		s.observe("tab.close", err)
		return order, err
	}

	total := check.TotalCents
	preauth := *check.PreauthCents
	if total > preauth {
		s.observe("tab.close", pkgerrors.New(pkgerrors.CodePreauthExceeded, ""))
		return nil, pkgerrors.New(pkgerrors.CodePreauthExceeded, "check total exceeds the card hold").
			WithDetails(map[string]any{
				"total_cents":   total,
				"preauth_cents": preauth,
			})
	}

	capture, err := s.capture(ctx, *check.PreauthID, total)
	if err != nil {
		s.observe("tab.close", err)
		return nil, err
	}

	order, err = s.settleTab(ctx, orderID, checkID, input.OperationID, "tab.close", capture)
	s.observe("tab.close", err)
	return order, err
}

// CaptureOrFallbackInput settles a tab whose total outran its hold.
type CaptureOrFallbackInput struct {
	OperationID string
}

// CaptureOrFallback abandons the original hold and charges the full total on
// a fresh authorization. Used when CloseTab reports the hold was exceeded.
func (s *Service) CaptureOrFallback(ctx context.Context, checkID uuid.UUID, input CaptureOrFallbackInput) (*models.Order, error) {
	orderID, err := s.store.OrderIDForCheck(ctx, checkID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	check, err := openTabCheck(order, checkID)
	if err != nil {
		return nil, err
	}

	total := check.TotalCents
	auth, err := s.authorize(ctx, total, checkID.String())
	if err != nil {
		s.observe("tab.fallback", err)
		return nil, err
	}
	capture, err := s.capture(ctx, auth.AuthorizationID, total)
	if err != nil {
		s.observe("tab.fallback", err)
		return nil, err
	}

	order, err = s.settleTab(ctx, orderID, checkID, input.OperationID, "tab.fallback", capture)
	s.observe("tab.fallback", err)
	return order, err
}

// settleTab records a successful capture: the tab closes and the check
// settles under the capture reference. The total is re-read under the order
// lock; a mutation that landed after the capture amount was read makes the
// settle refuse rather than under-collect.
func (s *Service) settleTab(ctx context.Context, orderID, checkID uuid.UUID, operationID, kind string, capture *CaptureResult) (*models.Order, error) {
	return s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, operationID, kind); err != nil {
			return err
		}
		check, err := openTabCheck(order, checkID)
		if err != nil {
			return err
		}
		if check.TotalCents != capture.AmountCents {
			return pkgerrors.New(pkgerrors.CodeConflict, "check changed while capturing; captured amount no longer covers the total").
				WithDetails(map[string]any{
					"total_cents":    check.TotalCents,
					"captured_cents": capture.AmountCents,
				})
		}
		now := time.Now().UTC()
		return s.repo.WithTx(tx).UpdateCheck(ctx, checkID, map[string]any{
			"tab_status":    enums.TabStatusClosed,
			"tab_closed_at": now,
			"status":        enums.CheckStatusSettled,
			"settled_at":    now,
			"payment_ref":   capture.CaptureID,
		})
	})
}

// finalizeUnbackedTab closes a tab that never had a hold. Nothing is
// captured; the check stays open and settles through the normal payment
// path.
func (s *Service) finalizeUnbackedTab(ctx context.Context, orderID, checkID uuid.UUID, operationID string) (*models.Order, error) {
	return s.store.Mutate(ctx, orderID, func(tx *gorm.DB, order *models.Order) error {
		if err := orders.ClaimOperation(ctx, tx, checkID, operationID, "tab.close"); err != nil {
			return err
		}
		check, err := openTabCheck(order, checkID)
		if err != nil {
			return err
		}
		if check.PreauthID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "a hold appeared on this tab; close it against the hold")
		}
		now := time.Now().UTC()
		return s.repo.WithTx(tx).UpdateCheck(ctx, checkID, map[string]any{
			"tab_status":    enums.TabStatusClosed,
			"tab_closed_at": now,
		})
	})
}

func (s *Service) tabOpenable(order *models.Order, checkID uuid.UUID) error {
	check := order.CheckByID(checkID)
	if check == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "check not found")
	}
	if check.Status != enums.CheckStatusOpen {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "check is "+check.Status.String())
	}
	if check.TabStatus != enums.TabStatusNone {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "tab is already "+check.TabStatus.String())
	}
	return nil
}

func openTabCheck(order *models.Order, checkID uuid.UUID) (*models.Check, error) {
	check := order.CheckByID(checkID)
	if check == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "check not found")
	}
	if check.TabStatus != enums.TabStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "no open tab on this check")
	}
	return check, nil
}

// authorize runs a bounded gateway authorization. A deadline hit maps to
// GatewayTimeout; any other gateway failure passes through untouched.
func (s *Service) authorize(ctx context.Context, amount money.Cents, reference string) (*Authorization, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.AuthorizeTimeout)
	defer cancel()

	start := time.Now()
	auth, err := s.gateway.Authorize(callCtx, amount, reference)
	s.metrics.ObserveGatewayCall("authorize", time.Since(start))
	if err != nil {
		return nil, s.gatewayError("authorize", err)
	}
	return auth, nil
}

func (s *Service) capture(ctx context.Context, authorizationID string, amount money.Cents) (*CaptureResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CaptureTimeout)
	defer cancel()

	start := time.Now()
	capture, err := s.gateway.Capture(callCtx, authorizationID, amount)
	s.metrics.ObserveGatewayCall("capture", time.Since(start))
	if err != nil {
		return nil, s.gatewayError("capture", err)
	}
	return capture, nil
}

func (s *Service) gatewayError(call string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.metrics.IncGatewayFailure(call, "timeout")
		return pkgerrors.Wrap(pkgerrors.CodeGatewayTimeout, err, "payment gateway "+call+" timed out")
	}
	s.metrics.IncGatewayFailure(call, "error")
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeGatewayError, err, "payment gateway "+call+" failed")
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
