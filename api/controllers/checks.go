package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tablewire/pos-engine/api/responses"
	"github.com/tablewire/pos-engine/api/validators"
	"github.com/tablewire/pos-engine/internal/checks"
	"github.com/tablewire/pos-engine/pkg/config"
	"github.com/tablewire/pos-engine/pkg/db/models"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/money"
)

type addSelectionRequest struct {
	OperationID string   `json:"operation_id" validate:"required"`
	MenuItemID  string   `json:"menu_item_id" validate:"required,uuid"`
	Quantity    int      `json:"quantity" validate:"required,min=1"`
	Modifiers   []string `json:"modifiers,omitempty"`
	Seat        *int     `json:"seat,omitempty" validate:"omitempty,min=1"`
	CourseIndex *int     `json:"course_index,omitempty" validate:"omitempty,min=1"`
	Notes       *string  `json:"notes,omitempty"`
}

func AddSelection(svc *checks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req addSelectionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		menuItemID, err := uuid.Parse(req.MenuItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid menu item id"))
			return
		}

		order, err := svc.AddSelection(r.Context(), checkID, checks.AddSelectionInput{
			OperationID:   req.OperationID,
			MenuItemID:    menuItemID,
			Quantity:      req.Quantity,
			ModifierNames: req.Modifiers,
			Seat:          req.Seat,
			CourseIndex:   req.CourseIndex,
			Notes:         req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type statusChangeRequest struct {
	OperationID  string `json:"operation_id" validate:"required"`
	Reason       string `json:"reason" validate:"required"`
	AuthorizedBy string `json:"authorized_by" validate:"required,uuid"`
}

func VoidSelection(svc *checks.Service, logg *logger.Logger) http.HandlerFunc {
	return selectionStatusHandler(svc.VoidSelection, logg)
}

// CompSelection reports whether the comped quantity still depletes stock, so
// downstream inventory systems know to count it.
func CompSelection(svc *checks.Service, policy config.PolicyConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, selectionID, input, err := decodeStatusChange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.CompSelection(r.Context(), checkID, selectionID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"order":               order,
			"depletes_inventory":  policy.CompDepletesInventory,
			"comped_selection_id": selectionID,
		})
	}
}

func selectionStatusHandler(apply func(ctx context.Context, checkID, selectionID uuid.UUID, input checks.StatusChangeInput) (*models.Order, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, selectionID, input, err := decodeStatusChange(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := apply(r.Context(), checkID, selectionID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func decodeStatusChange(r *http.Request) (uuid.UUID, uuid.UUID, checks.StatusChangeInput, error) {
	var zero checks.StatusChangeInput
	checkID, err := validators.ParseUUIDParam(r, "checkId")
	if err != nil {
		return uuid.Nil, uuid.Nil, zero, err
	}
	selectionID, err := validators.ParseUUIDParam(r, "selectionId")
	if err != nil {
		return uuid.Nil, uuid.Nil, zero, err
	}
	var req statusChangeRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		return uuid.Nil, uuid.Nil, zero, err
	}
	authorizedBy, err := uuid.Parse(req.AuthorizedBy)
	if err != nil {
		return uuid.Nil, uuid.Nil, zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid authorized_by")
	}
	return checkID, selectionID, checks.StatusChangeInput{
		OperationID:  req.OperationID,
		Reason:       req.Reason,
		AuthorizedBy: authorizedBy,
	}, nil
}

type applyDiscountRequest struct {
	OperationID  string `json:"operation_id" validate:"required"`
	Type         string `json:"type" validate:"required,oneof=percent fixed"`
	Value        string `json:"value" validate:"required"`
	Reason       string `json:"reason" validate:"required"`
	AuthorizedBy string `json:"authorized_by" validate:"required,uuid"`
}

func ApplyDiscount(svc *checks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req applyDiscountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discountType, err := enums.ParseDiscountType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
			return
		}
		value, err := decimal.NewFromString(req.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount value"))
			return
		}
		authorizedBy, err := uuid.Parse(req.AuthorizedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid authorized_by"))
			return
		}

		order, err := svc.ApplyDiscount(r.Context(), checkID, checks.ApplyDiscountInput{
			OperationID:  req.OperationID,
			Type:         discountType,
			Value:        value,
			Reason:       req.Reason,
			AuthorizedBy: authorizedBy,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type settleCheckRequest struct {
	OperationID string `json:"operation_id" validate:"required"`
	PaymentRef  string `json:"payment_ref" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,min=0"`
}

func SettleCheck(svc *checks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req settleCheckRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.SettleCheck(r.Context(), checkID, checks.SettleCheckInput{
			OperationID: req.OperationID,
			PaymentRef:  req.PaymentRef,
			AmountCents: money.Cents(req.AmountCents),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
