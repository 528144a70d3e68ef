package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tablewire/pos-engine/api/responses"
	"github.com/tablewire/pos-engine/api/validators"
	"github.com/tablewire/pos-engine/internal/orders"
	"github.com/tablewire/pos-engine/pkg/enums"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/logger"
)

type createOrderRequest struct {
	Type     string  `json:"type" validate:"required"`
	TableID  *string `json:"table_id,omitempty" validate:"omitempty,uuid"`
	ServerID string  `json:"server_id" validate:"required,uuid"`
	DeviceID string  `json:"device_id,omitempty"`
}

func CreateOrder(store *orders.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderType, err := enums.ParseOrderType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type"))
			return
		}
		serverID, err := uuid.Parse(req.ServerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid server id"))
			return
		}

		input := orders.CreateOrderInput{
			Type:     orderType,
			ServerID: serverID,
			DeviceID: req.DeviceID,
		}
		if req.TableID != nil {
			tableID, err := uuid.Parse(*req.TableID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid table id"))
				return
			}
			input.TableID = &tableID
		}

		order, err := store.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func GetOrder(store *orders.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := store.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func AppendCheck(store *orders.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := store.AppendCheck(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func CloseOrder(store *orders.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := store.CloseOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
