package controllers

import (
	"net/http"

	"github.com/tablewire/pos-engine/api/responses"
	"github.com/tablewire/pos-engine/api/validators"
	"github.com/tablewire/pos-engine/internal/tabs"
	"github.com/tablewire/pos-engine/pkg/logger"
	"github.com/tablewire/pos-engine/pkg/money"
)

type openTabRequest struct {
	OperationID  string `json:"operation_id" validate:"required"`
	TabName      string `json:"tab_name" validate:"required"`
	PreauthCents int64  `json:"preauth_cents" validate:"required,min=1"`
}

func OpenTab(svc *tabs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req openTabRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.OpenTab(r.Context(), checkID, tabs.OpenTabInput{
			OperationID:  req.OperationID,
			TabName:      req.TabName,
			PreauthCents: money.Cents(req.PreauthCents),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type closeTabRequest struct {
	OperationID string `json:"operation_id" validate:"required"`
}

func CloseTab(svc *tabs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req closeTabRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CloseTab(r.Context(), checkID, tabs.CloseTabInput{
			OperationID: req.OperationID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func CaptureOrFallback(svc *tabs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req closeTabRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CaptureOrFallback(r.Context(), checkID, tabs.CaptureOrFallbackInput{
			OperationID: req.OperationID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
