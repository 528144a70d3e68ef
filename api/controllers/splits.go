package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tablewire/pos-engine/api/responses"
	"github.com/tablewire/pos-engine/api/validators"
	"github.com/tablewire/pos-engine/internal/splits"
	pkgerrors "github.com/tablewire/pos-engine/pkg/errors"
	"github.com/tablewire/pos-engine/pkg/logger"
)

type splitEqualRequest struct {
	OperationID string `json:"operation_id" validate:"required"`
	Ways        int    `json:"ways" validate:"required,min=2"`
}

func SplitEqual(svc *splits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req splitEqualRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.SplitEqual(r.Context(), checkID, splits.SplitEqualInput{
			OperationID: req.OperationID,
			Ways:        req.Ways,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type splitBySeatRequest struct {
	OperationID string `json:"operation_id" validate:"required"`
}

func SplitBySeat(svc *splits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req splitBySeatRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.SplitBySeat(r.Context(), checkID, splits.SplitBySeatInput{
			OperationID: req.OperationID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type splitByItemRequest struct {
	OperationID string     `json:"operation_id" validate:"required"`
	Groups      [][]string `json:"groups" validate:"required,min=2,dive,required,min=1"`
}

func SplitByItem(svc *splits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req splitByItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groups := make([][]uuid.UUID, 0, len(req.Groups))
		for _, rawGroup := range req.Groups {
			group := make([]uuid.UUID, 0, len(rawGroup))
			for _, raw := range rawGroup {
				id, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid selection id"))
					return
				}
				group = append(group, id)
			}
			groups = append(groups, group)
		}

		order, err := svc.SplitByItem(r.Context(), checkID, splits.SplitByItemInput{
			OperationID: req.OperationID,
			Groups:      groups,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type transferCheckRequest struct {
	OperationID   string `json:"operation_id" validate:"required"`
	TargetTableID string `json:"target_table_id" validate:"required,uuid"`
	AuthorizedBy  string `json:"authorized_by" validate:"required,uuid"`
}

func TransferCheck(svc *splits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transferCheckRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetTableID, err := uuid.Parse(req.TargetTableID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target table id"))
			return
		}
		authorizedBy, err := uuid.Parse(req.AuthorizedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid authorized_by"))
			return
		}

		source, target, err := svc.TransferCheck(r.Context(), checkID, targetTableID, splits.TransferCheckInput{
			OperationID:  req.OperationID,
			AuthorizedBy: authorizedBy,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"source_order": source,
			"target_order": target,
		})
	}
}
