package controllers

import (
	"net/http"

	"github.com/tablewire/pos-engine/api/responses"
	"github.com/tablewire/pos-engine/api/validators"
	"github.com/tablewire/pos-engine/internal/courses"
	"github.com/tablewire/pos-engine/pkg/logger"
)

func FireCourse(svc *courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		index, err := validators.ParseIntParam(r, "courseIndex")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.FireCourse(r.Context(), orderID, index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func ServeCourse(svc *courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		index, err := validators.ParseIntParam(r, "courseIndex")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.MarkServed(r.Context(), orderID, index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type assignSelectionRequest struct {
	OperationID string `json:"operation_id" validate:"required"`
	Seat        *int   `json:"seat,omitempty" validate:"omitempty,min=1"`
	CourseIndex *int   `json:"course_index,omitempty" validate:"omitempty,min=1"`
}

func AssignSelection(svc *courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checkID, err := validators.ParseUUIDParam(r, "checkId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		selectionID, err := validators.ParseUUIDParam(r, "selectionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req assignSelectionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AssignSelection(r.Context(), checkID, selectionID, courses.AssignInput{
			OperationID: req.OperationID,
			Seat:        req.Seat,
			CourseIndex: req.CourseIndex,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
