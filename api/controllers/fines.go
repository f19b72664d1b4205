package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tbraams/barkeep-backend/api/responses"
	"github.com/tbraams/barkeep-backend/api/validators"
	finesvc "github.com/tbraams/barkeep-backend/internal/fines"
	"github.com/tbraams/barkeep-backend/pkg/logger"
)

// All fine endpoints are admin only, enforced by the router.

type fineSelectionRequest struct {
	UserIDs       []string   `json:"userIds,omitempty"`
	ReferenceDate *time.Time `json:"referenceDate,omitempty"`
}

func (f fineSelectionRequest) userIDs() ([]uuid.UUID, error) {
	return parseUUIDList(f.UserIDs, "userIds")
}

// CalculateFines previews who would be fined and for how much, without
// writing anything.
func CalculateFines(svc finesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload fineSelectionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := payload.userIDs()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		referenceDate := time.Now()
		if payload.ReferenceDate != nil {
			referenceDate = *payload.ReferenceDate
		}
		reports, err := svc.CalculateFinesOnDate(r.Context(), ids, referenceDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"referenceDate": referenceDate,
			"fines":         reports,
		})
	}
}

// HandOutFines runs one fine batch: a handout event plus a fine and debiting
// transfer per eligible debtor.
func HandOutFines(svc finesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload fineSelectionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := payload.userIDs()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.HandOutFines(r.Context(), finesvc.HandOutInput{
			UserIDs:       ids,
			ReferenceDate: payload.ReferenceDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// WaiveFines forgives the user's active fine group with one compensating
// credit.
func WaiveFines(svc finesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := validators.PathUUID(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.WaiveFines(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "waived"})
	}
}

// DeleteFine removes one mistakenly handed-out fine and its transfer.
func DeleteFine(svc finesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fineID, err := validators.PathUUID(chi.URLParam(r, "fineId"), "fineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteFine(r.Context(), fineID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// SendFineWarnings notifies would-be debtors ahead of a handout.
func SendFineWarnings(svc finesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload fineSelectionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, err := payload.userIDs()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		referenceDate := time.Now()
		if payload.ReferenceDate != nil {
			referenceDate = *payload.ReferenceDate
		}
		warned, err := svc.SendFineWarnings(r.Context(), ids, referenceDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"warned": warned})
	}
}
