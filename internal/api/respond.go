package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vaxport/scheduling-engine/internal/appointment"
	redisclient "github.com/vaxport/scheduling-engine/internal/redis"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeDomainError maps engine errors onto HTTP. slot_unavailable is the
// one conflict clients treat as routinely retryable: the UI re-queries
// available slots instead of dead-ending.
func writeDomainError(w http.ResponseWriter, err error) {
	var validation *appointment.ValidationError
	var transition *appointment.InvalidStateTransitionError

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_error", validation.Reason)
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid_state_transition", transition.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_unavailable", "slot is no longer available, re-fetch available slots and retry")
	case errors.Is(err, appointment.ErrPatientNotFound),
		errors.Is(err, appointment.ErrFamilyMemberNotFound),
		errors.Is(err, appointment.ErrDoctorNotFound),
		errors.Is(err, appointment.ErrVaccineNotFound),
		errors.Is(err, appointment.ErrSlotNotFound),
		errors.Is(err, appointment.ErrBookingNotFound),
		errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
