package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/careloop/telehealth-scheduling/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeSchedulingError maps domain errors to HTTP statuses and stable error
// codes. Availability and overlap failures get distinct codes because the
// corrective action differs for the user.
func writeSchedulingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid_slot", err.Error())
	case errors.Is(err, scheduling.ErrSlotInPast):
		writeError(w, http.StatusBadRequest, "slot_in_past", err.Error())
	case errors.Is(err, scheduling.ErrSlotSpansDays):
		writeError(w, http.StatusBadRequest, "slot_spans_days", err.Error())
	case errors.Is(err, scheduling.ErrReasonRequired):
		writeError(w, http.StatusBadRequest, "reason_required", err.Error())
	case errors.Is(err, scheduling.ErrNoteRequired):
		writeError(w, http.StatusBadRequest, "note_required", err.Error())
	case errors.Is(err, scheduling.ErrReasonNotAllowed):
		writeError(w, http.StatusBadRequest, "reason_not_allowed", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotApproved):
		writeError(w, http.StatusBadRequest, "doctor_not_approved", err.Error())

	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())

	case errors.Is(err, scheduling.ErrNotParty):
		writeError(w, http.StatusForbidden, "not_a_party", err.Error())
	case errors.Is(err, scheduling.ErrRoleNotAllowed):
		writeError(w, http.StatusForbidden, "role_not_allowed", err.Error())

	case errors.Is(err, scheduling.ErrDayUnavailable):
		writeError(w, http.StatusConflict, "day_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrOutsideHours):
		writeError(w, http.StatusConflict, "outside_open_hours", err.Error())
	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, scheduling.ErrCalendarBusy):
		writeError(w, http.StatusConflict, "calendar_busy", "doctor's calendar is being booked, please retry shortly")
	case errors.Is(err, scheduling.ErrTerminalStatus):
		writeError(w, http.StatusConflict, "terminal_status", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
