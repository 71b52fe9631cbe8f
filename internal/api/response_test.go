package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/telehealth-scheduling/internal/scheduling"
)

func TestWriteSchedulingErrorMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{scheduling.ErrInvalidSlot, http.StatusBadRequest, "invalid_slot"},
		{scheduling.ErrSlotInPast, http.StatusBadRequest, "slot_in_past"},
		{scheduling.ErrReasonNotAllowed, http.StatusBadRequest, "reason_not_allowed"},
		{scheduling.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
		{scheduling.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
		{scheduling.ErrNotParty, http.StatusForbidden, "not_a_party"},
		{scheduling.ErrRoleNotAllowed, http.StatusForbidden, "role_not_allowed"},
		{scheduling.ErrSlotTaken, http.StatusConflict, "slot_taken"},
		{scheduling.ErrCalendarBusy, http.StatusConflict, "calendar_busy"},
		{scheduling.ErrDayUnavailable, http.StatusConflict, "day_unavailable"},
		{scheduling.ErrTerminalStatus, http.StatusConflict, "terminal_status"},
		{scheduling.ErrInvalidTransition, http.StatusConflict, "invalid_status_transition"},
		{assert.AnError, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeSchedulingError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error)
		})
	}
}

// Wrapped errors still map through errors.Is.
func TestWriteSchedulingErrorUnwraps(t *testing.T) {
	rec := httptest.NewRecorder()
	writeSchedulingError(rec, fmt.Errorf("doctor is closed on %s: %w", "tuesday", scheduling.ErrDayUnavailable))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "day_unavailable", body.Error)
	assert.Contains(t, body.Details, "tuesday")
}

func TestActorFromRequest(t *testing.T) {
	patientID := uuid.New()

	newReq := func(role, id string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/appointments", nil)
		if role != "" {
			r.Header.Set("X-Actor-Role", role)
		}
		if id != "" {
			r.Header.Set("X-Actor-ID", id)
		}
		return r
	}

	t.Run("patient with id", func(t *testing.T) {
		actor, ok := actorFromRequest(newReq("patient", patientID.String()))
		require.True(t, ok)
		assert.Equal(t, scheduling.RolePatient, actor.Role)
		assert.Equal(t, patientID, actor.ID)
	})

	t.Run("system may omit id", func(t *testing.T) {
		actor, ok := actorFromRequest(newReq("system", ""))
		require.True(t, ok)
		assert.Equal(t, scheduling.RoleSystem, actor.Role)
		assert.Equal(t, uuid.Nil, actor.ID)
	})

	t.Run("patient without id rejected", func(t *testing.T) {
		_, ok := actorFromRequest(newReq("patient", ""))
		assert.False(t, ok)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, ok := actorFromRequest(newReq("admin", patientID.String()))
		assert.False(t, ok)
	})

	t.Run("malformed id rejected", func(t *testing.T) {
		_, ok := actorFromRequest(newReq("doctor", "not-a-uuid"))
		assert.False(t, ok)
	})

	t.Run("missing role rejected", func(t *testing.T) {
		_, ok := actorFromRequest(newReq("", patientID.String()))
		assert.False(t, ok)
	})
}

func TestIntQuery(t *testing.T) {
	assert.Equal(t, 25, intQuery("25"))
	assert.Equal(t, 0, intQuery(""))
	assert.Equal(t, 0, intQuery("-5"))
	assert.Equal(t, 0, intQuery("abc"))
}
