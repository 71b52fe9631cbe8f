package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "doctor_id", "patient_id", "start_time", "end_time", "status",
	"appointment_type", "reason", "fee", "cancelled_reason", "cancelled_by",
	"cancelled_by_role", "cancelled_at", "accepted_at", "completed_at",
	"reschedule_history", "created_at", "updated_at",
}

func appointmentRow(a *Appointment) *pgxmock.Rows {
	history := []byte("[]")
	return pgxmock.NewRows(appointmentCols).AddRow(
		a.ID, a.DoctorID, a.PatientID, a.Slot.Start, a.Slot.End, a.Status,
		a.Type, a.Reason, a.Fee, (*string)(nil), (*uuid.UUID)(nil),
		(*string)(nil), (*time.Time)(nil), a.AcceptedAt, a.CompletedAt,
		history, a.CreatedAt, a.UpdatedAt,
	)
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPgRepository(mock)
}

func TestGetAppointmentByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM appointments`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetAppointmentByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveOverlappingQueryShape(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	slot := TimeSlot{
		Start: time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 7, 10, 30, 0, 0, time.UTC),
	}

	existing := testAppointment(StatusConfirmed)
	existing.DoctorID = doctorID

	// The interval test is half-open: stored.start < proposed.end AND
	// stored.end > proposed.start, restricted to calendar-occupying statuses.
	mock.ExpectQuery(`SELECT (.+) FROM appointments WHERE doctor_id = \$1 AND status = ANY\(\$2\) AND start_time < \$3 AND end_time > \$4`).
		WithArgs(doctorID, activeStatusStrings(), slot.End, slot.Start, (*uuid.UUID)(nil)).
		WillReturnRows(appointmentRow(existing))

	got, err := repo.FindActiveOverlapping(context.Background(), doctorID, slot, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveOverlappingExcludesSelf(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	excludeID := uuid.New()
	slot := TimeSlot{
		Start: time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, 7, 10, 30, 0, 0, time.UTC),
	}

	mock.ExpectQuery(`SELECT (.+) FROM appointments`).
		WithArgs(doctorID, activeStatusStrings(), slot.End, slot.Start, &excludeID).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindActiveOverlapping(context.Background(), doctorID, slot, excludeID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentTransaction(t *testing.T) {
	mock, repo := newMockRepo(t)

	appt := testAppointment(StatusPending)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(appt.ID, appt.DoctorID, appt.PatientID, appt.Slot.Start, appt.Slot.End,
			string(appt.Status), string(appt.Type), appt.Reason, appt.Fee, []byte("[]")).
		WillReturnRows(appointmentRow(appt))
	mock.ExpectExec(`UPDATE doctors SET active_appointments = active_appointments \+ 1`).
		WithArgs(appt.DoctorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	created, err := repo.CreateAppointment(context.Background(), appt)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, created.ID)
	assert.Equal(t, StatusPending, created.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentRollsBackOnCounterFailure(t *testing.T) {
	mock, repo := newMockRepo(t)

	appt := testAppointment(StatusPending)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(appt.ID, appt.DoctorID, appt.PatientID, appt.Slot.Start, appt.Slot.End,
			string(appt.Status), string(appt.Type), appt.Reason, appt.Fee, []byte("[]")).
		WillReturnRows(appointmentRow(appt))
	mock.ExpectExec(`UPDATE doctors`).
		WithArgs(appt.DoctorID).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.CreateAppointment(context.Background(), appt)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentReleasesCounterOnCancel(t *testing.T) {
	mock, repo := newMockRepo(t)

	appt := testAppointment(StatusCancelled)
	appt.Cancellation = &Cancellation{
		Reason:      "changed my mind",
		CancelledBy: appt.PatientID,
		Role:        RolePatient,
		CancelledAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE appointments SET`).
		WithArgs(appt.ID, appt.Slot.Start, appt.Slot.End, string(StatusCancelled),
			&appt.Cancellation.Reason, &appt.Cancellation.CancelledBy,
			pgxmock.AnyArg(), &appt.Cancellation.CancelledAt,
			appt.AcceptedAt, appt.CompletedAt, []byte("[]"), string(StatusPending)).
		WillReturnRows(appointmentRow(appt))
	mock.ExpectExec(`UPDATE doctors SET active_appointments = greatest\(active_appointments - 1, 0\)`).
		WithArgs(appt.DoctorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	updated, err := repo.UpdateAppointment(context.Background(), appt, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentCASMiss(t *testing.T) {
	mock, repo := newMockRepo(t)

	appt := testAppointment(StatusAccepted)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE appointments SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.UpdateAppointment(context.Background(), appt, StatusPending)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanAppointmentDecodesAudit(t *testing.T) {
	mock, repo := newMockRepo(t)

	appt := testAppointment(StatusRescheduled)
	cancelledBy := uuid.New()
	role := "doctor"
	reason := "no-show"
	at := time.Date(2026, 9, 8, 9, 0, 0, 0, time.UTC)
	history := []byte(`[{"previous_time_slot":{"start":"2026-09-07T10:00:00Z","end":"2026-09-07T10:30:00Z"},"new_time_slot":{"start":"2026-09-07T11:00:00Z","end":"2026-09-07T11:30:00Z"},"reason":"work conflict","rescheduled_by":"` + appt.PatientID.String() + `","rescheduled_by_role":"patient","rescheduled_at":"2026-09-01T12:00:00Z"}]`)

	rows := pgxmock.NewRows(appointmentCols).AddRow(
		appt.ID, appt.DoctorID, appt.PatientID, appt.Slot.Start, appt.Slot.End, appt.Status,
		appt.Type, appt.Reason, appt.Fee, &reason, &cancelledBy, &role, &at,
		(*time.Time)(nil), (*time.Time)(nil), history, appt.CreatedAt, appt.UpdatedAt,
	)

	mock.ExpectQuery(`SELECT (.+) FROM appointments`).
		WithArgs(appt.ID).
		WillReturnRows(rows)

	got, err := repo.GetAppointmentByID(context.Background(), appt.ID)
	require.NoError(t, err)

	require.NotNil(t, got.Cancellation)
	assert.Equal(t, "no-show", got.Cancellation.Reason)
	assert.Equal(t, RoleDoctor, got.Cancellation.Role)

	require.Len(t, got.RescheduleHistory, 1)
	assert.Equal(t, "work conflict", got.RescheduleHistory[0].Reason)
	assert.Equal(t, RolePatient, got.RescheduleHistory[0].Role)
}
