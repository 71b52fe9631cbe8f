package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository uses. Tests substitute a
// pgxmock pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, doctor_id, patient_id, start_time, end_time, status,
		appointment_type, reason, fee, cancelled_reason, cancelled_by, cancelled_by_role,
		cancelled_at, accepted_at, completed_at, reschedule_history, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string
	var availability []byte

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.ConsultationFee,
		&d.Approved,
		&availability,
		&d.ActiveAppointments,
		&d.TotalAppointments,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	if len(availability) > 0 {
		if err := json.Unmarshal(availability, &d.WeeklyAvailability); err != nil {
			return nil, fmt.Errorf("decode weekly availability: %w", err)
		}
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelledReason *string
	var cancelledBy *uuid.UUID
	var cancelledByRole *string
	var cancelledAt *time.Time
	var history []byte

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Slot.Start,
		&a.Slot.End,
		&a.Status,
		&a.Type,
		&a.Reason,
		&a.Fee,
		&cancelledReason,
		&cancelledBy,
		&cancelledByRole,
		&cancelledAt,
		&a.AcceptedAt,
		&a.CompletedAt,
		&history,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if cancelledReason != nil && cancelledBy != nil && cancelledByRole != nil && cancelledAt != nil {
		a.Cancellation = &Cancellation{
			Reason:      *cancelledReason,
			CancelledBy: *cancelledBy,
			Role:        ActorRole(*cancelledByRole),
			CancelledAt: *cancelledAt,
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &a.RescheduleHistory); err != nil {
			return nil, fmt.Errorf("decode reschedule history: %w", err)
		}
	}
	return &a, nil
}

func marshalHistory(entries []RescheduleEntry) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(entries)
}

func activeStatusStrings() []string {
	out := make([]string, len(ActiveStatuses))
	for i, s := range ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func cancellationColumns(c *Cancellation) (reason *string, by *uuid.UUID, role *string, at *time.Time) {
	if c == nil {
		return nil, nil, nil, nil
	}
	r := string(c.Role)
	return &c.Reason, &c.CancelledBy, &r, &c.CancelledAt
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, consultation_fee, approved, weekly_availability,
		       active_appointments, total_appointments, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1`
	args := []any{}

	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		query += ` AND doctor_id = $` + strconv.Itoa(len(args))
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		query += ` AND patient_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY start_time`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) FindActiveOverlapping(ctx context.Context, doctorID uuid.UUID, slot TimeSlot, excludeID uuid.UUID) (*Appointment, error) {
	var exclude *uuid.UUID
	if excludeID != uuid.Nil {
		exclude = &excludeID
	}

	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status = ANY($2)
		  AND start_time < $3
		  AND end_time > $4
		  AND ($5::uuid IS NULL OR id <> $5)
		LIMIT 1
	`, doctorID, activeStatusStrings(), slot.End, slot.Start, exclude)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE doctor_id = $1
		  AND status = ANY($2)
		  AND start_time < $3
		  AND end_time > $4
		ORDER BY start_time
	`, doctorID, activeStatusStrings(), to, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []TimeSlot
	for rows.Next() {
		var s TimeSlot
		if err := rows.Scan(&s.Start, &s.End); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	history, err := marshalHistory(appt.RescheduleHistory)
	if err != nil {
		return nil, fmt.Errorf("encode reschedule history: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, doctor_id, patient_id, start_time, end_time, status,
			appointment_type, reason, fee, reschedule_history, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.DoctorID, appt.PatientID, appt.Slot.Start, appt.Slot.End,
		string(appt.Status), string(appt.Type), appt.Reason, appt.Fee, history)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE doctors
		SET active_appointments = active_appointments + 1,
		    total_appointments = total_appointments + 1,
		    updated_at = now()
		WHERE id = $1
	`, appt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("bump doctor counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, appt *Appointment, from Status) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	history, err := marshalHistory(appt.RescheduleHistory)
	if err != nil {
		return nil, fmt.Errorf("encode reschedule history: %w", err)
	}
	reason, by, role, at := cancellationColumns(appt.Cancellation)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    status = $4,
		    cancelled_reason = $5,
		    cancelled_by = $6,
		    cancelled_by_role = $7,
		    cancelled_at = $8,
		    accepted_at = $9,
		    completed_at = $10,
		    reschedule_history = $11,
		    updated_at = now()
		WHERE id = $1
		  AND status = $12
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.Slot.Start, appt.Slot.End, string(appt.Status),
		reason, by, role, at, appt.AcceptedAt, appt.CompletedAt, history, string(from))

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	// Transitions that free the calendar release the doctor's active slot.
	if from.Active() && !appt.Status.Active() {
		_, err = tx.Exec(ctx, `
			UPDATE doctors
			SET active_appointments = greatest(active_appointments - 1, 0),
			    updated_at = now()
			WHERE id = $1
		`, appt.DoctorID)
		if err != nil {
			return nil, fmt.Errorf("release doctor counter: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) FindStalePending(ctx context.Context, createdBefore time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND created_at < $1
	`, createdBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
