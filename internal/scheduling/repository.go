package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error)

	// FindActiveOverlapping returns any calendar-occupying appointment for
	// the doctor whose interval intersects slot, skipping excludeID when it
	// is non-nil (the reschedule case).
	FindActiveOverlapping(ctx context.Context, doctorID uuid.UUID, slot TimeSlot, excludeID uuid.UUID) (*Appointment, error)

	// ListActiveSlots returns the booked intervals of calendar-occupying
	// appointments for a doctor within [from, to).
	ListActiveSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]TimeSlot, error)

	// CreateAppointment inserts the appointment and bumps the doctor's
	// counters in one transaction.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// UpdateAppointment persists a transitioned appointment, guarded by a
	// compare-and-swap on the status it was loaded with. Counter updates
	// for transitions that free the calendar share the transaction.
	UpdateAppointment(ctx context.Context, appt *Appointment, from Status) (*Appointment, error)

	// Sweeper support
	FindStalePending(ctx context.Context, createdBefore time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
