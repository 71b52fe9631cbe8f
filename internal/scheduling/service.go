package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careloop/telehealth-scheduling/internal/metrics"
	redisclient "github.com/careloop/telehealth-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentAccepted    = "APPOINTMENT_ACCEPTED"
	EventAppointmentRejected    = "APPOINTMENT_REJECTED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
)

// sweepCancelReason is the system cancellation reason used when a pending
// appointment was never accepted in time.
const sweepCancelReason = "not accepted in time"

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	metrics *metrics.BookingMetrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, m *metrics.BookingMetrics, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

type BookRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Slot      TimeSlot
	Type      AppointmentType
	Reason    string
}

func (s *Service) validateSlot(slot TimeSlot, now time.Time) error {
	if slot.Start.IsZero() || slot.End.IsZero() || !slot.Start.Before(slot.End) {
		return ErrInvalidSlot
	}
	if slot.Start.Before(now) {
		return ErrSlotInPast
	}
	return nil
}

// Book creates a pending appointment for a patient. The overlap check and
// the insert run under a per-doctor lock so two concurrent requests for the
// same opening cannot both succeed.
func (s *Service) Book(ctx context.Context, actor Actor, req BookRequest) (*Appointment, error) {
	appt, err := s.book(ctx, actor, req)
	s.observe("book", err)
	return appt, err
}

func (s *Service) book(ctx context.Context, actor Actor, req BookRequest) (*Appointment, error) {
	switch actor.Role {
	case RolePatient:
		if actor.ID != req.PatientID {
			return nil, ErrNotParty
		}
	case RoleSystem:
	default:
		return nil, ErrRoleNotAllowed
	}

	now := s.now()
	if err := s.validateSlot(req.Slot, now); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Approved {
		return nil, ErrDoctorNotApproved
	}

	if err := doctor.WeeklyAvailability.Covers(req.Slot); err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		// Inside the critical section re-check the calendar for this doctor
		existing, err := s.repo.FindActiveOverlapping(lockCtx, req.DoctorID, req.Slot, uuid.Nil)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check overlapping appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt := &Appointment{
			ID:        uuid.New(),
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Slot:      req.Slot,
			Status:    StatusPending,
			Type:      req.Type,
			Reason:    req.Reason,
			Fee:       doctor.ConsultationFee,
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"patient_id": req.PatientID.String(),
			"start":      req.Slot.Start,
			"end":        req.Slot.End,
			"fee":        doctor.ConsultationFee,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", req.DoctorID.String()),
		zap.Time("start", req.Slot.Start))

	return created, nil
}

// transition loads the appointment, applies fn to a copy, and persists the
// result with a compare-and-swap on the loaded status.
func (s *Service) transition(ctx context.Context, id uuid.UUID, fn func(a *Appointment) error) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := *appt
	next.RescheduleHistory = slices.Clone(appt.RescheduleHistory)
	if err := fn(&next); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointment(ctx, &next, appt.Status)
	if err != nil {
		return nil, fmt.Errorf("persist transition: %w", err)
	}
	return updated, nil
}

// Accept moves a pending appointment to accepted. The emitted event carries
// the fee snapshot so the payment system can start collection.
func (s *Service) Accept(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, func(a *Appointment) error {
		return a.Accept(actor, s.now())
	})
	s.observe("accept", err)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, appt.ID, EventAppointmentAccepted, map[string]any{
		"fee":        appt.Fee,
		"patient_id": appt.PatientID.String(),
	})
	return appt, nil
}

func (s *Service) Reject(ctx context.Context, actor Actor, id uuid.UUID, note string) (*Appointment, error) {
	appt, err := s.transition(ctx, id, func(a *Appointment) error {
		return a.Reject(actor, note, s.now())
	})
	s.observe("reject", err)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, appt.ID, EventAppointmentRejected, map[string]any{"note": note})
	return appt, nil
}

func (s *Service) Confirm(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, func(a *Appointment) error {
		return a.Confirm(actor, s.now())
	})
	s.observe("confirm", err)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, appt.ID, EventAppointmentConfirmed, map[string]any{})
	return appt, nil
}

func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.transition(ctx, id, func(a *Appointment) error {
		return a.Cancel(actor, reason, s.now())
	})
	s.observe("cancel", err)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
		"reason": reason,
		"role":   string(actor.Role),
	})
	return appt, nil
}

// Reschedule re-validates the new slot against the doctor's availability and
// calendar (excluding the appointment itself) before applying the transition.
func (s *Service) Reschedule(ctx context.Context, actor Actor, id uuid.UUID, newSlot TimeSlot, reason string) (*Appointment, error) {
	appt, err := s.reschedule(ctx, actor, id, newSlot, reason)
	s.observe("reschedule", err)
	return appt, err
}

func (s *Service) reschedule(ctx context.Context, actor Actor, id uuid.UUID, newSlot TimeSlot, reason string) (*Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.validateSlot(newSlot, now); err != nil {
		return nil, err
	}

	next := *current
	next.RescheduleHistory = slices.Clone(current.RescheduleHistory)
	if err := next.Reschedule(actor, newSlot, reason, now); err != nil {
		return nil, err
	}

	doctor, err := s.repo.GetDoctorByID(ctx, current.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if err := doctor.WeeklyAvailability.Covers(newSlot); err != nil {
		return nil, err
	}

	var updated *Appointment

	err = s.locker.WithDoctorLock(ctx, current.DoctorID, func(lockCtx context.Context) error {
		existing, err := s.repo.FindActiveOverlapping(lockCtx, current.DoctorID, newSlot, current.ID)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check overlapping appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		updated, err = s.repo.UpdateAppointment(lockCtx, &next, current.Status)
		if err != nil {
			return fmt.Errorf("persist reschedule: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentRescheduled, map[string]any{
		"previous_start": current.Slot.Start,
		"new_start":      newSlot.Start,
		"reason":         reason,
		"role":           string(actor.Role),
	})
	return updated, nil
}

func (s *Service) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, func(a *Appointment) error {
		return a.Complete(actor, s.now())
	})
	s.observe("complete", err)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, appt.ID, EventAppointmentCompleted, map[string]any{})
	return appt, nil
}

func (s *Service) MarkNoShow(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.transition(ctx, id, func(a *Appointment) error {
		return a.MarkNoShow(actor, s.now())
	})
	s.observe("no_show", err)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, appt.ID, EventAppointmentNoShow, map[string]any{})
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListAppointments(ctx, filter)
}

// FreeSlots returns the bookable start intervals of the given duration for a
// doctor on a calendar date.
func (s *Service) FreeSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, duration time.Duration) ([]TimeSlot, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	booked, err := s.repo.ListActiveSlots(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}

	return doctor.WeeklyAvailability.FreeSlots(date, duration, booked), nil
}

// SweepStalePending system-cancels pending appointments older than maxAge.
// Intended to be called periodically by the sweeper worker.
func (s *Service) SweepStalePending(ctx context.Context, maxAge time.Duration) (int, error) {
	now := s.now()
	stale, err := s.repo.FindStalePending(ctx, now.Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	actor := Actor{ID: uuid.Nil, Role: RoleSystem}
	swept := 0
	for _, appt := range stale {
		next := appt
		next.RescheduleHistory = slices.Clone(appt.RescheduleHistory)
		if err := next.Cancel(actor, sweepCancelReason, now); err != nil {
			s.logger.Warn("sweep cancel rejected",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err))
			continue
		}
		if _, err := s.repo.UpdateAppointment(ctx, &next, appt.Status); err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.logger.Warn("sweep cancel failed",
					zap.String("appointment_id", appt.ID.String()),
					zap.Error(err))
			}
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentCancelled, map[string]any{
			"reason": sweepCancelReason,
			"role":   string(RoleSystem),
		})
		swept++
	}
	return swept, nil
}

func (s *Service) observe(operation string, err error) {
	switch {
	case err == nil:
		s.metrics.Observe(operation, "success")
	case errors.Is(err, ErrSlotTaken),
		errors.Is(err, ErrDayUnavailable),
		errors.Is(err, ErrOutsideHours),
		errors.Is(err, ErrCalendarBusy):
		s.metrics.Observe(operation, "conflict")
	default:
		s.metrics.Observe(operation, "error")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}
