package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Cancellation reasons a patient actor may not use. These describe
// doctor-side outcomes and would corrupt no-show/cancellation reporting
// if patients could self-assign them.
var doctorOnlyCancelReasons = []string{
	"doctor request",
	"no-show",
}

// isParty reports whether the actor belongs to the appointment. System
// actors are always a party.
func (a *Appointment) isParty(actor Actor) bool {
	switch actor.Role {
	case RolePatient:
		return actor.ID == a.PatientID
	case RoleDoctor:
		return actor.ID == a.DoctorID
	case RoleSystem:
		return true
	}
	return false
}

func (a *Appointment) guard(actor Actor, allowedRoles []ActorRole, from []Status) error {
	if a.Status.Terminal() {
		return ErrTerminalStatus
	}
	if !a.isParty(actor) {
		return ErrNotParty
	}
	roleOK := false
	for _, r := range allowedRoles {
		if actor.Role == r {
			roleOK = true
			break
		}
	}
	if !roleOK {
		return ErrRoleNotAllowed
	}
	for _, s := range from {
		if a.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidTransition, a.Status)
}

// Accept moves a pending or rescheduled appointment to accepted.
func (a *Appointment) Accept(actor Actor, now time.Time) error {
	err := a.guard(actor,
		[]ActorRole{RoleDoctor, RoleSystem},
		[]Status{StatusPending, StatusRescheduled})
	if err != nil {
		return err
	}
	a.Status = StatusAccepted
	a.AcceptedAt = &now
	a.UpdatedAt = now
	return nil
}

// Reject cancels a pending appointment on the doctor's initiative. The note
// becomes the cancellation reason and is required.
func (a *Appointment) Reject(actor Actor, note string, now time.Time) error {
	if strings.TrimSpace(note) == "" {
		return ErrNoteRequired
	}
	err := a.guard(actor,
		[]ActorRole{RoleDoctor},
		[]Status{StatusPending})
	if err != nil {
		return err
	}
	a.Status = StatusCancelled
	a.Cancellation = &Cancellation{
		Reason:      note,
		CancelledBy: actor.ID,
		Role:        actor.Role,
		CancelledAt: now,
	}
	a.UpdatedAt = now
	return nil
}

// Confirm marks an accepted appointment as confirmed, normally driven by the
// payment system once the consultation fee settles.
func (a *Appointment) Confirm(actor Actor, now time.Time) error {
	err := a.guard(actor,
		[]ActorRole{RoleDoctor, RoleSystem},
		[]Status{StatusAccepted})
	if err != nil {
		return err
	}
	a.Status = StatusConfirmed
	a.UpdatedAt = now
	return nil
}

// Cancel cancels any calendar-occupying appointment. The reason is required,
// and patient actors may not use doctor-only reasons.
func (a *Appointment) Cancel(actor Actor, reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	if actor.Role == RolePatient {
		normalized := strings.ToLower(strings.TrimSpace(reason))
		for _, forbidden := range doctorOnlyCancelReasons {
			if normalized == forbidden {
				return ErrReasonNotAllowed
			}
		}
	}
	err := a.guard(actor,
		[]ActorRole{RolePatient, RoleDoctor, RoleSystem},
		[]Status{StatusPending, StatusAccepted, StatusConfirmed, StatusRescheduled})
	if err != nil {
		return err
	}
	a.Status = StatusCancelled
	a.Cancellation = &Cancellation{
		Reason:      reason,
		CancelledBy: actor.ID,
		Role:        actor.Role,
		CancelledAt: now,
	}
	a.UpdatedAt = now
	return nil
}

// Reschedule overwrites the slot and appends an audit entry. Availability
// and overlap for newSlot must already have been validated by the caller.
func (a *Appointment) Reschedule(actor Actor, newSlot TimeSlot, reason string, now time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	err := a.guard(actor,
		[]ActorRole{RolePatient, RoleDoctor, RoleSystem},
		[]Status{StatusPending, StatusAccepted, StatusConfirmed, StatusRescheduled})
	if err != nil {
		return err
	}
	a.RescheduleHistory = append(a.RescheduleHistory, RescheduleEntry{
		PreviousSlot:  a.Slot,
		NewSlot:       newSlot,
		Reason:        reason,
		RescheduledBy: actor.ID,
		Role:          actor.Role,
		RescheduledAt: now,
	})
	a.Slot = newSlot
	a.Status = StatusRescheduled
	a.UpdatedAt = now
	return nil
}

// Complete closes out a held consultation.
func (a *Appointment) Complete(actor Actor, now time.Time) error {
	err := a.guard(actor,
		[]ActorRole{RoleDoctor, RoleSystem},
		[]Status{StatusAccepted, StatusConfirmed})
	if err != nil {
		return err
	}
	a.Status = StatusCompleted
	a.CompletedAt = &now
	a.UpdatedAt = now
	return nil
}

// MarkNoShow records that the patient did not attend.
func (a *Appointment) MarkNoShow(actor Actor, now time.Time) error {
	err := a.guard(actor,
		[]ActorRole{RoleDoctor, RoleSystem},
		[]Status{StatusAccepted, StatusConfirmed})
	if err != nil {
		return err
	}
	a.Status = StatusNoShow
	a.UpdatedAt = now
	return nil
}
