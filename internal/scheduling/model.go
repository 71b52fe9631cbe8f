package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusAccepted    Status = "accepted"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
	StatusNoShow      Status = "no_show"
)

// ActiveStatuses are the statuses that still occupy the doctor's calendar.
// A rescheduled appointment occupies its new slot until it is accepted,
// cancelled or rescheduled again.
var ActiveStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusConfirmed,
	StatusRescheduled,
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s Status) Active() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

type ActorRole string

const (
	RolePatient ActorRole = "patient"
	RoleDoctor  ActorRole = "doctor"
	RoleSystem  ActorRole = "system"
)

func ParseActorRole(s string) (ActorRole, bool) {
	switch ActorRole(s) {
	case RolePatient, RoleDoctor, RoleSystem:
		return ActorRole(s), true
	}
	return "", false
}

// Actor identifies who is performing an operation. Authentication happens
// upstream; the scheduling core only checks that the actor is a party to
// the appointment it is acting on.
type Actor struct {
	ID   uuid.UUID
	Role ActorRole
}

type AppointmentType string

const (
	TypeVideo    AppointmentType = "video"
	TypeInPerson AppointmentType = "in_person"
)

func ParseAppointmentType(s string) (AppointmentType, bool) {
	switch AppointmentType(s) {
	case TypeVideo, TypeInPerson:
		return AppointmentType(s), true
	}
	return "", false
}

// TimeSlot is a half-open [Start, End) interval.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals intersect.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

func (s TimeSlot) IsZero() bool {
	return s.Start.IsZero() && s.End.IsZero()
}

// Cancellation is a write-once audit record set when an appointment is
// cancelled or rejected.
type Cancellation struct {
	Reason      string    `json:"reason"`
	CancelledBy uuid.UUID `json:"cancelled_by"`
	Role        ActorRole `json:"cancelled_by_role"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// RescheduleEntry is one append-only audit record per successful reschedule.
type RescheduleEntry struct {
	PreviousSlot  TimeSlot  `json:"previous_time_slot"`
	NewSlot       TimeSlot  `json:"new_time_slot"`
	Reason        string    `json:"reason"`
	RescheduledBy uuid.UUID `json:"rescheduled_by"`
	Role          ActorRole `json:"rescheduled_by_role"`
	RescheduledAt time.Time `json:"rescheduled_at"`
}

type Appointment struct {
	ID                uuid.UUID
	DoctorID          uuid.UUID
	PatientID         uuid.UUID
	Slot              TimeSlot
	Status            Status
	Type              AppointmentType
	Reason            string
	Fee               float64
	Cancellation      *Cancellation
	RescheduleHistory []RescheduleEntry
	AcceptedAt        *time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID                 uuid.UUID
	Name               string
	Specialty          *string
	ConsultationFee    float64
	Approved           bool
	WeeklyAvailability WeeklyAvailability
	// ActiveAppointments and TotalAppointments are maintained in the same
	// transaction as the appointment writes they reflect.
	ActiveAppointments int
	TotalAppointments  int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    *Status
	Limit     int
	Offset    int
}
