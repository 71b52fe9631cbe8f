package scheduling

import "errors"

// Validation errors (bad request class).
var (
	ErrInvalidSlot      = errors.New("slot start must be before slot end")
	ErrSlotInPast       = errors.New("slot must be in the future")
	ErrSlotSpansDays    = errors.New("slot must start and end on the same day")
	ErrReasonRequired   = errors.New("a reason is required")
	ErrNoteRequired     = errors.New("a rejection note is required")
	ErrReasonNotAllowed = errors.New("cancellation reason not allowed for this role")
)

// Conflict errors. Each availability failure is distinct so callers can tell
// the user which check failed.
var (
	ErrDayUnavailable    = errors.New("doctor has no open hours on this day")
	ErrOutsideHours      = errors.New("slot is outside the doctor's open hours")
	ErrSlotTaken         = errors.New("doctor already has an appointment overlapping this slot")
	ErrCalendarBusy      = errors.New("doctor's calendar is being updated, retry shortly")
	ErrDoctorNotApproved = errors.New("doctor is not approved for bookings")
)

// Ownership and state errors.
var (
	ErrNotParty          = errors.New("actor is not a party to this appointment")
	ErrRoleNotAllowed    = errors.New("role is not allowed to perform this action")
	ErrTerminalStatus    = errors.New("cannot transition a terminal appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
)
