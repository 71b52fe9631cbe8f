package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careloop/telehealth-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Type      string    `json:"type"`
	Reason    string    `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason string    `json:"reason"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type RejectRequest struct {
	Note string `json:"note"`
}

type TimeSlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type CancellationResponse struct {
	Reason      string    `json:"reason"`
	CancelledBy uuid.UUID `json:"cancelled_by"`
	Role        string    `json:"cancelled_by_role"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type RescheduleEntryResponse struct {
	PreviousSlot  TimeSlotResponse `json:"previous_time_slot"`
	NewSlot       TimeSlotResponse `json:"new_time_slot"`
	Reason        string           `json:"reason"`
	RescheduledBy uuid.UUID        `json:"rescheduled_by"`
	Role          string           `json:"rescheduled_by_role"`
	RescheduledAt time.Time        `json:"rescheduled_at"`
}

type AppointmentResponse struct {
	ID                uuid.UUID                 `json:"id"`
	DoctorID          uuid.UUID                 `json:"doctor_id"`
	PatientID         uuid.UUID                 `json:"patient_id"`
	Slot              TimeSlotResponse          `json:"slot"`
	Status            string                    `json:"status"`
	Type              string                    `json:"type"`
	Reason            string                    `json:"reason,omitempty"`
	Fee               float64                   `json:"fee"`
	Cancellation      *CancellationResponse     `json:"cancellation,omitempty"`
	RescheduleHistory []RescheduleEntryResponse `json:"reschedule_history,omitempty"`
	AcceptedAt        *time.Time                `json:"accepted_at,omitempty"`
	CompletedAt       *time.Time                `json:"completed_at,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

type FreeSlotsResponse struct {
	DoctorID uuid.UUID          `json:"doctor_id"`
	Date     string             `json:"date"`
	Slots    []TimeSlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:          a.ID,
		DoctorID:    a.DoctorID,
		PatientID:   a.PatientID,
		Slot:        TimeSlotResponse{Start: a.Slot.Start, End: a.Slot.End},
		Status:      string(a.Status),
		Type:        string(a.Type),
		Reason:      a.Reason,
		Fee:         a.Fee,
		AcceptedAt:  a.AcceptedAt,
		CompletedAt: a.CompletedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.Cancellation != nil {
		resp.Cancellation = &CancellationResponse{
			Reason:      a.Cancellation.Reason,
			CancelledBy: a.Cancellation.CancelledBy,
			Role:        string(a.Cancellation.Role),
			CancelledAt: a.Cancellation.CancelledAt,
		}
	}
	for _, e := range a.RescheduleHistory {
		resp.RescheduleHistory = append(resp.RescheduleHistory, RescheduleEntryResponse{
			PreviousSlot:  TimeSlotResponse{Start: e.PreviousSlot.Start, End: e.PreviousSlot.End},
			NewSlot:       TimeSlotResponse{Start: e.NewSlot.Start, End: e.NewSlot.End},
			Reason:        e.Reason,
			RescheduledBy: e.RescheduledBy,
			Role:          string(e.Role),
			RescheduledAt: e.RescheduledAt,
		})
	}
	return resp
}
