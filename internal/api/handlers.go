package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careloop/telehealth-scheduling/internal/scheduling"
)

const defaultSlotDuration = 30 * time.Minute

// actorFromRequest resolves the acting identity from headers set by the
// upstream auth layer. System actors may omit the ID.
func actorFromRequest(r *http.Request) (scheduling.Actor, bool) {
	role, ok := scheduling.ParseActorRole(r.Header.Get("X-Actor-Role"))
	if !ok {
		return scheduling.Actor{}, false
	}

	idStr := r.Header.Get("X-Actor-ID")
	if idStr == "" {
		if role == scheduling.RoleSystem {
			return scheduling.Actor{ID: uuid.Nil, Role: role}, true
		}
		return scheduling.Actor{}, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return scheduling.Actor{}, false
	}
	return scheduling.Actor{ID: id, Role: role}, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (scheduling.Actor, bool) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_actor",
			"X-Actor-Role must be patient, doctor or system, with a valid X-Actor-ID")
	}
	return actor, ok
}

func appointmentIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func bookAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		apptType, ok := scheduling.ParseAppointmentType(req.Type)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_type", "type must be video or in_person")
			return
		}

		appt, err := svc.Book(r.Context(), actor, scheduling.BookRequest{
			PatientID: patientID,
			DoctorID:  doctorID,
			Slot:      scheduling.TimeSlot{Start: req.Start, End: req.End},
			Type:      apptType,
			Reason:    req.Reason,
		})
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentIDFromURL(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter scheduling.ListFilter

		q := r.URL.Query()
		if v := q.Get("doctor_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			filter.DoctorID = &id
		}
		if v := q.Get("patient_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			filter.PatientID = &id
		}
		if v := q.Get("status"); v != "" {
			status := scheduling.Status(v)
			filter.Status = &status
		}
		filter.Limit = intQuery(q.Get("limit"))
		filter.Offset = intQuery(q.Get("offset"))

		appts, err := svc.ListAppointments(r.Context(), filter)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func intQuery(v string) int {
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// transitionHandler wraps the accept/confirm/complete/no-show flavours that
// take no payload.
func transitionHandler(fn func(r *http.Request, actor scheduling.Actor, id uuid.UUID) (*scheduling.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := appointmentIDFromURL(w, r)
		if !ok {
			return
		}

		appt, err := fn(r, actor, id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func acceptAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, actor scheduling.Actor, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.Accept(r.Context(), actor, id)
	})
}

func confirmAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, actor scheduling.Actor, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.Confirm(r.Context(), actor, id)
	})
}

func completeAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, actor scheduling.Actor, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.Complete(r.Context(), actor, id)
	})
}

func noShowAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return transitionHandler(func(r *http.Request, actor scheduling.Actor, id uuid.UUID) (*scheduling.Appointment, error) {
		return svc.MarkNoShow(r.Context(), actor, id)
	})
}

func rejectAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := appointmentIDFromURL(w, r)
		if !ok {
			return
		}

		var req RejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Reject(r.Context(), actor, id, req.Note)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := appointmentIDFromURL(w, r)
		if !ok {
			return
		}

		var req CancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Cancel(r.Context(), actor, id, req.Reason)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		id, ok := appointmentIDFromURL(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Reschedule(r.Context(), actor, id,
			scheduling.TimeSlot{Start: req.Start, End: req.End}, req.Reason)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func freeSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		duration := defaultSlotDuration
		if v := r.URL.Query().Get("duration"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive Go duration, e.g. 30m")
				return
			}
			duration = d
		}

		slots, err := svc.FreeSlots(r.Context(), doctorID, date, duration)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		resp := FreeSlotsResponse{
			DoctorID: doctorID,
			Date:     dateStr,
			Slots:    make([]TimeSlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, TimeSlotResponse{Start: s.Start, End: s.End})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
