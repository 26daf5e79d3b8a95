package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vaxport/scheduling-engine/internal/appointment"
	"github.com/vaxport/scheduling-engine/internal/route"
	"github.com/vaxport/scheduling-engine/internal/slots"
	"github.com/vaxport/scheduling-engine/internal/triage"
)

const dateLayout = "2006-01-02"

func createBookingHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		vaccineID, err := uuid.Parse(req.VaccineID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_vaccine_id", "vaccine_id must be a valid UUID")
			return
		}
		centerID, err := uuid.Parse(req.CenterID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_center_id", "center_id must be a valid UUID")
			return
		}

		booking := appointment.BookingRequest{
			PatientID:     patientID,
			VaccineID:     vaccineID,
			CenterID:      centerID,
			PaymentMethod: req.PaymentMethod,
		}
		if req.FamilyMemberID != "" {
			fmID, err := uuid.Parse(req.FamilyMemberID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_family_member_id", "family_member_id must be a valid UUID")
				return
			}
			booking.FamilyMemberID = &fmID
		}
		for _, d := range req.Doses {
			day, err := time.Parse(dateLayout, d.ScheduledDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "scheduled_date must be YYYY-MM-DD")
				return
			}
			booking.Doses = append(booking.Doses, appointment.DoseRequest{
				DoseNumber:    d.DoseNumber,
				ScheduledDate: day,
				TimeSlot:      appointment.TimeBand(d.TimeSlot),
			})
		}

		created, err := svc.CreateBooking(r.Context(), booking)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			ID:           created.ID,
			TotalAmount:  created.TotalAmount,
			CreatedAt:    created.CreatedAt,
			Appointments: toAppointmentResponses(created.Appointments),
		})
	}
}

// assignHandler serves both a fresh assignment and a reschedule approval;
// the resolver branches on the appointment's current status.
func assignHandler(resolver *slots.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AssignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		var slotID *uuid.UUID
		if req.SlotID != "" {
			id, err := uuid.Parse(req.SlotID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
				return
			}
			slotID = &id
		}

		appt, err := resolver.Assign(r.Context(), appointmentID, doctorID, slotID, req.ActualTime)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func rescheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		desired, err := time.Parse(dateLayout, req.DesiredDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "desired_date must be YYYY-MM-DD")
			return
		}

		appt, err := svc.RequestReschedule(r.Context(), id, desired, appointment.TimeBand(req.DesiredTimeSlot), req.Reason)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func completeHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req CompleteRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		appt, err := svc.Complete(r.Context(), id, appointment.Vitals{
			Temperature:   req.Temperature,
			BloodPressure: req.BloodPressure,
			Notes:         req.Notes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func cancelHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func refundHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		appt, err := svc.Refund(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func urgentQueueHandler(svc *appointment.Service, cfg triage.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.Actionable(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}

		queue := triage.Compute(appts, time.Now(), cfg)
		out := make([]UrgentItemResponse, 0, len(queue))
		for _, item := range queue {
			resp := UrgentItemResponse{
				AppointmentID: item.AppointmentID,
				UrgencyType:   string(item.UrgencyType),
				PriorityLevel: item.PriorityLevel,
				Message:       item.Message,
				TargetDate:    item.TargetDate.Format(dateLayout),
			}
			if item.DesiredDate != nil {
				s := item.DesiredDate.Format(dateLayout)
				resp.DesiredDate = &s
			}
			if item.DesiredTimeSlot != nil {
				s := string(*item.DesiredTimeSlot)
				resp.DesiredTimeSlot = &s
			}
			out = append(out, resp)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func todayHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doctorID, centerID *uuid.UUID
		if v := r.URL.Query().Get("doctor_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			doctorID = &id
		}
		if v := r.URL.Query().Get("center_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_center_id", "center_id must be a valid UUID")
				return
			}
			centerID = &id
		}

		appts, err := svc.Today(r.Context(), time.Now(), doctorID, centerID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func availableSlotsHandler(resolver *slots.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		available, err := resolver.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if available == nil {
			available = []slots.TimeSlot{}
		}
		writeJSON(w, http.StatusOK, available)
	}
}

func patientRoutesHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a valid UUID")
			return
		}
		var familyMemberID *uuid.UUID
		if v := r.URL.Query().Get("family_member_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_family_member_id", "family_member_id must be a valid UUID")
				return
			}
			familyMemberID = &id
		}

		bookings, err := svc.ListBookings(r.Context(), patientID, familyMemberID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		routes, err := route.Group(bookings)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out := make([]RouteResponse, 0, len(routes))
		for _, rt := range routes {
			out = append(out, RouteResponse{
				ID:             rt.ID,
				VaccineName:    rt.VaccineName,
				PatientName:    rt.PatientName,
				CycleIndex:     rt.CycleIndex,
				RequiredDoses:  rt.RequiredDoses,
				CompletedCount: rt.CompletedCount,
				Status:         string(rt.Status),
				TotalAmount:    rt.TotalAmount,
				CreatedAt:      rt.CreatedAt,
				Steps:          route.Steps(rt),
				Appointments:   toAppointmentResponses(rt.Appointments),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
