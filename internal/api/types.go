package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/vaxport/scheduling-engine/internal/appointment"
	"github.com/vaxport/scheduling-engine/internal/route"
)

type DoseRequest struct {
	DoseNumber    int    `json:"dose_number"`
	ScheduledDate string `json:"scheduled_date"` // YYYY-MM-DD
	TimeSlot      string `json:"time_slot"`      // morning|afternoon|evening
}

type CreateBookingRequest struct {
	PatientID      string        `json:"patient_id"`
	FamilyMemberID string        `json:"family_member_id,omitempty"`
	VaccineID      string        `json:"vaccine_id"`
	CenterID       string        `json:"center_id"`
	PaymentMethod  string        `json:"payment_method"`
	Doses          []DoseRequest `json:"doses"`
}

type AssignRequest struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	SlotID        string `json:"slot_id,omitempty"`
	ActualTime    string `json:"actual_time,omitempty"` // HH:MM, required for virtual slots
}

type RescheduleRequest struct {
	DesiredDate     string `json:"desired_date"` // YYYY-MM-DD
	DesiredTimeSlot string `json:"desired_time_slot"`
	Reason          string `json:"reason,omitempty"`
}

type CompleteRequest struct {
	Temperature   *float64 `json:"temperature,omitempty"`
	BloodPressure *string  `json:"blood_pressure,omitempty"`
	Notes         *string  `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID                  uuid.UUID  `json:"id"`
	BookingID           uuid.UUID  `json:"booking_id"`
	PatientID           uuid.UUID  `json:"patient_id"`
	FamilyMemberID      *uuid.UUID `json:"family_member_id,omitempty"`
	VaccineID           uuid.UUID  `json:"vaccine_id"`
	CenterID            uuid.UUID  `json:"center_id"`
	DoseNumber          int        `json:"dose_number"`
	Status              string     `json:"status"`
	DoctorID            *uuid.UUID `json:"doctor_id,omitempty"`
	SlotID              *uuid.UUID `json:"slot_id,omitempty"`
	ScheduledDate       string     `json:"scheduled_date"`
	ScheduledTimeSlot   string     `json:"scheduled_time_slot,omitempty"`
	ActualScheduledTime *string    `json:"actual_scheduled_time,omitempty"`
	DesiredDate         *string    `json:"desired_date,omitempty"`
	DesiredTimeSlot     *string    `json:"desired_time_slot,omitempty"`
	RescheduleReason    *string    `json:"reschedule_reason,omitempty"`
	PaymentStatus       string     `json:"payment_status"`
	PaymentMethod       string     `json:"payment_method,omitempty"`
	PaymentAmount       float64    `json:"payment_amount"`
}

type BookingResponse struct {
	ID           uuid.UUID             `json:"id"`
	TotalAmount  float64               `json:"total_amount"`
	CreatedAt    time.Time             `json:"created_at"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type UrgentItemResponse struct {
	AppointmentID   uuid.UUID `json:"appointment_id"`
	UrgencyType     string    `json:"urgency_type"`
	PriorityLevel   int       `json:"priority_level"`
	Message         string    `json:"message"`
	TargetDate      string    `json:"target_date"`
	DesiredDate     *string   `json:"desired_date,omitempty"`
	DesiredTimeSlot *string   `json:"desired_time_slot,omitempty"`
}

type RouteResponse struct {
	ID             string                `json:"id"`
	VaccineName    string                `json:"vaccine_name"`
	PatientName    string                `json:"patient_name"`
	CycleIndex     int                   `json:"cycle_index"`
	RequiredDoses  int                   `json:"required_doses"`
	CompletedCount int                   `json:"completed_count"`
	Status         string                `json:"status"`
	TotalAmount    float64               `json:"total_amount"`
	CreatedAt      time.Time             `json:"created_at"`
	Steps          []route.Step          `json:"steps"`
	Appointments   []AppointmentResponse `json:"appointments"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:                  a.ID,
		BookingID:           a.BookingID,
		PatientID:           a.PatientID,
		FamilyMemberID:      a.FamilyMemberID,
		VaccineID:           a.VaccineID,
		CenterID:            a.CenterID,
		DoseNumber:          a.DoseNumber,
		Status:              string(a.Status),
		DoctorID:            a.DoctorID,
		SlotID:              a.SlotID,
		ScheduledDate:       a.ScheduledDate.Format("2006-01-02"),
		ScheduledTimeSlot:   string(a.ScheduledTimeSlot),
		ActualScheduledTime: a.ActualScheduledTime,
		RescheduleReason:    a.RescheduleReason,
		PaymentStatus:       string(a.PaymentStatus),
		PaymentMethod:       a.PaymentMethod,
		PaymentAmount:       a.PaymentAmount,
	}
	if a.DesiredDate != nil {
		s := a.DesiredDate.Format("2006-01-02")
		resp.DesiredDate = &s
	}
	if a.DesiredTimeSlot != nil {
		s := string(*a.DesiredTimeSlot)
		resp.DesiredTimeSlot = &s
	}
	return resp
}

func toAppointmentResponses(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}
