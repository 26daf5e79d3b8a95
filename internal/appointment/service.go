package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventBookingCreated       = "BOOKING_CREATED"
	EventRescheduleRequested  = "RESCHEDULE_REQUESTED"
	EventRescheduleApproved   = "RESCHEDULE_APPROVED"
	EventAppointmentAssigned  = "APPOINTMENT_ASSIGNED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentRefunded  = "APPOINTMENT_REFUNDED"
)

// ObservationRecorder posts vitals captured when a dose is administered.
// It is an external collaborator; see Complete for its failure policy.
type ObservationRecorder interface {
	RecordObservation(ctx context.Context, appointmentID uuid.UUID, v Vitals) error
}

// NoopRecorder satisfies ObservationRecorder when no vitals backend is wired.
type NoopRecorder struct{}

func (NoopRecorder) RecordObservation(context.Context, uuid.UUID, Vitals) error { return nil }

type Service struct {
	repo     Repository
	recorder ObservationRecorder
	log      zerolog.Logger
}

func NewService(repo Repository, recorder ObservationRecorder, log zerolog.Logger) *Service {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &Service{
		repo:     repo,
		recorder: recorder,
		log:      log.With().Str("component", "appointment").Logger(),
	}
}

type DoseRequest struct {
	DoseNumber    int
	ScheduledDate time.Time
	TimeSlot      TimeBand
}

type BookingRequest struct {
	PatientID      uuid.UUID
	FamilyMemberID *uuid.UUID
	VaccineID      uuid.UUID
	CenterID       uuid.UUID
	PaymentMethod  string
	Doses          []DoseRequest
}

// CreateBooking creates the booking and one pending appointment per
// requested dose. Dose numbers must not collide with an active appointment
// in the same route for the patient identity and vaccine.
func (s *Service) CreateBooking(ctx context.Context, req BookingRequest) (*Booking, error) {
	patient, err := s.repo.GetPatientByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	displayName := patient.Name
	if req.FamilyMemberID != nil {
		member, err := s.repo.GetFamilyMemberByID(ctx, *req.FamilyMemberID)
		if err != nil {
			return nil, err
		}
		if member.PatientID != req.PatientID {
			return nil, validationf("family member %s does not belong to patient %s", member.ID, req.PatientID)
		}
		displayName = member.Name
	}

	vaccine, err := s.repo.GetVaccineByID(ctx, req.VaccineID)
	if err != nil {
		return nil, err
	}
	// No silent dose-count default: a vaccine without a configured series
	// length cannot be booked.
	if vaccine.TotalDoses < 1 {
		return nil, validationf("vaccine %q has no configured dose count", vaccine.Name)
	}

	if len(req.Doses) == 0 {
		return nil, validationf("booking must include at least one dose")
	}
	if req.CenterID == uuid.Nil {
		return nil, validationf("center is required")
	}

	seen := make(map[int]bool, len(req.Doses))
	for _, d := range req.Doses {
		if d.DoseNumber < 1 {
			return nil, validationf("dose number must be >= 1, got %d", d.DoseNumber)
		}
		if seen[d.DoseNumber] {
			return nil, validationf("dose %d appears twice in the booking", d.DoseNumber)
		}
		seen[d.DoseNumber] = true
		if d.ScheduledDate.IsZero() {
			return nil, validationf("dose %d is missing a scheduled date", d.DoseNumber)
		}
		if !validBand(d.TimeSlot) {
			return nil, validationf("dose %d has unknown time slot %q", d.DoseNumber, d.TimeSlot)
		}
	}

	taken, err := s.repo.ListActiveDoseNumbers(ctx, req.PatientID, req.FamilyMemberID, req.VaccineID)
	if err != nil {
		return nil, fmt.Errorf("check active doses: %w", err)
	}
	for _, n := range taken {
		if seen[n] {
			return nil, validationf("dose %d already has an active appointment for this vaccine", n)
		}
	}

	booking := &Booking{
		ID:                uuid.New(),
		PatientID:         req.PatientID,
		FamilyMemberID:    req.FamilyMemberID,
		VaccineID:         req.VaccineID,
		CenterID:          req.CenterID,
		TotalAmount:       vaccine.Price * float64(len(req.Doses)),
		CreatedAt:         time.Now(),
		VaccineName:       vaccine.Name,
		VaccineTotalDoses: vaccine.TotalDoses,
		PatientName:       displayName,
	}
	for _, d := range req.Doses {
		booking.Appointments = append(booking.Appointments, Appointment{
			ID:                uuid.New(),
			BookingID:         booking.ID,
			PatientID:         req.PatientID,
			FamilyMemberID:    req.FamilyMemberID,
			VaccineID:         req.VaccineID,
			CenterID:          req.CenterID,
			DoseNumber:        d.DoseNumber,
			Status:            StatusPending,
			ScheduledDate:     d.ScheduledDate,
			ScheduledTimeSlot: d.TimeSlot,
			PaymentStatus:     PaymentUnpaid,
			PaymentMethod:     req.PaymentMethod,
			PaymentAmount:     vaccine.Price,
		})
	}

	created, err := s.repo.CreateBooking(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	for _, a := range created.Appointments {
		s.logEvent(ctx, a.ID, EventBookingCreated, map[string]any{
			"booking_id":  created.ID.String(),
			"dose_number": a.DoseNumber,
			"vaccine":     vaccine.Name,
		})
	}
	return created, nil
}

// RequestReschedule is patient-initiated. The original scheduled date is
// kept so staff can compare old and new when approving.
func (s *Service) RequestReschedule(ctx context.Context, id uuid.UUID, desiredDate time.Time, desiredBand TimeBand, reason string) (*Appointment, error) {
	if desiredDate.IsZero() {
		return nil, validationf("desired date is required")
	}
	if !validBand(desiredBand) {
		return nil, validationf("unknown time slot %q", desiredBand)
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusReschedule) {
		return nil, &InvalidStateTransitionError{From: appt.Status, Attempted: StatusReschedule}
	}

	updated, err := s.repo.SetRescheduleRequest(ctx, id, appt.Status, desiredDate, desiredBand, reason, time.Now())
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, id, EventRescheduleRequested, map[string]any{
		"desired_date": desiredDate.Format("2006-01-02"),
		"desired_slot": string(desiredBand),
		"reason":       reason,
	})
	return updated, nil
}

// Complete marks a scheduled dose administered. It is only permitted on or
// after the scheduled day. Vitals recording is attempted after the status
// commit; its failure is logged and does not undo the completion.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, vitals Vitals) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusCompleted) {
		return nil, &InvalidStateTransitionError{From: appt.Status, Attempted: StatusCompleted}
	}
	if startOfDay(time.Now()).Before(startOfDay(appt.ScheduledDate)) {
		return nil, validationf("dose is scheduled for %s; completion is allowed on or after that day",
			appt.ScheduledDate.Format("2006-01-02"))
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, StatusCompleted)
	if err != nil {
		return nil, err
	}

	if err := s.recorder.RecordObservation(ctx, id, vitals); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", id).Msg("vitals recording failed, completion stands")
	}

	s.logEvent(ctx, id, EventAppointmentCompleted, map[string]any{
		"dose_number": updated.DoseNumber,
	})
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return nil, &InvalidStateTransitionError{From: appt.Status, Attempted: StatusCancelled}
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, StatusCancelled)
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{
		"previous_status": string(appt.Status),
	})
	return updated, nil
}

// Refund moves a cancelled appointment to refunded and flips its payment
// bookkeeping. The actual money movement is an external collaborator.
func (s *Service) Refund(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, id, StatusCancelled, StatusRefunded)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPaymentStatus(ctx, id, PaymentRefunded); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", id).Msg("payment status update failed after refund")
	}

	s.logEvent(ctx, id, EventAppointmentRefunded, map[string]any{
		"amount": updated.PaymentAmount,
	})
	return updated, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// Actionable returns every appointment the triage engine should consider.
func (s *Service) Actionable(ctx context.Context) ([]Appointment, error) {
	return s.repo.ListActionable(ctx)
}

// Today returns the day's scheduled and completed appointments, optionally
// filtered to one doctor or center.
func (s *Service) Today(ctx context.Context, now time.Time, doctorID, centerID *uuid.UUID) ([]Appointment, error) {
	return s.repo.ListForDay(ctx, startOfDay(now), doctorID, centerID)
}

func (s *Service) ListBookings(ctx context.Context, patientID uuid.UUID, familyMemberID *uuid.UUID) ([]Booking, error) {
	return s.repo.ListBookings(ctx, patientID, familyMemberID)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Stringer("appointment_id", appointmentID).Msg("insert event log")
	}
}

func validBand(b TimeBand) bool {
	switch b {
	case BandMorning, BandAfternoon, BandEvening:
		return true
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
