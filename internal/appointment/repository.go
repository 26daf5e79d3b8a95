package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrFamilyMemberNotFound = errors.New("family member not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrVaccineNotFound      = errors.New("vaccine not found")
	ErrSlotNotFound         = errors.New("slot not found")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrSlotUnavailable means another assignment won the race for the
	// doctor/date/time. The caller is expected to re-fetch available
	// slots and retry with a different one.
	ErrSlotUnavailable = errors.New("slot is no longer available")
)

// AssignmentParams describes one doctor/slot commit. Exactly one of SlotID
// or a virtual ActualTime identifies the time; when SlotID is set the
// repository binds the row, otherwise ActualTime alone is the source of
// truth for the booking's time.
type AssignmentParams struct {
	AppointmentID uuid.UUID
	From          Status
	DoctorID      uuid.UUID
	SlotID        *uuid.UUID
	Date          time.Time
	ActualTime    string // "HH:MM"
}

// Repository contains all DB interactions needed by the engine.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetFamilyMemberByID(ctx context.Context, id uuid.UUID) (*FamilyMember, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetVaccineByID(ctx context.Context, id uuid.UUID) (*Vaccine, error)

	// CreateBooking inserts the booking and its child appointments in one
	// transaction.
	CreateBooking(ctx context.Context, b *Booking) (*Booking, error)
	ListBookings(ctx context.Context, patientID uuid.UUID, familyMemberID *uuid.UUID) ([]Booking, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// ListActiveDoseNumbers returns dose numbers of non-cancelled
	// appointments for the patient identity and vaccine, for duplicate
	// checks at booking time.
	ListActiveDoseNumbers(ctx context.Context, patientID uuid.UUID, familyMemberID *uuid.UUID, vaccineID uuid.UUID) ([]int, error)

	// UpdateStatus is a compare-and-swap on status. A miss is resolved to
	// ErrAppointmentNotFound or InvalidStateTransitionError.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	SetRescheduleRequest(ctx context.Context, id uuid.UUID, from Status, desiredDate time.Time, desiredBand TimeBand, reason string, at time.Time) (*Appointment, error)
	// CommitAssignment atomically sets doctor, slot/time, date and status
	// scheduled, clearing any reschedule request fields, but only while no
	// other non-cancelled appointment holds the same doctor/date/time.
	// Losing the race yields ErrSlotUnavailable.
	CommitAssignment(ctx context.Context, p AssignmentParams) (*Appointment, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error

	// Triage and dashboard reads
	ListActionable(ctx context.Context) ([]Appointment, error)
	ListForDay(ctx context.Context, day time.Time, doctorID, centerID *uuid.UUID) ([]Appointment, error)

	// Slot grid
	ListSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]DoctorSlot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*DoctorSlot, error)
	// ListAssignedForDoctorDate returns non-cancelled appointments already
	// bound to the doctor on that date, used to subtract taken slots.
	ListAssignedForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
