package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusReschedule Status = "reschedule"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Active reports whether the status still occupies a dose number in its route.
func (s Status) Active() bool {
	return s != StatusCancelled && s != StatusRefunded
}

// Terminal statuses permit no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

type TimeBand string

const (
	BandMorning   TimeBand = "morning"
	BandAfternoon TimeBand = "afternoon"
	BandEvening   TimeBand = "evening"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FamilyMember is a dependent a patient may book on behalf of.
type FamilyMember struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	Name      string
	Relation  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	CenterID  uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Vaccine struct {
	ID   uuid.UUID
	Name string
	// TotalDoses is the length of one full course. A vaccine row with
	// TotalDoses < 1 is rejected at booking time rather than defaulted.
	TotalDoses int
	Price      float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DoctorSlot is one pre-seeded bookable unit in a doctor's day grid.
// Centers without a seeded grid get virtual slots synthesized by the
// slots resolver; those carry no row here.
type DoctorSlot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime string // "HH:MM"
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID             uuid.UUID
	BookingID      uuid.UUID
	PatientID      uuid.UUID
	FamilyMemberID *uuid.UUID
	VaccineID      uuid.UUID
	CenterID       uuid.UUID
	DoseNumber     int
	Status         Status

	DoctorID *uuid.UUID
	SlotID   *uuid.UUID

	ScheduledDate     time.Time
	ScheduledTimeSlot TimeBand
	// ActualScheduledTime is set together with the doctor assignment and
	// supersedes the coarse time band. "HH:MM".
	ActualScheduledTime *string

	// Reschedule request fields, populated only while Status == reschedule.
	DesiredDate      *time.Time
	DesiredTimeSlot  *TimeBand
	RescheduleReason *string
	RescheduledAt    *time.Time

	PaymentStatus PaymentStatus
	PaymentMethod string
	PaymentAmount float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking is the commercial unit created at checkout. One booking may cover
// a single dose or a whole course upfront.
type Booking struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	FamilyMemberID *uuid.UUID
	VaccineID      uuid.UUID
	CenterID       uuid.UUID
	TotalAmount    float64
	CreatedAt      time.Time

	// Denormalized for route grouping, filled by the repository join.
	VaccineName       string
	VaccineTotalDoses int
	PatientName       string

	Appointments []Appointment // ordered by dose number
}

// Vitals captured when a dose is administered. Recording these is a side
// effect of Complete and never blocks the transition.
type Vitals struct {
	Temperature   *float64
	BloodPressure *string
	Notes         *string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
