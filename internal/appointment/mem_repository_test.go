package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository used by the service and resolver
// tests. It mirrors the conditional-update semantics of the pg
// implementation, including the slot-conflict guard in CommitAssignment.
type memRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]Patient
	members  map[uuid.UUID]FamilyMember
	doctors  map[uuid.UUID]Doctor
	vaccines map[uuid.UUID]Vaccine
	bookings map[uuid.UUID]Booking
	appts    map[uuid.UUID]*Appointment
	slots    map[uuid.UUID]DoctorSlot
	events   []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients: make(map[uuid.UUID]Patient),
		members:  make(map[uuid.UUID]FamilyMember),
		doctors:  make(map[uuid.UUID]Doctor),
		vaccines: make(map[uuid.UUID]Vaccine),
		bookings: make(map[uuid.UUID]Booking),
		appts:    make(map[uuid.UUID]*Appointment),
		slots:    make(map[uuid.UUID]DoctorSlot),
	}
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memRepo) GetFamilyMemberByID(_ context.Context, id uuid.UUID) (*FamilyMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fm, ok := m.members[id]
	if !ok {
		return nil, ErrFamilyMemberNotFound
	}
	return &fm, nil
}

func (m *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memRepo) GetVaccineByID(_ context.Context, id uuid.UUID) (*Vaccine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vaccines[id]
	if !ok {
		return nil, ErrVaccineNotFound
	}
	return &v, nil
}

func (m *memRepo) CreateBooking(_ context.Context, b *Booking) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	for i := range b.Appointments {
		a := b.Appointments[i]
		m.appts[a.ID] = &a
	}
	return b, nil
}

func (m *memRepo) ListBookings(_ context.Context, patientID uuid.UUID, familyMemberID *uuid.UUID) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.PatientID != patientID {
			continue
		}
		if (b.FamilyMemberID == nil) != (familyMemberID == nil) {
			continue
		}
		if familyMemberID != nil && *b.FamilyMemberID != *familyMemberID {
			continue
		}
		b.Appointments = nil
		for _, a := range m.appts {
			if a.BookingID == b.ID {
				b.Appointments = append(b.Appointments, *a)
			}
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) ListActiveDoseNumbers(_ context.Context, patientID uuid.UUID, familyMemberID *uuid.UUID, vaccineID uuid.UUID) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var doses []int
	for _, a := range m.appts {
		if a.PatientID != patientID || a.VaccineID != vaccineID || !a.Status.Active() {
			continue
		}
		if (a.FamilyMemberID == nil) != (familyMemberID == nil) {
			continue
		}
		if familyMemberID != nil && *a.FamilyMemberID != *familyMemberID {
			continue
		}
		doses = append(doses, a.DoseNumber)
	}
	return doses, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, &InvalidStateTransitionError{From: a.Status, Attempted: to}
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) SetRescheduleRequest(_ context.Context, id uuid.UUID, from Status, desiredDate time.Time, desiredBand TimeBand, reason string, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, &InvalidStateTransitionError{From: a.Status, Attempted: StatusReschedule}
	}
	a.Status = StatusReschedule
	a.DesiredDate = &desiredDate
	a.DesiredTimeSlot = &desiredBand
	a.RescheduleReason = &reason
	a.RescheduledAt = &at
	cp := *a
	return &cp, nil
}

func (m *memRepo) CommitAssignment(_ context.Context, p AssignmentParams) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[p.AppointmentID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != p.From {
		return nil, &InvalidStateTransitionError{From: a.Status, Attempted: StatusScheduled}
	}
	for _, other := range m.appts {
		if other.ID == p.AppointmentID || !other.Status.Active() {
			continue
		}
		if other.DoctorID == nil || *other.DoctorID != p.DoctorID || !other.ScheduledDate.Equal(p.Date) {
			continue
		}
		if p.SlotID != nil && other.SlotID != nil && *other.SlotID == *p.SlotID {
			return nil, ErrSlotUnavailable
		}
		if other.ActualScheduledTime != nil && *other.ActualScheduledTime == p.ActualTime {
			return nil, ErrSlotUnavailable
		}
	}
	doctorID := p.DoctorID
	at := p.ActualTime
	a.Status = StatusScheduled
	a.DoctorID = &doctorID
	a.SlotID = p.SlotID
	a.ScheduledDate = p.Date
	a.ActualScheduledTime = &at
	a.DesiredDate = nil
	a.DesiredTimeSlot = nil
	a.RescheduleReason = nil
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (m *memRepo) SetPaymentStatus(_ context.Context, id uuid.UUID, status PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.PaymentStatus = status
	return nil
}

func (m *memRepo) ListActionable(_ context.Context) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		switch a.Status {
		case StatusPending, StatusScheduled, StatusReschedule:
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) ListForDay(_ context.Context, day time.Time, doctorID, centerID *uuid.UUID) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.Status != StatusScheduled && a.Status != StatusCompleted {
			continue
		}
		if !a.ScheduledDate.Equal(day) {
			continue
		}
		if doctorID != nil && (a.DoctorID == nil || *a.DoctorID != *doctorID) {
			continue
		}
		if centerID != nil && a.CenterID != *centerID {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) ListSlots(_ context.Context, doctorID uuid.UUID, date time.Time) ([]DoctorSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DoctorSlot
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.Date.Equal(date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*DoctorSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memRepo) ListAssignedForDoctorDate(_ context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if !a.Status.Active() || a.DoctorID == nil {
			continue
		}
		if *a.DoctorID == doctorID && a.ScheduledDate.Equal(date) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}
