package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(offset int) time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

type fixture struct {
	repo    *memRepo
	svc     *Service
	patient Patient
	vaccine Vaccine
	center  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()

	patient := Patient{ID: uuid.New(), Name: "Ana Ruiz"}
	repo.patients[patient.ID] = patient

	vaccine := Vaccine{ID: uuid.New(), Name: "Hepatitis B", TotalDoses: 3, Price: 45}
	repo.vaccines[vaccine.ID] = vaccine

	return &fixture{
		repo:    repo,
		svc:     NewService(repo, nil, zerolog.Nop()),
		patient: patient,
		vaccine: vaccine,
		center:  uuid.New(),
	}
}

func (f *fixture) book(t *testing.T, doses ...DoseRequest) *Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), BookingRequest{
		PatientID:     f.patient.ID,
		VaccineID:     f.vaccine.ID,
		CenterID:      f.center,
		PaymentMethod: "cash",
		Doses:         doses,
	})
	require.NoError(t, err)
	return b
}

func TestCreateBooking_CreatesPendingAppointments(t *testing.T) {
	f := newFixture(t)

	b := f.book(t,
		DoseRequest{DoseNumber: 1, ScheduledDate: day(1), TimeSlot: BandMorning},
		DoseRequest{DoseNumber: 2, ScheduledDate: day(30), TimeSlot: BandAfternoon},
	)

	require.Len(t, b.Appointments, 2)
	for _, a := range b.Appointments {
		assert.Equal(t, StatusPending, a.Status)
		assert.Nil(t, a.DoctorID)
		assert.Nil(t, a.SlotID)
		assert.Equal(t, PaymentUnpaid, a.PaymentStatus)
	}
	assert.Equal(t, 90.0, b.TotalAmount)
}

func TestCreateBooking_RejectsDuplicateDoseInRequest(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBooking(context.Background(), BookingRequest{
		PatientID: f.patient.ID,
		VaccineID: f.vaccine.ID,
		CenterID:  f.center,
		Doses: []DoseRequest{
			{DoseNumber: 1, ScheduledDate: day(1), TimeSlot: BandMorning},
			{DoseNumber: 1, ScheduledDate: day(2), TimeSlot: BandMorning},
		},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCreateBooking_RejectsDoseCollidingWithActiveAppointment(t *testing.T) {
	f := newFixture(t)
	f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(1), TimeSlot: BandMorning})

	_, err := f.svc.CreateBooking(context.Background(), BookingRequest{
		PatientID: f.patient.ID,
		VaccineID: f.vaccine.ID,
		CenterID:  f.center,
		Doses:     []DoseRequest{{DoseNumber: 1, ScheduledDate: day(5), TimeSlot: BandMorning}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "dose 1")
}

func TestCreateBooking_AllowsRebookingAfterCancellation(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(1), TimeSlot: BandMorning})

	_, err := f.svc.Cancel(context.Background(), b.Appointments[0].ID)
	require.NoError(t, err)

	f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(3), TimeSlot: BandMorning})
}

func TestCreateBooking_RejectsVaccineWithoutDoseCount(t *testing.T) {
	f := newFixture(t)
	broken := Vaccine{ID: uuid.New(), Name: "Mystery", TotalDoses: 0}
	f.repo.vaccines[broken.ID] = broken

	_, err := f.svc.CreateBooking(context.Background(), BookingRequest{
		PatientID: f.patient.ID,
		VaccineID: broken.ID,
		CenterID:  f.center,
		Doses:     []DoseRequest{{DoseNumber: 1, ScheduledDate: day(1), TimeSlot: BandMorning}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "dose count")
}

func TestCreateBooking_RejectsForeignFamilyMember(t *testing.T) {
	f := newFixture(t)
	other := Patient{ID: uuid.New(), Name: "Someone Else"}
	f.repo.patients[other.ID] = other
	member := FamilyMember{ID: uuid.New(), PatientID: other.ID, Name: "Kid"}
	f.repo.members[member.ID] = member

	_, err := f.svc.CreateBooking(context.Background(), BookingRequest{
		PatientID:      f.patient.ID,
		FamilyMemberID: &member.ID,
		VaccineID:      f.vaccine.ID,
		CenterID:       f.center,
		Doses:          []DoseRequest{{DoseNumber: 1, ScheduledDate: day(1), TimeSlot: BandMorning}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestRequestReschedule_KeepsOriginalDate(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(2), TimeSlot: BandMorning})
	id := b.Appointments[0].ID

	updated, err := f.svc.RequestReschedule(context.Background(), id, day(7), BandAfternoon, "travel")
	require.NoError(t, err)

	assert.Equal(t, StatusReschedule, updated.Status)
	require.NotNil(t, updated.DesiredDate)
	assert.True(t, updated.DesiredDate.Equal(day(7)))
	assert.True(t, updated.ScheduledDate.Equal(day(2)), "original date kept for the approval view")
	require.NotNil(t, updated.RescheduleReason)
	assert.Equal(t, "travel", *updated.RescheduleReason)
}

func TestRequestReschedule_RejectedFromCompleted(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(0), TimeSlot: BandMorning})
	id := b.Appointments[0].ID
	f.repo.appts[id].Status = StatusCompleted

	_, err := f.svc.RequestReschedule(context.Background(), id, day(7), BandMorning, "")

	var terr *InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusCompleted, terr.From)
}

func TestComplete_RejectedBeforeScheduledDay(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(3), TimeSlot: BandMorning})
	id := b.Appointments[0].ID
	f.repo.appts[id].Status = StatusScheduled

	_, err := f.svc.Complete(context.Background(), id, Vitals{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestComplete_OnCancelledFailsAndStateUnchanged(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(0), TimeSlot: BandMorning})
	id := b.Appointments[0].ID

	_, err := f.svc.Cancel(context.Background(), id)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), id, Vitals{})

	var terr *InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusCancelled, terr.From)
	assert.Equal(t, StatusCompleted, terr.Attempted)

	current, err := f.svc.GetAppointment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, current.Status)
}

type failingRecorder struct{}

func (failingRecorder) RecordObservation(context.Context, uuid.UUID, Vitals) error {
	return errors.New("observations service unreachable")
}

func TestComplete_VitalsFailureDoesNotBlockCompletion(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, failingRecorder{}, zerolog.Nop())

	b := f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(0), TimeSlot: BandMorning})
	id := b.Appointments[0].ID
	f.repo.appts[id].Status = StatusScheduled

	temp := 36.8
	updated, err := svc.Complete(context.Background(), id, Vitals{Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)
}

func TestRefund_OnlyFromCancelled(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, DoseRequest{DoseNumber: 1, ScheduledDate: day(1), TimeSlot: BandMorning})
	id := b.Appointments[0].ID

	_, err := f.svc.Refund(context.Background(), id)
	var terr *InvalidStateTransitionError
	require.ErrorAs(t, err, &terr)

	_, err = f.svc.Cancel(context.Background(), id)
	require.NoError(t, err)

	refunded, err := f.svc.Refund(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, refunded.Status)
	assert.Equal(t, PaymentRefunded, f.repo.appts[id].PaymentStatus)

	// Refunded is terminal.
	_, err = f.svc.Cancel(context.Background(), id)
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusRefunded, terr.From)
}

func TestToday_FiltersByDoctorAndStatus(t *testing.T) {
	f := newFixture(t)
	doctor := uuid.New()

	b := f.book(t,
		DoseRequest{DoseNumber: 1, ScheduledDate: day(0), TimeSlot: BandMorning},
		DoseRequest{DoseNumber: 2, ScheduledDate: day(0), TimeSlot: BandMorning},
		DoseRequest{DoseNumber: 3, ScheduledDate: day(1), TimeSlot: BandMorning},
	)

	first := f.repo.appts[b.Appointments[0].ID]
	first.Status = StatusScheduled
	first.DoctorID = &doctor

	appts, err := f.svc.Today(context.Background(), time.Now(), &doctor, nil)
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, b.Appointments[0].ID, appts[0].ID)
}
