package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaxport/scheduling-engine/internal/appointment"
)

func routeOf(required, cycle int, appts ...appointment.Appointment) Route {
	return Route{
		RequiredDoses: required,
		CycleIndex:    cycle,
		Appointments:  appts,
	}
}

func statuses(steps []Step) []StepStatus {
	out := make([]StepStatus, len(steps))
	for i, s := range steps {
		out[i] = s.Status
	}
	return out
}

func TestSteps_LengthAlwaysRequiredDoses(t *testing.T) {
	steps := Steps(routeOf(3, 0))
	require.Len(t, steps, 3)
	assert.Equal(t, []StepStatus{StepWait, StepWait, StepWait}, statuses(steps))
	assert.Equal(t, "ready to book", steps[0].Description)
	assert.Equal(t, "needs previous dose first", steps[1].Description)
	assert.Equal(t, "needs previous dose first", steps[2].Description)
}

func TestSteps_BookedFirstDoseIsProcess(t *testing.T) {
	steps := Steps(routeOf(3, 0, appt(1, appointment.StatusPending)))
	assert.Equal(t, []StepStatus{StepProcess, StepWait, StepWait}, statuses(steps))
	assert.Equal(t, "booked, awaiting doctor assignment", steps[0].Description)
}

func TestSteps_ScheduledDoseIsProcess(t *testing.T) {
	steps := Steps(routeOf(3, 0, appt(1, appointment.StatusScheduled)))
	assert.Equal(t, StepProcess, steps[0].Status)
	assert.Equal(t, "scheduled", steps[0].Description)
	require.NotNil(t, steps[0].Date)
}

func TestSteps_FinishedDoseUnlocksNext(t *testing.T) {
	steps := Steps(routeOf(3, 0, appt(1, appointment.StatusCompleted)))
	assert.Equal(t, []StepStatus{StepFinish, StepWait, StepWait}, statuses(steps))
	assert.Equal(t, "ready to book next dose", steps[1].Description)
	assert.Equal(t, "needs previous dose first", steps[2].Description)
}

func TestSteps_AtMostOneProcess(t *testing.T) {
	steps := Steps(routeOf(3, 0,
		appt(1, appointment.StatusCompleted),
		appt(2, appointment.StatusScheduled)))

	processes := 0
	for _, s := range steps {
		if s.Status == StepProcess {
			processes++
		}
	}
	assert.Equal(t, 1, processes)
}

func TestSteps_CancelledDoseTreatedAsUnbooked(t *testing.T) {
	steps := Steps(routeOf(3, 0,
		appt(1, appointment.StatusCompleted),
		appt(2, appointment.StatusCancelled)))

	assert.Equal(t, []StepStatus{StepFinish, StepWait, StepWait}, statuses(steps))
	assert.Equal(t, "ready to book next dose", steps[1].Description)
}

func TestSteps_SecondCycleUsesGlobalDoseNumbers(t *testing.T) {
	steps := Steps(routeOf(3, 1, appt(4, appointment.StatusScheduled)))

	require.Len(t, steps, 3)
	assert.Equal(t, 4, steps[0].DoseNumber)
	assert.Equal(t, StepProcess, steps[0].Status)
	assert.Equal(t, 5, steps[1].DoseNumber)
	assert.Equal(t, 6, steps[2].DoseNumber)
}
