package route

import (
	"time"

	"github.com/vaxport/scheduling-engine/internal/appointment"
)

type StepStatus string

const (
	StepFinish  StepStatus = "finish"
	StepProcess StepStatus = "process"
	StepWait    StepStatus = "wait"
)

// Step drives one segment of the dose progress indicator.
type Step struct {
	DoseNumber  int        `json:"dose_number"`
	Status      StepStatus `json:"status"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date,omitempty"`
}

// Steps expands a route into exactly RequiredDoses steps. Sequencing is
// enforced here: a dose is only "ready to book" once its predecessor is
// finished.
func Steps(r Route) []Step {
	byDose := make(map[int]appointment.Appointment, len(r.Appointments))
	for _, a := range r.Appointments {
		if !a.Status.Active() && a.Status != appointment.StatusCompleted {
			continue
		}
		// Dose-number uniqueness among active appointments is enforced at
		// booking time, so the last write can only replace a cancelled one.
		byDose[a.DoseNumber] = a
	}

	steps := make([]Step, 0, r.RequiredDoses)
	for i := 1; i <= r.RequiredDoses; i++ {
		globalDose := r.CycleIndex*r.RequiredDoses + i

		if a, ok := byDose[globalDose]; ok {
			date := a.ScheduledDate
			step := Step{DoseNumber: globalDose, Date: &date}
			switch a.Status {
			case appointment.StatusCompleted:
				step.Status = StepFinish
				step.Description = "dose administered"
			case appointment.StatusScheduled:
				step.Status = StepProcess
				step.Description = "scheduled"
			case appointment.StatusReschedule:
				step.Status = StepProcess
				step.Description = "reschedule requested"
			default:
				step.Status = StepProcess
				step.Description = "booked, awaiting doctor assignment"
			}
			steps = append(steps, step)
			continue
		}

		step := Step{DoseNumber: globalDose, Status: StepWait}
		switch {
		case i == 1:
			step.Description = "ready to book"
		case len(steps) > 0 && steps[i-2].Status == StepFinish:
			step.Description = "ready to book next dose"
		default:
			step.Description = "needs previous dose first"
		}
		steps = append(steps, step)
	}
	return steps
}
