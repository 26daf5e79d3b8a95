// Package triage ranks appointments needing staff action into an ordered
// work queue. Priorities are small integer levels rather than a continuous
// score so dashboard colour-coding and grouping stay stable; ties break by
// earliest target date for FIFO fairness.
package triage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vaxport/scheduling-engine/internal/appointment"
)

type UrgencyType string

const (
	ReschedulePending UrgencyType = "reschedule_pending"
	NoDoctor          UrgencyType = "no_doctor"
	ComingSoon        UrgencyType = "coming_soon"
	Overdue           UrgencyType = "overdue"
)

type WorkItem struct {
	AppointmentID   uuid.UUID
	UrgencyType     UrgencyType
	PriorityLevel   int // 1 highest, 5 lowest
	Message         string
	TargetDate      time.Time
	DesiredDate     *time.Time
	DesiredTimeSlot *appointment.TimeBand
}

type Config struct {
	// UrgentWindow bumps reschedule and no-doctor items a level when the
	// target date is this close.
	UrgentWindow time.Duration
	// ComingSoonWindow surfaces already-assigned appointments as reminders.
	ComingSoonWindow time.Duration
}

func DefaultConfig() Config {
	return Config{
		UrgentWindow:     24 * time.Hour,
		ComingSoonWindow: 48 * time.Hour,
	}
}

// Compute classifies every actionable appointment. Rules are evaluated in
// order and the first match wins, so an appointment yields at most one
// work item. Completed, cancelled and refunded appointments never appear.
func Compute(appts []appointment.Appointment, now time.Time, cfg Config) []WorkItem {
	if cfg.UrgentWindow <= 0 {
		cfg.UrgentWindow = DefaultConfig().UrgentWindow
	}
	if cfg.ComingSoonWindow <= 0 {
		cfg.ComingSoonWindow = DefaultConfig().ComingSoonWindow
	}

	var queue []WorkItem
	for _, a := range appts {
		if item, ok := classify(a, now, cfg); ok {
			queue = append(queue, item)
		}
	}

	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].PriorityLevel != queue[j].PriorityLevel {
			return queue[i].PriorityLevel < queue[j].PriorityLevel
		}
		return queue[i].TargetDate.Before(queue[j].TargetDate)
	})
	return queue
}

func classify(a appointment.Appointment, now time.Time, cfg Config) (WorkItem, bool) {
	switch a.Status {
	case appointment.StatusPending, appointment.StatusScheduled, appointment.StatusReschedule:
	default:
		return WorkItem{}, false
	}

	// Rule 1: a pending reschedule request always outranks the state the
	// appointment was in before the request.
	if a.Status == appointment.StatusReschedule {
		target := a.ScheduledDate
		if a.DesiredDate != nil {
			target = *a.DesiredDate
		}
		level := 2
		if target.Sub(now) < cfg.UrgentWindow {
			level = 1
		}
		return WorkItem{
			AppointmentID:   a.ID,
			UrgencyType:     ReschedulePending,
			PriorityLevel:   level,
			Message:         fmt.Sprintf("reschedule requested for %s", describeTarget(target, a.DesiredTimeSlot)),
			TargetDate:      target,
			DesiredDate:     a.DesiredDate,
			DesiredTimeSlot: a.DesiredTimeSlot,
		}, true
	}

	// Rule 2: booked but nobody assigned.
	if a.Status == appointment.StatusPending && a.DoctorID == nil {
		level := 3
		if a.ScheduledDate.Sub(now) < cfg.UrgentWindow {
			level = 2
		}
		return WorkItem{
			AppointmentID: a.ID,
			UrgencyType:   NoDoctor,
			PriorityLevel: level,
			Message:       fmt.Sprintf("no doctor assigned for %s", a.ScheduledDate.Format("2006-01-02")),
			TargetDate:    a.ScheduledDate,
		}, true
	}

	// Rule 3: assigned and imminent, a reminder rather than a blocker.
	until := a.ScheduledDate.Sub(now)
	if a.DoctorID != nil && until >= 0 && until < cfg.ComingSoonWindow {
		return WorkItem{
			AppointmentID: a.ID,
			UrgencyType:   ComingSoon,
			PriorityLevel: 4,
			Message:       fmt.Sprintf("appointment coming up on %s", a.ScheduledDate.Format("2006-01-02")),
			TargetDate:    a.ScheduledDate,
		}, true
	}

	// Rule 4: the target date passed with no action taken.
	if a.Status == appointment.StatusPending && now.After(a.ScheduledDate) {
		return WorkItem{
			AppointmentID: a.ID,
			UrgencyType:   Overdue,
			PriorityLevel: 1,
			Message:       fmt.Sprintf("scheduled date %s passed with no action", a.ScheduledDate.Format("2006-01-02")),
			TargetDate:    a.ScheduledDate,
		}, true
	}

	return WorkItem{}, false
}

func describeTarget(date time.Time, band *appointment.TimeBand) string {
	if band == nil {
		return date.Format("2006-01-02")
	}
	return fmt.Sprintf("%s (%s)", date.Format("2006-01-02"), *band)
}
