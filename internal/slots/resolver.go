// Package slots computes doctor availability and commits assignments. It is
// the single write path that moves an appointment to scheduled, for both a
// fresh assignment and a reschedule approval.
package slots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vaxport/scheduling-engine/internal/appointment"
	redisclient "github.com/vaxport/scheduling-engine/internal/redis"
)

// Store is the slice of the repository the resolver needs.
type Store interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*appointment.DoctorSlot, error)
	ListSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]appointment.DoctorSlot, error)
	ListAssignedForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]appointment.Appointment, error)
	CommitAssignment(ctx context.Context, p appointment.AssignmentParams) (*appointment.Appointment, error)
	InsertEvent(ctx context.Context, ev appointment.EventLog) error
}

// TimeSlot is one bookable unit offered to staff. Virtual slots carry no
// SlotID: they are synthesized from the clinic cadence when the doctor has
// no seeded grid for the date, and are identified by their start time.
type TimeSlot struct {
	SlotID    *uuid.UUID `json:"slot_id,omitempty"`
	DoctorID  uuid.UUID  `json:"doctor_id"`
	Date      time.Time  `json:"date"`
	StartTime string     `json:"start_time"` // "HH:MM"
}

type Options struct {
	Cadence     time.Duration
	ClinicOpen  string // "HH:MM"
	ClinicClose string // "HH:MM"
}

type Resolver struct {
	store  Store
	locker redisclient.Locker
	log    zerolog.Logger

	cadence time.Duration
	openAt  time.Duration // offset from midnight
	closeAt time.Duration
}

func NewResolver(store Store, locker redisclient.Locker, opts Options, log zerolog.Logger) (*Resolver, error) {
	open, err := parseClock(opts.ClinicOpen)
	if err != nil {
		return nil, fmt.Errorf("clinic open: %w", err)
	}
	closeAt, err := parseClock(opts.ClinicClose)
	if err != nil {
		return nil, fmt.Errorf("clinic close: %w", err)
	}
	if closeAt <= open {
		return nil, fmt.Errorf("clinic close %s is not after open %s", opts.ClinicClose, opts.ClinicOpen)
	}
	if opts.Cadence <= 0 {
		opts.Cadence = time.Hour
	}
	return &Resolver{
		store:   store,
		locker:  locker,
		log:     log.With().Str("component", "slots").Logger(),
		cadence: opts.Cadence,
		openAt:  open,
		closeAt: closeAt,
	}, nil
}

// AvailableSlots returns the doctor's open slots for the date: the seeded
// grid minus anything bound to a non-cancelled appointment, or virtual
// cadence slots when no grid exists.
func (r *Resolver) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	if _, err := r.store.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}
	date = dateOnly(date)

	assigned, err := r.store.ListAssignedForDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list assigned: %w", err)
	}
	takenSlots := make(map[uuid.UUID]bool)
	takenTimes := make(map[string]bool)
	for _, a := range assigned {
		if a.SlotID != nil {
			takenSlots[*a.SlotID] = true
		}
		if a.ActualScheduledTime != nil {
			takenTimes[*a.ActualScheduledTime] = true
		}
	}

	seeded, err := r.store.ListSlots(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	if len(seeded) > 0 {
		available := make([]TimeSlot, 0, len(seeded))
		for _, s := range seeded {
			if takenSlots[s.ID] || takenTimes[s.StartTime] {
				continue
			}
			id := s.ID
			available = append(available, TimeSlot{
				SlotID:    &id,
				DoctorID:  doctorID,
				Date:      date,
				StartTime: s.StartTime,
			})
		}
		return available, nil
	}

	// No seeded grid: synthesize virtual slots so the center can operate
	// without a pre-populated slot table.
	var available []TimeSlot
	for at := r.openAt; at < r.closeAt; at += r.cadence {
		start := formatClock(at)
		if takenTimes[start] {
			continue
		}
		available = append(available, TimeSlot{
			DoctorID:  doctorID,
			Date:      date,
			StartTime: start,
		})
	}
	return available, nil
}

// Assign commits a doctor and time to an appointment. A pending appointment
// is assigned against its booked date; a reschedule request is approved
// against its desired date, clearing the request fields on success. The
// commit re-validates availability under the lock rather than trusting the
// caller's snapshot; the loser of a race gets ErrSlotUnavailable.
func (r *Resolver) Assign(ctx context.Context, appointmentID, doctorID uuid.UUID, slotID *uuid.UUID, actualTime string) (*appointment.Appointment, error) {
	appt, err := r.store.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	var targetDate time.Time
	var event string
	switch appt.Status {
	case appointment.StatusPending:
		targetDate = dateOnly(appt.ScheduledDate)
		event = appointment.EventAppointmentAssigned
	case appointment.StatusReschedule:
		if appt.DesiredDate == nil {
			return nil, &appointment.ValidationError{Reason: "reschedule request has no desired date"}
		}
		targetDate = dateOnly(*appt.DesiredDate)
		event = appointment.EventRescheduleApproved
	default:
		return nil, &appointment.InvalidStateTransitionError{From: appt.Status, Attempted: appointment.StatusScheduled}
	}

	if _, err := r.store.GetDoctorByID(ctx, doctorID); err != nil {
		return nil, err
	}

	if slotID != nil {
		slot, err := r.store.GetSlotByID(ctx, *slotID)
		if err != nil {
			return nil, err
		}
		if slot.DoctorID != doctorID {
			return nil, &appointment.ValidationError{Reason: "slot belongs to a different doctor"}
		}
		if !dateOnly(slot.Date).Equal(targetDate) {
			return nil, &appointment.ValidationError{
				Reason: fmt.Sprintf("slot is on %s, not the target date %s",
					slot.Date.Format("2006-01-02"), targetDate.Format("2006-01-02")),
			}
		}
		actualTime = slot.StartTime
	} else {
		if _, err := parseClock(actualTime); err != nil {
			return nil, &appointment.ValidationError{Reason: fmt.Sprintf("invalid time %q", actualTime)}
		}
	}

	lockKey := fmt.Sprintf("%s:%s:%s", doctorID, targetDate.Format("2006-01-02"), actualTime)

	var committed *appointment.Appointment
	err = r.locker.WithAssignmentLock(ctx, lockKey, func(lockCtx context.Context) error {
		// Re-check inside the critical section; the client's slot list may
		// be stale.
		assigned, err := r.store.ListAssignedForDoctorDate(lockCtx, doctorID, targetDate)
		if err != nil {
			return fmt.Errorf("recheck availability: %w", err)
		}
		for _, other := range assigned {
			if other.ID == appointmentID {
				continue
			}
			if slotID != nil && other.SlotID != nil && *other.SlotID == *slotID {
				return appointment.ErrSlotUnavailable
			}
			if other.ActualScheduledTime != nil && *other.ActualScheduledTime == actualTime {
				return appointment.ErrSlotUnavailable
			}
		}

		committed, err = r.store.CommitAssignment(lockCtx, appointment.AssignmentParams{
			AppointmentID: appointmentID,
			From:          appt.Status,
			DoctorID:      doctorID,
			SlotID:        slotID,
			Date:          targetDate,
			ActualTime:    actualTime,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			// Someone else is mid-commit on the same slot; to the caller
			// that is the same retryable condition.
			return nil, appointment.ErrSlotUnavailable
		}
		return nil, err
	}

	r.logAssignment(ctx, committed, event, targetDate, actualTime)
	return committed, nil
}

func (r *Resolver) logAssignment(ctx context.Context, appt *appointment.Appointment, event string, date time.Time, at string) {
	payload, err := json.Marshal(map[string]any{
		"doctor_id": appt.DoctorID.String(),
		"date":      date.Format("2006-01-02"),
		"time":      at,
	})
	if err != nil {
		payload = nil
	}
	apptID := appt.ID
	ev := appointment.EventLog{
		EventType:     event,
		AppointmentID: &apptID,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
	if err := r.store.InsertEvent(ctx, ev); err != nil {
		r.log.Warn().Err(err).Str("event", event).Stringer("appointment_id", appt.ID).Msg("insert event log")
	}
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
