// Package route derives dose-cycle groupings from the live appointment set.
// Routes own no storage: they are recomputed on every read, so grouping is
// a pure function and idempotent by construction.
package route

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vaxport/scheduling-engine/internal/appointment"
)

type Status string

const (
	StatusCompleted  Status = "completed"
	StatusInProgress Status = "in_progress"
	StatusCancelled  Status = "cancelled"
)

// Route is one full vaccination course for a vaccine and patient identity.
// Repeat courses land in later cycles: dose 4 of a 3-dose vaccine starts
// cycle 1, a route distinct from cycle 0.
type Route struct {
	ID             string
	VaccineName    string
	PatientName    string
	CycleIndex     int
	RequiredDoses  int
	Appointments   []appointment.Appointment // ordered by dose number
	CompletedCount int
	Status         Status
	TotalAmount    float64
	CreatedAt      time.Time
}

// CycleIndex maps a 1-based dose number onto its cycle.
func CycleIndex(doseNumber, requiredDoses int) int {
	return (doseNumber - 1) / requiredDoses
}

// Group partitions all of a patient's bookings into routes. Every booking
// must carry its vaccine's configured dose count; there is no fallback
// series length.
func Group(bookings []appointment.Booking) ([]Route, error) {
	type accum struct {
		route Route
		// bookings contributing at least one appointment, split by
		// whether any of those appointments is still active, so a
		// booking's amount is counted once and only when live.
		contributing map[uuid.UUID]bool // booking id -> has active appointment
		amounts      map[uuid.UUID]float64
		createdAt    map[uuid.UUID]time.Time
	}

	byKey := make(map[string]*accum)

	for _, b := range bookings {
		if b.VaccineTotalDoses < 1 {
			return nil, &appointment.ValidationError{
				Reason: fmt.Sprintf("vaccine %q has no configured dose count", b.VaccineName),
			}
		}
		for _, a := range b.Appointments {
			cycle := CycleIndex(a.DoseNumber, b.VaccineTotalDoses)
			key := fmt.Sprintf("%s#%s#%d", b.VaccineName, b.PatientName, cycle)

			acc, ok := byKey[key]
			if !ok {
				acc = &accum{
					route: Route{
						ID:            key,
						VaccineName:   b.VaccineName,
						PatientName:   b.PatientName,
						CycleIndex:    cycle,
						RequiredDoses: b.VaccineTotalDoses,
					},
					contributing: make(map[uuid.UUID]bool),
					amounts:      make(map[uuid.UUID]float64),
					createdAt:    make(map[uuid.UUID]time.Time),
				}
				byKey[key] = acc
			}

			acc.route.Appointments = append(acc.route.Appointments, a)
			if a.Status.Active() {
				acc.contributing[b.ID] = true
			} else if _, seen := acc.contributing[b.ID]; !seen {
				acc.contributing[b.ID] = false
			}
			acc.amounts[b.ID] = b.TotalAmount
			acc.createdAt[b.ID] = b.CreatedAt
		}
	}

	routes := make([]Route, 0, len(byKey))
	for _, acc := range byKey {
		r := acc.route
		sort.Slice(r.Appointments, func(i, j int) bool {
			return r.Appointments[i].DoseNumber < r.Appointments[j].DoseNumber
		})

		for id, active := range acc.contributing {
			if active {
				r.TotalAmount += acc.amounts[id]
			}
			if acc.createdAt[id].After(r.CreatedAt) {
				r.CreatedAt = acc.createdAt[id]
			}
		}

		anyActive := false
		for _, a := range r.Appointments {
			if a.Status == appointment.StatusCompleted {
				r.CompletedCount++
			}
			if a.Status.Active() {
				anyActive = true
			}
		}

		switch {
		case r.CompletedCount >= r.RequiredDoses:
			r.Status = StatusCompleted
		case !anyActive:
			r.Status = StatusCancelled
		default:
			r.Status = StatusInProgress
		}

		routes = append(routes, r)
	}

	sort.Slice(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if a.PatientName != b.PatientName {
			return a.PatientName < b.PatientName
		}
		if a.VaccineName != b.VaccineName {
			return a.VaccineName < b.VaccineName
		}
		return a.CycleIndex < b.CycleIndex
	})
	return routes, nil
}
