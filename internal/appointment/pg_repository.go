package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, booking_id, patient_id, family_member_id, vaccine_id, center_id,
	dose_number, status, doctor_id, slot_id,
	scheduled_date, scheduled_time_slot, actual_scheduled_time,
	desired_date, desired_time_slot, reschedule_reason, rescheduled_at,
	payment_status, payment_method, payment_amount,
	created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanFamilyMember(row pgx.Row) (*FamilyMember, error) {
	var m FamilyMember
	err := row.Scan(&m.ID, &m.PatientID, &m.Name, &m.Relation, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFamilyMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.CenterID, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanVaccine(row pgx.Row) (*Vaccine, error) {
	var v Vaccine
	err := row.Scan(&v.ID, &v.Name, &v.TotalDoses, &v.Price, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVaccineNotFound
		}
		return nil, err
	}
	return &v, nil
}

func scanSlot(row pgx.Row) (*DoctorSlot, error) {
	var s DoctorSlot
	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.StartTime, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.BookingID, &a.PatientID, &a.FamilyMemberID, &a.VaccineID, &a.CenterID,
		&a.DoseNumber, &a.Status, &a.DoctorID, &a.SlotID,
		&a.ScheduledDate, &a.ScheduledTimeSlot, &a.ActualScheduledTime,
		&a.DesiredDate, &a.DesiredTimeSlot, &a.RescheduleReason, &a.RescheduledAt,
		&a.PaymentStatus, &a.PaymentMethod, &a.PaymentAmount,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetFamilyMemberByID(ctx context.Context, id uuid.UUID) (*FamilyMember, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, name, relation, created_at, updated_at
		FROM family_members
		WHERE id = $1
	`, id)
	return scanFamilyMember(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, center_id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetVaccineByID(ctx context.Context, id uuid.UUID) (*Vaccine, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, total_doses, price, created_at, updated_at
		FROM vaccines
		WHERE id = $1
	`, id)
	return scanVaccine(row)
}

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, patient_id, family_member_id, vaccine_id, center_id, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, b.ID, b.PatientID, b.FamilyMemberID, b.VaccineID, b.CenterID, b.TotalAmount, b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	for i := range b.Appointments {
		a := &b.Appointments[i]
		_, err = tx.Exec(ctx, `
			INSERT INTO appointments (
				id, booking_id, patient_id, family_member_id, vaccine_id, center_id,
				dose_number, status, scheduled_date, scheduled_time_slot,
				payment_status, payment_method, payment_amount, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		`, a.ID, b.ID, a.PatientID, a.FamilyMemberID, a.VaccineID, a.CenterID,
			a.DoseNumber, a.Status, a.ScheduledDate, a.ScheduledTimeSlot,
			a.PaymentStatus, a.PaymentMethod, a.PaymentAmount)
		if err != nil {
			return nil, fmt.Errorf("insert appointment dose %d: %w", a.DoseNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}
	return b, nil
}

func (r *PgRepository) ListBookings(ctx context.Context, patientID uuid.UUID, familyMemberID *uuid.UUID) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.patient_id, b.family_member_id, b.vaccine_id, b.center_id,
		       b.total_amount, b.created_at,
		       v.name, v.total_doses, COALESCE(fm.name, p.name)
		FROM bookings b
		JOIN vaccines v ON v.id = b.vaccine_id
		JOIN patients p ON p.id = b.patient_id
		LEFT JOIN family_members fm ON fm.id = b.family_member_id
		WHERE b.patient_id = $1
		  AND ($2::uuid IS NULL AND b.family_member_id IS NULL OR b.family_member_id = $2)
		ORDER BY b.created_at
	`, patientID, familyMemberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var b Booking
		err := rows.Scan(&b.ID, &b.PatientID, &b.FamilyMemberID, &b.VaccineID, &b.CenterID,
			&b.TotalAmount, &b.CreatedAt,
			&b.VaccineName, &b.VaccineTotalDoses, &b.PatientName)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return bookings, nil
	}

	apptRows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE booking_id = ANY($1)
		ORDER BY dose_number
	`, ids)
	if err != nil {
		return nil, err
	}
	appts, err := collectAppointments(apptRows)
	if err != nil {
		return nil, err
	}

	byBooking := make(map[uuid.UUID][]Appointment, len(bookings))
	for _, a := range appts {
		byBooking[a.BookingID] = append(byBooking[a.BookingID], a)
	}
	for i := range bookings {
		bookings[i].Appointments = byBooking[bookings[i].ID]
	}
	return bookings, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveDoseNumbers(ctx context.Context, patientID uuid.UUID, familyMemberID *uuid.UUID, vaccineID uuid.UUID) ([]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT dose_number
		FROM appointments
		WHERE patient_id = $1
		  AND ($2::uuid IS NULL AND family_member_id IS NULL OR family_member_id = $2)
		  AND vaccine_id = $3
		  AND status NOT IN ('cancelled', 'refunded')
	`, patientID, familyMemberID, vaccineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doses []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		doses = append(doses, n)
	}
	return doses, rows.Err()
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.resolveStatusMiss(ctx, id, to)
	}
	return appt, err
}

func (r *PgRepository) SetRescheduleRequest(ctx context.Context, id uuid.UUID, from Status, desiredDate time.Time, desiredBand TimeBand, reason string, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'reschedule',
		    desired_date = $2,
		    desired_time_slot = $3,
		    reschedule_reason = $4,
		    rescheduled_at = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = $6
		RETURNING `+appointmentColumns+`
	`, id, desiredDate, desiredBand, reason, at, from)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, r.resolveStatusMiss(ctx, id, StatusReschedule)
	}
	return appt, err
}

// CommitAssignment is the single write that decides slot races. The NOT
// EXISTS guard rejects the update when another non-cancelled appointment
// already holds the same doctor/date slot or exact time, so exactly one of
// two concurrent commits succeeds even without the Redis lock.
func (r *PgRepository) CommitAssignment(ctx context.Context, p AssignmentParams) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'scheduled',
		    doctor_id = $2,
		    slot_id = $3,
		    scheduled_date = $4,
		    actual_scheduled_time = $5,
		    desired_date = NULL,
		    desired_time_slot = NULL,
		    reschedule_reason = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = $6
		  AND NOT EXISTS (
			SELECT 1 FROM appointments other
			WHERE other.id <> $1
			  AND other.doctor_id = $2
			  AND other.scheduled_date = $4
			  AND other.status NOT IN ('cancelled', 'refunded')
			  AND (($3::uuid IS NOT NULL AND other.slot_id = $3)
			       OR other.actual_scheduled_time = $5)
		  )
		RETURNING `+appointmentColumns+`
	`, p.AppointmentID, p.DoctorID, p.SlotID, p.Date, p.ActualTime, p.From)

	appt, err := scanAppointment(row)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, ErrAppointmentNotFound) {
		return nil, err
	}

	// The conditional update matched nothing: work out which guard failed.
	current, readErr := r.GetAppointmentByID(ctx, p.AppointmentID)
	if readErr != nil {
		return nil, readErr
	}
	if current.Status != p.From {
		return nil, &InvalidStateTransitionError{From: current.Status, Attempted: StatusScheduled}
	}
	return nil, ErrSlotUnavailable
}

func (r *PgRepository) SetPaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET payment_status = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListActionable(ctx context.Context) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'scheduled', 'reschedule')
		ORDER BY scheduled_date
	`)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListForDay(ctx context.Context, day time.Time, doctorID, centerID *uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE scheduled_date = $1::date
		  AND status IN ('scheduled', 'completed')
		  AND ($2::uuid IS NULL OR doctor_id = $2)
		  AND ($3::uuid IS NULL OR center_id = $3)
		ORDER BY actual_scheduled_time NULLS LAST
	`, day, doctorID, centerID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]DoctorSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, date, start_time, created_at, updated_at
		FROM doctor_slots
		WHERE doctor_id = $1
		  AND date = $2::date
		ORDER BY start_time
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []DoctorSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*DoctorSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, date, start_time, created_at, updated_at
		FROM doctor_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAssignedForDoctorDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND scheduled_date = $2::date
		  AND status NOT IN ('cancelled', 'refunded')
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func (r *PgRepository) resolveStatusMiss(ctx context.Context, id uuid.UUID, attempted Status) error {
	current, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	return &InvalidStateTransitionError{From: current.Status, Attempted: attempted}
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
