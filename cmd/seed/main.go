package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaxport/scheduling-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	centerID := uuid.New()
	if err := seedVaccines(context.Background(), pool); err != nil {
		log.Fatalf("seed vaccines: %v", err)
	}
	doctorIDs, err := seedDoctors(context.Background(), pool, centerID, 20)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedSlotGrids(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed slot grids: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedVaccines(ctx context.Context, pool *pgxpool.Pool) error {
	vaccines := []struct {
		name  string
		doses int
		price float64
	}{
		{"Hepatitis B", 3, 45.00},
		{"HPV", 3, 120.00},
		{"Rabies", 3, 80.00},
		{"Influenza", 1, 25.00},
		{"MMR", 2, 60.00},
		{"Varicella", 2, 95.00},
		{"Tdap", 1, 40.00},
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, v := range vaccines {
		_, err := tx.Exec(ctx, `
			INSERT INTO vaccines (id, name, total_doses, price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, uuid.New(), v.name, v.doses, v.price)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("vaccines seeded: %d", len(vaccines))
	return nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, centerID uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Immunology",
		"General Practice",
		"Pediatrics",
		"Internal Medicine",
		"Travel Medicine",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, center_id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, centerID, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	log.Println("doctors seeded")
	return ids, nil
}

// seedSlotGrids gives half the doctors a pre-seeded hourly grid for the next
// two weeks. The other half stays grid-less so virtual slot synthesis gets
// exercised in dev.
func seedSlotGrids(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i, doctorID := range doctorIDs {
		if i%2 == 1 {
			continue
		}
		for day := 0; day < 14; day++ {
			date := today.AddDate(0, 0, day)
			for hour := 9; hour < 16; hour++ {
				_, err := tx.Exec(ctx, `
					INSERT INTO doctor_slots (id, doctor_id, date, start_time, created_at, updated_at)
					VALUES ($1, $2, $3, $4, now(), now())
				`, uuid.New(), doctorID, date, fmt.Sprintf("%02d:00", hour))
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("slot grids seeded: %d slots", total)
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			// Roughly one in five patients books for a dependent too.
			if gofakeit.Number(0, 4) == 0 {
				_, err := tx.Exec(ctx, `
					INSERT INTO family_members (id, patient_id, name, relation, created_at, updated_at)
					VALUES ($1, $2, $3, $4, now(), now())
				`, uuid.New(), id, gofakeit.Name(), "child")
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
