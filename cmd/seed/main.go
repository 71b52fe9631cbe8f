package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careloop/telehealth-scheduling/internal/db"
	"github.com/careloop/telehealth-scheduling/internal/scheduling"
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

	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, 100); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 9000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

// randomAvailability builds a plausible weekly template: weekdays with a
// morning window and, for most doctors, an afternoon one.
func randomAvailability() (scheduling.WeeklyAvailability, error) {
	days := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

	var avail scheduling.WeeklyAvailability
	for _, day := range days {
		if gofakeit.Number(0, 9) == 0 {
			continue // day off
		}
		windows := []scheduling.TimeWindow{{Start: "09:00", End: "12:00"}}
		if gofakeit.Bool() {
			windows = append(windows, scheduling.TimeWindow{Start: "13:00", End: "17:00"})
		}
		avail = append(avail, scheduling.DayAvailability{Day: day, Windows: windows})
	}
	if len(avail) == 0 {
		avail = scheduling.WeeklyAvailability{
			{Day: "monday", Windows: []scheduling.TimeWindow{{Start: "09:00", End: "17:00"}}},
		}
	}

	if err := avail.Validate(); err != nil {
		return nil, fmt.Errorf("generated availability invalid: %w", err)
	}
	return avail, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		avail, err := randomAvailability()
		if err != nil {
			return err
		}
		availJSON, err := json.Marshal(avail)
		if err != nil {
			return err
		}

		specialty := specialties[gofakeit.Number(0, len(specialties)-1)]
		fee := float64(gofakeit.Number(40, 250))

		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, consultation_fee, approved, weekly_availability)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), "Dr. "+gofakeit.Name(), specialty, fee, true, availJSON)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		_, err = tx.Exec(ctx, `
			INSERT INTO patients (id, name, email)
			VALUES ($1, $2, $3)
		`, uuid.New(), gofakeit.Name(), &email)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
