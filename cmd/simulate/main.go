package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careloop/telehealth-scheduling/internal/db"
)

// simulate generates concurrent booking/cancel/reschedule traffic against a
// running api-server and reports success/conflict/error rates. Useful for
// eyeballing that concurrent bookings for the same doctor never both succeed.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	CancelRatio  float64
	PostgresDSN  string
	PatientLimit int
	DoctorLimit  int
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   envOr("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:     durationOr("SIM_DURATION", time.Minute),
		Workers:      intOr("SIM_WORKERS", 16),
		CancelRatio:  floatOr("SIM_CANCEL_RATIO", 0.2),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		PatientLimit: intOr("SIM_PATIENT_LIMIT", 500),
		DoctorLimit:  intOr("SIM_DOCTOR_LIMIT", 50),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rand.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total    int64
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}
	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentile(p float64) time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()
	if len(om.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	data := &DataPool{}
	data.Patients, err = loadIDs(pool, "patients", cfg.PatientLimit)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	data.Doctors, err = loadIDs(pool, "doctors", cfg.DoctorLimit)
	if err != nil {
		log.Fatalf("load doctors: %v", err)
	}
	if len(data.Patients) == 0 || len(data.Doctors) == 0 {
		log.Fatal("no patients or doctors found, run cmd/seed first")
	}

	log.Printf("simulating: url=%s workers=%d duration=%s patients=%d doctors=%d",
		cfg.APIBaseURL, cfg.Workers, cfg.Duration, len(data.Patients), len(data.Doctors))

	bookMetrics := &OperationMetrics{}
	cancelMetrics := &OperationMetrics{}

	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(cfg.Duration)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				if rand.Float64() < cfg.CancelRatio {
					doCancel(client, cfg, data, cancelMetrics)
				} else {
					doBook(client, cfg, data, bookMetrics)
				}
			}
		}()
	}
	wg.Wait()

	report("book", bookMetrics)
	report("cancel", cancelMetrics)
}

func loadIDs(pool *pgxpool.Pool, table string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(context.Background(),
		fmt.Sprintf("SELECT id FROM %s LIMIT %d", table, limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func doBook(client *http.Client, cfg SimConfig, data *DataPool, m *OperationMetrics) {
	patient := data.Patients[rand.Intn(len(data.Patients))]
	doctor := data.Doctors[rand.Intn(len(data.Doctors))]

	// Random weekday slot within the next two weeks on a 30 minute grid
	// inside typical seeded hours.
	day := time.Now().AddDate(0, 0, 1+rand.Intn(14))
	hour := 9 + rand.Intn(8)
	minute := 30 * rand.Intn(2)
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.Local)
	end := start.Add(30 * time.Minute)

	body, _ := json.Marshal(map[string]any{
		"patient_id": patient.String(),
		"doctor_id":  doctor.String(),
		"start":      start,
		"end":        end,
		"type":       "video",
	})

	req, err := http.NewRequest(http.MethodPost, cfg.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Role", "patient")
	req.Header.Set("X-Actor-ID", patient.String())

	begin := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		m.Record(time.Since(begin), 0)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
			data.AddAppointment(created.ID)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	m.Record(time.Since(begin), resp.StatusCode)
}

func doCancel(client *http.Client, cfg SimConfig, data *DataPool, m *OperationMetrics) {
	id, ok := data.RandomAppointment()
	if !ok {
		return
	}

	body, _ := json.Marshal(map[string]string{"reason": "simulation cleanup"})
	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/appointments/%s/cancel", cfg.APIBaseURL, id), bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Role", "system")

	begin := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		m.Record(time.Since(begin), 0)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	m.Record(time.Since(begin), resp.StatusCode)
}

func report(name string, m *OperationMetrics) {
	total := atomic.LoadInt64(&m.Total)
	if total == 0 {
		log.Printf("%s: no requests issued", name)
		return
	}
	log.Printf("%s: total=%d success=%d conflict=%d error=%d p50=%s p95=%s",
		name, total,
		atomic.LoadInt64(&m.Success),
		atomic.LoadInt64(&m.Conflict),
		atomic.LoadInt64(&m.Error),
		m.Percentile(0.50), m.Percentile(0.95))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatOr(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func durationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
