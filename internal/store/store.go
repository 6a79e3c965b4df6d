// Package store persists users, archived research reports and saved
// monitors in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/harvestlabs/grantscout/config"
	"github.com/harvestlabs/grantscout/internal/research"
)

type Store struct {
	DB *sql.DB
}

// New opens a Postgres connection pool and verifies it
func New(cfg config.PostgresConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// CreateUser inserts a user with a bcrypt password hash
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, now())`,
		id, email, passwordHash)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetUserByEmail returns the user id and password hash for an email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &hash)
	if err != nil {
		return "", "", err
	}
	return id, hash, nil
}

// ReportRecord is an archived research report
type ReportRecord struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Query     string          `json:"query"`
	FarmType  string          `json:"farm_type,omitempty"`
	Location  string          `json:"location,omitempty"`
	Report    research.Report `json:"report"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveReport archives a completed report and returns its id
func (s *Store) SaveReport(ctx context.Context, userID string, req research.Request, report research.Report) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO reports (id, user_id, query, farm_type, location, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		id, userID, req.Query, req.FarmType, req.Location, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetReport returns one archived report owned by the user
func (s *Store) GetReport(ctx context.Context, userID, id string) (ReportRecord, error) {
	var rec ReportRecord
	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, user_id, query, farm_type, location, report, created_at
		 FROM reports WHERE id = $1 AND user_id = $2`, id, userID).
		Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.FarmType, &rec.Location, &payload, &rec.CreatedAt)
	if err != nil {
		return ReportRecord{}, err
	}
	if err := json.Unmarshal(payload, &rec.Report); err != nil {
		return ReportRecord{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return rec, nil
}

// ListReports returns the user's archived reports, newest first, without
// the report payloads
func (s *Store) ListReports(ctx context.Context, userID string) ([]ReportRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, query, farm_type, location, created_at
		 FROM reports WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.FarmType, &rec.Location, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Monitor is a saved farm query re-run on a cron schedule
type Monitor struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	FarmType  string    `json:"farm_type,omitempty"`
	Location  string    `json:"location,omitempty"`
	CronExpr  string    `json:"cron_expr"`
	Enabled   bool      `json:"enabled"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateMonitor saves a monitor and returns its id
func (s *Store) CreateMonitor(ctx context.Context, m Monitor) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO monitors (id, user_id, query, farm_type, location, cron_expr, enabled, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		id, m.UserID, m.Query, m.FarmType, m.Location, m.CronExpr, m.Enabled)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListMonitors returns the user's monitors
func (s *Store) ListMonitors(ctx context.Context, userID string) ([]Monitor, error) {
	return s.queryMonitors(ctx, `SELECT id, user_id, query, farm_type, location, cron_expr, enabled,
		COALESCE(last_run_at, to_timestamp(0)), created_at FROM monitors WHERE user_id = $1`, userID)
}

// ListEnabledMonitors returns every enabled monitor across all users.
// Used by the scheduler.
func (s *Store) ListEnabledMonitors(ctx context.Context) ([]Monitor, error) {
	return s.queryMonitors(ctx, `SELECT id, user_id, query, farm_type, location, cron_expr, enabled,
		COALESCE(last_run_at, to_timestamp(0)), created_at FROM monitors WHERE enabled`)
}

func (s *Store) queryMonitors(ctx context.Context, q string, args ...interface{}) ([]Monitor, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Monitor
	for rows.Next() {
		var m Monitor
		if err := rows.Scan(&m.ID, &m.UserID, &m.Query, &m.FarmType, &m.Location,
			&m.CronExpr, &m.Enabled, &m.LastRunAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMonitor removes a monitor owned by the user
func (s *Store) DeleteMonitor(ctx context.Context, userID, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM monitors WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchMonitor records that a monitor just ran
func (s *Store) TouchMonitor(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE monitors SET last_run_at = $2 WHERE id = $1`, id, at)
	return err
}
