// Package store persists the sandbox dispatch backend in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dispatch-cli/internal/model"

	_ "modernc.org/sqlite"
)

// DB is the full sandbox state. Mutations operate on it in memory and the
// caller saves it back.
type DB struct {
	// Crews are kept in lane order.
	Crews      []model.Crew
	WorkOrders []model.WorkOrder
}

func (db *DB) FindWorkOrder(id string) (*model.WorkOrder, bool) {
	id = strings.TrimSpace(id)
	for i := range db.WorkOrders {
		if db.WorkOrders[i].ID == id {
			return &db.WorkOrders[i], true
		}
	}
	return nil, false
}

func (db *DB) FindCrew(id string) (*model.Crew, bool) {
	id = strings.TrimSpace(id)
	for i := range db.Crews {
		if db.Crews[i].ID == id {
			return &db.Crews[i], true
		}
	}
	return nil, false
}

// Store is a single SQLite database. All writes go through Update, which
// serializes load-modify-save cycles within the process.
type Store struct {
	Path string

	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the database at path. ":memory:" is allowed.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("missing database path")
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases alive and writes serialized.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &Store{Path: path, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS crews (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			position INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS work_orders (
			id TEXT PRIMARY KEY,
			customer_name TEXT NOT NULL,
			site_address TEXT NOT NULL,
			service_type TEXT NOT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			crew_id TEXT NOT NULL,
			scheduled_start TEXT NOT NULL,
			scheduled_end TEXT NOT NULL,
			estimated_duration_hours REAL NOT NULL,
			weather_triggered INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_work_orders_crew ON work_orders(crew_id);`,
		`CREATE INDEX IF NOT EXISTS idx_work_orders_start ON work_orders(scheduled_start);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether the database has no crews and no work orders.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM crews) + (SELECT COUNT(*) FROM work_orders)`).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Load reads the full state.
func (s *Store) Load(ctx context.Context) (*DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save replaces the full state.
func (s *Store) Save(ctx context.Context, st *DB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, st)
}

// Update loads the state, applies fn, and saves the result if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(*DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.save(ctx, st)
}

func (s *Store) load(ctx context.Context) (*DB, error) {
	st := &DB{}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, status FROM crews ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c model.Crew
		if err := rows.Scan(&c.ID, &c.Name, &c.Status); err != nil {
			_ = rows.Close()
			return nil, err
		}
		st.Crews = append(st.Crews, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT
		id, customer_name, site_address, service_type,
		status, priority, crew_id,
		scheduled_start, scheduled_end,
		estimated_duration_hours, weather_triggered
	FROM work_orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			wo               model.WorkOrder
			status, priority string
			crewID           string
			startRaw, endRaw string
			weather          int
		)
		if err := rows.Scan(
			&wo.ID, &wo.CustomerName, &wo.SiteAddress, &wo.ServiceType,
			&status, &priority, &crewID,
			&startRaw, &endRaw,
			&wo.EstimatedDurationHours, &weather,
		); err != nil {
			return nil, err
		}
		if wo.Status, err = model.ParseStatus(status); err != nil {
			return nil, fmt.Errorf("work order %s: %w", wo.ID, err)
		}
		if wo.Priority, err = model.ParsePriority(priority); err != nil {
			return nil, fmt.Errorf("work order %s: %w", wo.ID, err)
		}
		if crewID != "" {
			id := crewID
			wo.AssignedCrewID = &id
		}
		if wo.ScheduledStart, err = parseTime(startRaw); err != nil {
			return nil, fmt.Errorf("work order %s: scheduled_start: %w", wo.ID, err)
		}
		if wo.ScheduledEnd, err = parseTime(endRaw); err != nil {
			return nil, fmt.Errorf("work order %s: scheduled_end: %w", wo.ID, err)
		}
		wo.WeatherTriggered = weather != 0
		st.WorkOrders = append(st.WorkOrders, wo)
	}
	return st, rows.Err()
}

func (s *Store) save(ctx context.Context, st *DB) error {
	if st == nil {
		return errors.New("nil db")
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Replace-all; the sandbox holds tens of rows.
	for _, t := range []string{"crews", "work_orders"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return err
		}
	}

	nowMs := time.Now().UTC().UnixMilli()
	for i, c := range st.Crews {
		if _, err := tx.ExecContext(ctx, `INSERT INTO crews(id, name, status, position) VALUES(?, ?, ?, ?)`,
			c.ID, c.Name, c.Status, i); err != nil {
			return fmt.Errorf("insert crew %s: %w", c.ID, err)
		}
	}
	for _, wo := range st.WorkOrders {
		if _, err := tx.ExecContext(ctx, `INSERT INTO work_orders(
			id, customer_name, site_address, service_type,
			status, priority, crew_id,
			scheduled_start, scheduled_end,
			estimated_duration_hours, weather_triggered,
			updated_at_unixms
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			wo.ID, wo.CustomerName, wo.SiteAddress, wo.ServiceType,
			string(wo.Status), string(wo.Priority), wo.CrewID(),
			formatTime(wo.ScheduledStart), formatTime(wo.ScheduledEnd),
			wo.EstimatedDurationHours, boolToInt(wo.WeatherTriggered),
			nowMs,
		); err != nil {
			return fmt.Errorf("insert work order %s: %w", wo.ID, err)
		}
	}
	return tx.Commit()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
