package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/cartridge/dinosweep/internal/types"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore implements ResultStore on SQLite or PostgreSQL.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database, creating the schema if needed.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverSQLite:
		if !strings.HasPrefix(dsn, "file:") {
			dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dsn)
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	}
	store := NewSQLStore(db, driver)
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", driver, err)
	}
	return store, nil
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// Close closes the database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sweeps (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			status_message TEXT NOT NULL DEFAULT '',
			jump_thresholds TEXT NOT NULL,
			duck_thresholds TEXT NOT NULL,
			jump_deltas TEXT NOT NULL,
			tests INTEGER NOT NULL,
			total_episodes INTEGER NOT NULL,
			completed_episodes INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			ended_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			sweep_id TEXT NOT NULL REFERENCES sweeps(id) ON DELETE CASCADE,
			sequence INTEGER NOT NULL,
			episode INTEGER NOT NULL,
			jump_threshold DOUBLE PRECISION NOT NULL,
			duck_threshold DOUBLE PRECISION NOT NULL,
			jump_delta DOUBLE PRECISION NOT NULL,
			final_distance DOUBLE PRECISION NOT NULL,
			final_speed DOUBLE PRECISION NOT NULL,
			step_count INTEGER NOT NULL,
			completed_at TEXT NOT NULL,
			UNIQUE (sweep_id, sequence)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_sweep ON episodes(sweep_id, sequence)`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) CreateSweep(ctx context.Context, sweep types.Sweep) error {
	axes, err := encodeAxes(sweep)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO sweeps (id, state, status_message, jump_thresholds, duck_thresholds, jump_deltas,
		                    tests, total_episodes, completed_episodes, created_at, updated_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, s.rebind(query),
		sweep.ID, string(sweep.State), sweep.StatusMessage, axes[0], axes[1], axes[2],
		sweep.Tests, sweep.TotalEpisodes, sweep.CompletedEpisodes,
		formatTime(sweep.CreatedAt), formatTime(sweep.UpdatedAt), formatTimePtr(sweep.EndedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to create sweep: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSweep(ctx context.Context, id string) (types.Sweep, error) {
	query := sweepColumns + ` FROM sweeps WHERE id = ?`
	sweep, err := scanSweep(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Sweep{}, ErrNotFound
	}
	if err != nil {
		return types.Sweep{}, fmt.Errorf("failed to get sweep: %w", err)
	}
	return sweep, nil
}

func (s *SQLStore) UpdateSweep(ctx context.Context, sweep types.Sweep) error {
	query := `
		UPDATE sweeps SET
			state = ?, status_message = ?, completed_episodes = ?, updated_at = ?, ended_at = ?
		WHERE id = ?`
	result, err := s.db.ExecContext(ctx, s.rebind(query),
		string(sweep.State), sweep.StatusMessage, sweep.CompletedEpisodes,
		formatTime(sweep.UpdatedAt), formatTimePtr(sweep.EndedAt), sweep.ID)
	if err != nil {
		return fmt.Errorf("failed to update sweep: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListSweeps(ctx context.Context) ([]types.Sweep, error) {
	rows, err := s.db.QueryContext(ctx, sweepColumns+` FROM sweeps ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}
	defer rows.Close()

	var out []types.Sweep
	for rows.Next() {
		sweep, err := scanSweep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sweep: %w", err)
		}
		out = append(out, sweep)
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendEpisode(ctx context.Context, record types.EpisodeRecord) error {
	if _, err := s.GetSweep(ctx, record.SweepID); err != nil {
		return err
	}
	query := `
		INSERT INTO episodes (id, sweep_id, sequence, episode, jump_threshold, duck_threshold, jump_delta,
		                      final_distance, final_speed, step_count, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		record.ID, record.SweepID, record.Sequence, record.Episode,
		record.JumpThreshold, record.DuckThreshold, record.JumpDelta,
		record.FinalDistance, record.FinalSpeed, record.StepCount, formatTime(record.CompletedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to append episode: %w", err)
	}
	return nil
}

func (s *SQLStore) ListEpisodes(ctx context.Context, sweepID string) ([]types.EpisodeRecord, error) {
	if _, err := s.GetSweep(ctx, sweepID); err != nil {
		return nil, err
	}
	query := `
		SELECT id, sweep_id, sequence, episode, jump_threshold, duck_threshold, jump_delta,
		       final_distance, final_speed, step_count, completed_at
		FROM episodes WHERE sweep_id = ? ORDER BY sequence`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), sweepID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var out []types.EpisodeRecord
	for rows.Next() {
		var rec types.EpisodeRecord
		var completedAt string
		if err := rows.Scan(&rec.ID, &rec.SweepID, &rec.Sequence, &rec.Episode,
			&rec.JumpThreshold, &rec.DuckThreshold, &rec.JumpDelta,
			&rec.FinalDistance, &rec.FinalSpeed, &rec.StepCount, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		if rec.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const sweepColumns = `
		SELECT id, state, status_message, jump_thresholds, duck_thresholds, jump_deltas,
		       tests, total_episodes, completed_episodes, created_at, updated_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSweep(row rowScanner) (types.Sweep, error) {
	var (
		sweep                types.Sweep
		state                string
		jt, dt, jd           string
		createdAt, updatedAt string
		endedAt              sql.NullString
	)
	err := row.Scan(&sweep.ID, &state, &sweep.StatusMessage, &jt, &dt, &jd,
		&sweep.Tests, &sweep.TotalEpisodes, &sweep.CompletedEpisodes,
		&createdAt, &updatedAt, &endedAt)
	if err != nil {
		return types.Sweep{}, err
	}
	sweep.State = types.SweepState(state)
	for _, axis := range []struct {
		raw string
		dst *[]float64
	}{{jt, &sweep.JumpThresholds}, {dt, &sweep.DuckThresholds}, {jd, &sweep.JumpDeltas}} {
		if err := json.Unmarshal([]byte(axis.raw), axis.dst); err != nil {
			return types.Sweep{}, fmt.Errorf("invalid axis encoding: %w", err)
		}
	}
	if sweep.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Sweep{}, err
	}
	if sweep.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return types.Sweep{}, err
	}
	if endedAt.Valid {
		t, err := parseTime(endedAt.String)
		if err != nil {
			return types.Sweep{}, err
		}
		sweep.EndedAt = &t
	}
	return sweep, nil
}

func encodeAxes(sweep types.Sweep) ([3]string, error) {
	var out [3]string
	for i, axis := range [][]float64{sweep.JumpThresholds, sweep.DuckThresholds, sweep.JumpDeltas} {
		if axis == nil {
			axis = []float64{}
		}
		b, err := json.Marshal(axis)
		if err != nil {
			return out, fmt.Errorf("failed to encode axis: %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// modernc sqlite reports "UNIQUE constraint failed: ..."
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: PRIMARY KEY")
}
