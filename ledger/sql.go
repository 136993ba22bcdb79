package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/filedepot/filedepot/data"
	"github.com/filedepot/filedepot/nanoid"
)

var newJobID = nanoid.PrimaryKey()

// sqlLedger implements Ledger over the relational data layer. It works
// against PostgreSQL and SQLite; queries are written with ? placeholders and
// rebound for drivers that use numbered parameters.
type sqlLedger struct {
	d *data.Data
}

// NewSQLLedger creates the ledger backed by the given data layer and
// ensures the schema exists.
func NewSQLLedger(ctx context.Context, d *data.Data) (Ledger, error) {
	l := &sqlLedger{d: d}
	if err := l.initSchema(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *sqlLedger) initSchema(ctx context.Context) error {
	_, err := l.d.DB().ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			input_ref TEXT NOT NULL,
			output_refs TEXT NOT NULL,
			error TEXT NOT NULL,
			cancel_requested INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("ledger: failed to init schema: %w", err)
	}
	_, err = l.d.DB().ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_jobs_status_created_at ON jobs(status, created_at);
	`)
	if err != nil {
		return fmt.Errorf("ledger: failed to create index: %w", err)
	}
	return nil
}

// rebind converts ? placeholders to the driver's parameter style.
func (l *sqlLedger) rebind(query string) string {
	if l.d.DriverName() != "postgres" {
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

func (l *sqlLedger) Create(ctx context.Context, kind Kind, inputRef string) (*Job, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("ledger: unknown job kind %q", kind)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        newJobID(),
		Kind:      kind,
		Status:    StatusPending,
		InputRef:  inputRef,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := l.d.DB().ExecContext(ctx, l.rebind(`
		INSERT INTO jobs (id, kind, status, input_ref, output_refs, error, cancel_requested, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`),
		job.ID,
		string(job.Kind),
		string(job.Status),
		job.InputRef,
		"[]",
		"",
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to create job: %w", err)
	}
	return job, nil
}

const jobColumns = `id, kind, status, input_ref, output_refs, error, cancel_requested, created_at, updated_at`

func (l *sqlLedger) Get(ctx context.Context, id string) (*Job, error) {
	row := l.d.DB().QueryRowContext(ctx, l.rebind(`
		SELECT `+jobColumns+` FROM jobs WHERE id = ?
	`), id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to get job: %w", err)
	}
	return job, nil
}

func (l *sqlLedger) ListPending(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 1
	}
	rows, err := l.d.DB().QueryContext(ctx, l.rebind(`
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`), string(StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to list pending jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (l *sqlLedger) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.d.DB().QueryContext(ctx, l.rebind(`
		SELECT `+jobColumns+` FROM jobs
		ORDER BY created_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to list jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (l *sqlLedger) Transition(ctx context.Context, id string, from, to Status, opts ...TransitionOption) (*Job, error) {
	if !from.Valid() || !to.Valid() {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	var o transitionOpts
	for _, opt := range opts {
		opt(&o)
	}
	refs, err := json.Marshal(o.outputRefs)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to marshal output refs: %w", err)
	}
	if o.outputRefs == nil {
		refs = []byte("[]")
	}

	// Single-statement compare-and-swap: the WHERE clause on the current
	// status is what guarantees exactly one winner under concurrent claims.
	res, err := l.d.DB().ExecContext(ctx, l.rebind(`
		UPDATE jobs
		SET status = ?, output_refs = ?, error = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`),
		string(to),
		string(refs),
		o.errDetail,
		formatTime(time.Now().UTC()),
		id,
		string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to transition job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to read transition result: %w", err)
	}
	if affected == 0 {
		current, getErr := l.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: job %s is %s, expected %s", ErrConflict, id, current.Status, from)
	}

	return l.Get(ctx, id)
}

func (l *sqlLedger) Heartbeat(ctx context.Context, id string) error {
	res, err := l.d.DB().ExecContext(ctx, l.rebind(`
		UPDATE jobs SET updated_at = ? WHERE id = ? AND status = ?
	`), formatTime(time.Now().UTC()), id, string(StatusRunning))
	if err != nil {
		return fmt.Errorf("ledger: failed to heartbeat job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: failed to read heartbeat result: %w", err)
	}
	if affected == 0 {
		if _, getErr := l.Get(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: job %s is not running", ErrConflict, id)
	}
	return nil
}

func (l *sqlLedger) Reclaim(ctx context.Context, staleness time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-staleness)
	res, err := l.d.DB().ExecContext(ctx, l.rebind(`
		UPDATE jobs
		SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?
	`),
		string(StatusPending),
		formatTime(time.Now().UTC()),
		string(StatusRunning),
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("ledger: failed to reclaim jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ledger: failed to read reclaim result: %w", err)
	}
	return int(affected), nil
}

func (l *sqlLedger) RequestCancel(ctx context.Context, id string) (*Job, error) {
	job, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case StatusPending:
		cancelled, err := l.Transition(ctx, id, StatusPending, StatusFailed, WithError(ErrCancelled))
		if err != nil {
			return nil, err
		}
		return cancelled, nil
	case StatusRunning:
		// Advisory only: the worker observes the flag at its next
		// checkpoint. Running work is not preemptible.
		_, err := l.d.DB().ExecContext(ctx, l.rebind(`
			UPDATE jobs SET cancel_requested = 1 WHERE id = ? AND status = ?
		`), id, string(StatusRunning))
		if err != nil {
			return nil, fmt.Errorf("ledger: failed to flag cancellation: %w", err)
		}
		return l.Get(ctx, id)
	default:
		return nil, fmt.Errorf("%w: job %s already %s", ErrConflict, id, job.Status)
	}
}

func (l *sqlLedger) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := l.d.DB().QueryContext(ctx, `
		SELECT status, COUNT(*) FROM jobs GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to fetch stats: %w", err)
	}
	defer rows.Close()

	stats := map[Status]int{
		StatusPending:   0,
		StatusRunning:   0,
		StatusCompleted: 0,
		StatusFailed:    0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("ledger: failed to scan stats: %w", err)
		}
		stats[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: failed to read stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		refsJSON        string
		kind, status    string
		cancelRequested int
		createdAt       string
		updatedAt       string
	)

	j := &Job{}
	if err := row.Scan(
		&j.ID,
		&kind,
		&status,
		&j.InputRef,
		&refsJSON,
		&j.Error,
		&cancelRequested,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(refsJSON), &j.OutputRefs); err != nil {
		return nil, fmt.Errorf("invalid output refs: %w", err)
	}

	j.Kind = Kind(kind)
	j.Status = Status(status)
	j.CancelRequested = cancelRequested != 0

	var err error
	j.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	j.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: failed to read jobs: %w", err)
	}
	return jobs, nil
}

// timeLayout is RFC 3339 with a fixed-width fraction so that stored strings
// sort lexicographically in chronological order (the reclaim cutoff relies
// on string comparison).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time value: %w", err)
	}
	return parsed, nil
}
