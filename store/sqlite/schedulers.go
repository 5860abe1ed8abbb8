package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/schedule"
)

// SchedulerStore implements schedule.Store.
type SchedulerStore struct {
	db *sql.DB
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Save inserts or replaces s.
func (st *SchedulerStore) Save(s *schedule.Scheduler) error {
	return saveScheduler(st.db, s)
}

func saveScheduler(ex execer, s *schedule.Scheduler) error {
	if err := s.Schedule.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	var next sql.NullInt64
	if s.NextRun != nil {
		next = sql.NullInt64{Int64: s.NextRun.Unix(), Valid: true}
	}

	if _, err := ex.Exec(`
		INSERT INTO schedulers (id, prompt_id, enabled, next_run, data) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET prompt_id = excluded.prompt_id, enabled = excluded.enabled,
			next_run = excluded.next_run, data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		s.ID, s.PromptID, s.Enabled, next, string(data)); err != nil {
		return fmt.Errorf("failed to save scheduler: %w", err)
	}

	return nil
}

// Get returns the scheduler with id.
func (st *SchedulerStore) Get(id string) (*schedule.Scheduler, error) {
	return getScheduler(st.db, id)
}

func getScheduler(ex execer, id string) (*schedule.Scheduler, error) {
	var data string
	if err := ex.QueryRow(`SELECT data FROM schedulers WHERE id = ?`, id).Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.Errorf(core.ErrCodeNotFound, "scheduler %q not found", id)
		}
		return nil, err
	}
	return decodeScheduler(data)
}

// Update implements schedule.Store inside one transaction. The pool holds a
// single connection, so the transaction also excludes every other writer.
func (st *SchedulerStore) Update(id string, fn func(s *schedule.Scheduler) error) (*schedule.Scheduler, error) {
	tx, err := st.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	s, err := getScheduler(tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := saveScheduler(tx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit scheduler: %w", err)
	}

	return s, nil
}

// Delete removes the scheduler with id.
func (st *SchedulerStore) Delete(id string) error {
	return deleteRow(st.db, `DELETE FROM schedulers WHERE id = ?`, id, "scheduler")
}

// List returns all schedulers ordered by ID.
func (st *SchedulerStore) List() ([]*schedule.Scheduler, error) {
	rows, err := st.db.Query(`SELECT data FROM schedulers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*schedule.Scheduler
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		s, err := decodeScheduler(data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func decodeScheduler(data string) (*schedule.Scheduler, error) {
	var s schedule.Scheduler
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode scheduler: %w", err)
	}
	return &s, nil
}

var _ schedule.Store = (*SchedulerStore)(nil)
