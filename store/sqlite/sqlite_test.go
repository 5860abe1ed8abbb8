package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/prompt"
	"github.com/hupe1980/cmdmesh/schedule"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "data", "cmdmesh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPromptStore(t *testing.T) {
	db := openTestDB(t)
	store := db.Prompts()

	p, err := prompt.New("review", []string{"@reviewer {{file}}"}, func(o *prompt.Options) { o.WebhookEnabled = true })
	require.NoError(t, err)
	require.NoError(t, store.Save(p))

	got, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	byName, err := store.GetByName("review")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	p.Commands = append(p.Commands, "_echo done")
	require.NoError(t, store.Save(p))
	got, err = store.Get(p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Commands, 2)

	moved := p.Clone()
	moved.Source = prompt.SourceProject
	assert.Equal(t, core.ErrCodeInvalidPrompt, core.CodeOf(store.Save(moved)))

	dup, err := prompt.New("review", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, core.ErrCodeInvalidPrompt, core.CodeOf(store.Save(dup)))

	other, err := prompt.New("alpha", []string{"x"})
	require.NoError(t, err)
	require.NoError(t, store.Save(other))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)

	require.NoError(t, store.Delete(p.ID))
	_, err = store.Get(p.ID)
	assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
	assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(store.Delete(p.ID)))
}

func TestSchedulerStore(t *testing.T) {
	db := openTestDB(t)
	store := db.Schedulers()

	start := time.Date(2024, time.January, 7, 9, 0, 0, 0, time.UTC)
	s, err := schedule.New("p1", schedule.IntervalSchedule{
		Start:      start,
		Interval:   "1d",
		DaysOfWeek: []int{1, 3, 5},
		End:        &schedule.EndCondition{Type: schedule.EndOccurrences, Occurrences: 2},
	}, start, func(o *schedule.Options) {
		o.ID = "s1"
		o.Params = map[string]string{"team": "infra"}
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(s))

	got, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.PromptID)
	assert.Equal(t, map[string]string{"team": "infra"}, got.Params)
	assert.Equal(t, []int{1, 3, 5}, got.Schedule.DaysOfWeek)
	require.NotNil(t, got.NextRun)
	assert.True(t, s.NextRun.Equal(*got.NextRun))

	require.NoError(t, got.Fire(*got.NextRun))
	require.NoError(t, store.Save(got))

	again, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.OccurrenceCount)
	require.NotNil(t, again.LastRun)
	assert.Equal(t, time.Wednesday, again.NextRun.Weekday())

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete("s1"))
	_, err = store.Get("s1")
	assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
}

func TestSchedulerStore_Update(t *testing.T) {
	db := openTestDB(t)
	store := db.Schedulers()

	start := time.Date(2024, time.January, 7, 9, 0, 0, 0, time.UTC)
	s, err := schedule.New("p1", schedule.IntervalSchedule{Start: start, Interval: "1h"}, start, func(o *schedule.Options) { o.ID = "s1" })
	require.NoError(t, err)
	require.NoError(t, store.Save(s))

	updated, err := store.Update("s1", func(s *schedule.Scheduler) error { return s.Fire(start) })
	require.NoError(t, err)
	assert.Equal(t, 1, updated.OccurrenceCount)

	_, err = store.Update("s1", func(s *schedule.Scheduler) error {
		s.Disable()
		return errors.New("abort")
	})
	assert.EqualError(t, err, "abort")

	got, err := store.Get("s1")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, 1, got.OccurrenceCount)
	assert.True(t, start.Add(time.Hour).Equal(*got.NextRun))

	_, err = store.Update("missing", func(*schedule.Scheduler) error { return nil })
	assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
}

func TestSchedulerStore_RejectsInvalidSchedule(t *testing.T) {
	db := openTestDB(t)
	s := &schedule.Scheduler{ID: "bad", PromptID: "p", Schedule: schedule.IntervalSchedule{Start: time.Now(), Interval: "1x"}}
	assert.Equal(t, core.ErrCodeInvalidInterval, core.CodeOf(db.Schedulers().Save(s)))
}

func TestMemoryStore(t *testing.T) {
	db := openTestDB(t)
	mem := db.Memory()

	id1, err := mem.Store("project:a", "Deploys run on Fridays", map[string]any{"topic": "ops"})
	require.NoError(t, err)
	_, err = mem.Store("project:a", "Ops approves deploys on Fridays", nil)
	require.NoError(t, err)
	_, err = mem.Store("project:b", "Deploys run on Fridays", nil)
	require.NoError(t, err)

	results, err := mem.Search("project:a", "ops fridays", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 0.5, results[1].Score)
	assert.Equal(t, id1, results[1].ID)
	assert.Equal(t, "ops", results[1].Metadata["topic"])

	results, err = mem.Search("project:a", "", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id1, results[0].ID)

	require.NoError(t, mem.Delete("project:a", id1))
	assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(mem.Delete("project:a", id1)))
	assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(mem.Delete("project:a", "garbage")))

	require.NoError(t, mem.Put("project:a", map[string]any{"owner": "alice", "count": 2}))
	require.NoError(t, mem.Put("project:a", map[string]any{"count": 3}))
	values, err := mem.Get("project:a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"owner": "alice", "count": float64(3)}, values)
}
