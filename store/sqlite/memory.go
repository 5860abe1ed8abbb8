package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/memory"
)

const memoryIDPrefix = "mem_"

// MemoryStore implements core.MemoryStore. Search uses the same keyword
// scoring as memory.InMemoryStore.
type MemoryStore struct {
	db *sql.DB
}

// Get returns the scope's key/value memory.
func (m *MemoryStore) Get(scope string) (map[string]any, error) {
	rows, err := m.db.Query(`SELECT key, value FROM memory_values WHERE scope = ?`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("failed to decode memory value %s: %w", key, err)
		}
		out[key] = v
	}

	return out, rows.Err()
}

// Put merges delta into the scope's key/value memory.
func (m *MemoryStore) Put(scope string, delta map[string]any) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for k, v := range delta {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode memory value %s: %w", k, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO memory_values (scope, key, value) VALUES (?, ?, ?)
			ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value`, scope, k, string(raw)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Store appends a memory and returns its id.
func (m *MemoryStore) Store(scope string, content string, metadata map[string]any) (string, error) {
	var md sql.NullString
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return "", err
		}
		md = sql.NullString{String: string(raw), Valid: true}
	}

	res, err := m.db.Exec(`INSERT INTO memories (scope, content, metadata) VALUES (?, ?, ?)`, scope, content, md)
	if err != nil {
		return "", fmt.Errorf("failed to store memory: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", err
	}

	return memoryIDPrefix + strconv.FormatInt(id, 10), nil
}

// Search returns up to limit memories of scope matching query, best first.
func (m *MemoryStore) Search(scope string, query string, limit int) ([]core.SearchResult, error) {
	rows, err := m.db.Query(`SELECT id, content, metadata FROM memories WHERE scope = ? ORDER BY id`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := memory.Terms(query)

	var results []core.SearchResult
	for rows.Next() {
		var (
			id      int64
			content string
			md      sql.NullString
		)
		if err := rows.Scan(&id, &content, &md); err != nil {
			return nil, err
		}

		score := memory.Score(content, terms)
		if score == 0 {
			continue
		}

		meta := map[string]any{}
		if md.Valid {
			if err := json.Unmarshal([]byte(md.String), &meta); err != nil {
				return nil, fmt.Errorf("failed to decode memory metadata: %w", err)
			}
		}
		results = append(results, core.SearchResult{
			ID:       memoryIDPrefix + strconv.FormatInt(id, 10),
			Content:  content,
			Score:    score,
			Metadata: meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Delete removes a memory of scope.
func (m *MemoryStore) Delete(scope string, memoryID string) error {
	id, err := strconv.ParseInt(strings.TrimPrefix(memoryID, memoryIDPrefix), 10, 64)
	if err != nil {
		return core.Errorf(core.ErrCodeNotFound, "memory %q not found", memoryID)
	}

	res, err := m.db.Exec(`DELETE FROM memories WHERE scope = ? AND id = ?`, scope, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.Errorf(core.ErrCodeNotFound, "memory %q not found", memoryID)
	}
	return nil
}

var _ core.MemoryStore = (*MemoryStore)(nil)
