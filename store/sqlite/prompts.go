package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/prompt"
)

// PromptStore implements prompt.Store.
type PromptStore struct {
	db *sql.DB
}

// Save inserts or updates p. The source of an existing prompt is immutable
// and names are unique.
func (s *PromptStore) Save(p *prompt.Prompt) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanPrompt(tx.QueryRow(`SELECT data FROM prompts WHERE id = ?`, p.ID))
	if err != nil && core.CodeOf(err) != core.ErrCodeNotFound {
		return err
	}
	if err := prompt.CheckUpdate(existing, p); err != nil {
		return err
	}

	var owner string
	err = tx.QueryRow(`SELECT id FROM prompts WHERE name = ? AND id != ?`, p.Name, p.ID).Scan(&owner)
	switch {
	case err == nil:
		return core.Errorf(core.ErrCodeInvalidPrompt, "prompt name %q already used by %s", p.Name, owner)
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO prompts (id, name, source, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		p.ID, p.Name, string(p.Source), string(data)); err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}

	return tx.Commit()
}

// Get returns the prompt with id.
func (s *PromptStore) Get(id string) (*prompt.Prompt, error) {
	p, err := scanPrompt(s.db.QueryRow(`SELECT data FROM prompts WHERE id = ?`, id))
	if core.CodeOf(err) == core.ErrCodeNotFound {
		return nil, core.Errorf(core.ErrCodeNotFound, "prompt %q not found", id)
	}
	return p, err
}

// GetByName returns the prompt named name.
func (s *PromptStore) GetByName(name string) (*prompt.Prompt, error) {
	p, err := scanPrompt(s.db.QueryRow(`SELECT data FROM prompts WHERE name = ?`, name))
	if core.CodeOf(err) == core.ErrCodeNotFound {
		return nil, core.Errorf(core.ErrCodeNotFound, "prompt %q not found", name)
	}
	return p, err
}

// List returns all prompts ordered by name.
func (s *PromptStore) List() ([]*prompt.Prompt, error) {
	rows, err := s.db.Query(`SELECT data FROM prompts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*prompt.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

// Delete removes the prompt with id.
func (s *PromptStore) Delete(id string) error {
	return deleteRow(s.db, `DELETE FROM prompts WHERE id = ?`, id, "prompt")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrompt(row scanner) (*prompt.Prompt, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.Errorf(core.ErrCodeNotFound, "prompt not found")
		}
		return nil, err
	}

	var p prompt.Prompt
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to decode prompt: %w", err)
	}
	return &p, nil
}

func deleteRow(db *sql.DB, query, id, what string) error {
	res, err := db.Exec(query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.Errorf(core.ErrCodeNotFound, "%s %q not found", what, id)
	}
	return nil
}

var _ prompt.Store = (*PromptStore)(nil)
