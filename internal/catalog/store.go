package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"inferd/pkg/types"
)

// Store persists model configs in sqlite. Each row keeps the full config as
// JSON next to a few indexed columns.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the sqlite database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS models (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  source TEXT NOT NULL,
  body TEXT NOT NULL,
  updated_at DATETIME NOT NULL
);
`)
	return err
}

// Upsert validates cfg and writes it.
func (s *Store) Upsert(ctx context.Context, cfg types.ModelConfig) error {
	v, _, err := Validate(cfg)
	if err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", v.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO models(id, type, source, body, updated_at) VALUES(?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET type=excluded.type, source=excluded.source, body=excluded.body, updated_at=excluded.updated_at;
`, v.ID, string(v.Type), v.Source, string(body), time.Now().UTC())
	return err
}

// Get returns the config stored under id.
func (s *Store) Get(ctx context.Context, id string) (types.ModelConfig, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM models WHERE id=?;`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ModelConfig{}, false, nil
	}
	if err != nil {
		return types.ModelConfig{}, false, err
	}
	var cfg types.ModelConfig
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return types.ModelConfig{}, false, fmt.Errorf("decode %s: %w", id, err)
	}
	return cfg, true, nil
}

// List returns every stored config ordered by id.
func (s *Store) List(ctx context.Context) ([]types.ModelConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM models ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ModelConfig
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		var cfg types.ModelConfig
		if err := json.Unmarshal([]byte(body), &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// Delete removes id. Deleting a missing id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id=?;`, id)
	return err
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
