// Package sqlite keeps store documents as JSON rows in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/papertrade/store"
)

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the database at path. ":memory:" works for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", store.ErrPersistence, path, err)
	}
	// One writer keeps merges serialized and ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: schema: %w", store.ErrPersistence, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
		}
		return store.Document{}, fmt.Errorf("%w: get %s/%s: %w", store.ErrPersistence, collection, id, err)
	}

	data, err := unmarshal(raw)
	if err != nil {
		return store.Document{}, fmt.Errorf("%w: get %s/%s: %w", store.ErrPersistence, collection, id, err)
	}
	return store.Document{ID: id, Data: data}, nil
}

func (s *Store) Query(ctx context.Context, collection string, opts store.QueryOptions) ([]store.Document, error) {
	q := `SELECT id, data FROM documents WHERE collection = ?`
	args := []any{collection}
	if opts.OrderBy != "" {
		dir := "ASC"
		if opts.Descending {
			dir = "DESC"
		}
		q += ` ORDER BY json_extract(data, ?) ` + dir + `, id`
		args = append(args, fmt.Sprintf(`$."%s"`, opts.OrderBy))
	}
	if opts.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", store.ErrPersistence, collection, err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("%w: query %s: %w", store.ErrPersistence, collection, err)
		}
		data, err := unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: query %s/%s: %w", store.ErrPersistence, collection, id, err)
		}
		out = append(out, store.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", store.ErrPersistence, collection, err)
	}
	return out, nil
}

// SetMerge is a read-modify-write inside one transaction.
func (s *Store) SetMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: merge %s/%s: %w", store.ErrPersistence, collection, id, err)
	}
	defer tx.Rollback()

	data := make(map[string]any)
	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`, collection, id,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("%w: merge %s/%s: %w", store.ErrPersistence, collection, id, err)
	default:
		if data, err = unmarshal(raw); err != nil {
			return fmt.Errorf("%w: merge %s/%s: %w", store.ErrPersistence, collection, id, err)
		}
	}

	for k, v := range fields {
		data[k] = v
	}
	if err := upsert(ctx, tx, collection, id, data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: merge %s/%s: %w", store.ErrPersistence, collection, id, err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	return upsert(ctx, s.db, collection, id, data)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %w", store.ErrPersistence, collection, id, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, collection, id string, data map[string]any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %w", store.ErrPersistence, collection, id, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, string(b), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: write %s/%s: %w", store.ErrPersistence, collection, id, err)
	}
	return nil
}

func unmarshal(raw string) (map[string]any, error) {
	data := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	return data, nil
}
