package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kalambet/hearth/internal/stream"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// All returns every persisted key/value pair.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	values, err := readAll(ctx, s.db)
	if err != nil {
		return nil, &IOError{Op: "read", Err: err}
	}
	return values, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings_kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", &IOError{Op: "read " + key, Err: err}
	}
	return value, nil
}

// Subscribe returns a stream of committed states. The subscriber immediately
// receives the latest state; Close the subscription to stop observing.
func (s *Store) Subscribe() *stream.Subscription[Change] {
	return s.changes.Subscribe()
}

// Latest returns the most recently committed state.
func (s *Store) Latest() Change {
	c, _ := s.changes.Latest()
	return c
}

// Tx is one atomic batch of key writes.
type Tx struct {
	ctx   context.Context
	tx    *sql.Tx
	now   string
	dirty bool
}

// Edit runs fn inside a single transaction. Either every write made through
// the Tx is committed or none is. An error returned by fn rolls back and is
// returned unchanged; a failure of the database itself is returned as *IOError.
// Subscribers are notified only when something was written.
func (s *Store) Edit(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &IOError{Op: "begin", Err: err}
	}

	tx := &Tx{ctx: ctx, tx: sqlTx, now: time.Now().UTC().Format(time.RFC3339Nano)}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if !tx.dirty {
		sqlTx.Rollback()
		return nil
	}

	values, err := readAll(ctx, sqlTx)
	if err != nil {
		sqlTx.Rollback()
		return &IOError{Op: "read", Err: err}
	}

	// Revisions are taken while the connection is held, so they follow commit order.
	rev := s.revision.Add(1)
	if err := sqlTx.Commit(); err != nil {
		return &IOError{Op: "commit", Err: err}
	}

	s.publishAt(rev, values)
	return nil
}

// Get reads key as seen by the transaction.
func (t *Tx) Get(key string) (string, bool, error) {
	var value string
	err := t.tx.QueryRowContext(t.ctx, "SELECT value FROM settings_kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &IOError{Op: "read " + key, Err: err}
	}
	return value, true, nil
}

// Set writes value under key.
func (t *Tx) Set(key, value string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO settings_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, t.now,
	)
	if err != nil {
		return &IOError{Op: "write " + key, Err: err}
	}
	t.dirty = true
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (t *Tx) Delete(key string) error {
	res, err := t.tx.ExecContext(t.ctx, "DELETE FROM settings_kv WHERE key = ?", key)
	if err != nil {
		return &IOError{Op: "delete " + key, Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		t.dirty = true
	}
	return nil
}

func (s *Store) publish(values map[string]string) {
	s.publishAt(s.revision.Add(1), values)
}

func (s *Store) publishAt(rev uint64, values map[string]string) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if rev <= s.published {
		return
	}
	s.published = rev
	s.changes.Publish(Change{Revision: rev, Values: values})
}

func readAll(ctx context.Context, q queryer) (map[string]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM settings_kv")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}
