package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"itemsvc/domain"

	"github.com/jmoiron/sqlx"
)

// Session is a storage session scoped to one unit of work. It is backed by a
// transaction: nothing it writes is visible to other sessions until Commit.
type Session struct {
	tx   *sqlx.Tx
	done bool
}

func (d *DB) Session(ctx context.Context) (*Session, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin session: %w", err)
	}
	return &Session{tx: tx}, nil
}

// WithSession runs fn inside a fresh session, commits when fn succeeds and
// releases the session on every path, panics included.
func (d *DB) WithSession(ctx context.Context, fn func(s *Session) error) (err error) {
	s, err := d.Session(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := fn(s); err != nil {
		return err
	}

	return s.Commit()
}

func (s *Session) Active() bool {
	return !s.done
}

func (s *Session) Commit() error {
	if s.done {
		return sql.ErrTxDone
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

func (s *Session) Rollback() error {
	if s.done {
		return sql.ErrTxDone
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to roll back session: %w", err)
	}
	return nil
}

// Close rolls back unless the session was already committed or rolled back.
// It is safe to call more than once.
func (s *Session) Close() error {
	if s.done {
		return nil
	}
	if err := s.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

const insertItemQuery = `
	INSERT INTO items (name, description)
	VALUES (:name, :description)
	RETURNING id, name, description`

// CreateItem inserts a row and returns it with its generated id. arg must
// provide the :name and :description named parameters (a struct with db tags
// or a map).
func (s *Session) CreateItem(ctx context.Context, arg any) (domain.Item, error) {
	var i domain.Item

	rows, err := sqlx.NamedQueryContext(ctx, s.tx, insertItemQuery, arg)
	if err != nil {
		return i, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return i, err
		}
		return i, errors.New("insert returned no row")
	}

	if err := rows.StructScan(&i); err != nil {
		return i, err
	}

	return i, rows.Close()
}

func (s *Session) GetItems(ctx context.Context) ([]domain.Item, error) {
	items := make([]domain.Item, 0)
	query := `SELECT id, name, description FROM items`

	if err := s.tx.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}

	return items, nil
}

// GetItem returns sql.ErrNoRows when no item has the id.
func (s *Session) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	var i domain.Item
	query := s.tx.Rebind(`SELECT id, name, description FROM items WHERE id = ?`)

	err := s.tx.GetContext(ctx, &i, query, id)

	return i, err
}

// FindItemByName returns the first item with the given name.
func (s *Session) FindItemByName(ctx context.Context, name string) (domain.Item, error) {
	var i domain.Item
	query := s.tx.Rebind(`SELECT id, name, description FROM items WHERE name = ? LIMIT 1`)

	err := s.tx.GetContext(ctx, &i, query, name)

	return i, err
}

func (s *Session) CountItems(ctx context.Context) (int, error) {
	var count int

	if err := s.tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM items`); err != nil {
		return 0, err
	}

	return count, nil
}
