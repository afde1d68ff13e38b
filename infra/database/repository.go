package database

import (
	"context"
	"itemsvc/app/item"
	"itemsvc/domain"
)

// ItemRepository implements item.Repository with one session per call.
type ItemRepository struct {
	db *DB
}

var _ item.Repository = (*ItemRepository)(nil)

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Close() error {
	return r.db.Close()
}

func (r *ItemRepository) Create(ctx context.Context, req *item.CreateItemRequest) (domain.Item, error) {
	var i domain.Item
	err := r.db.WithSession(ctx, func(s *Session) error {
		var err error
		i, err = s.CreateItem(ctx, req)
		return err
	})
	return i, err
}

func (r *ItemRepository) GetItems(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	err := r.db.WithSession(ctx, func(s *Session) error {
		var err error
		items, err = s.GetItems(ctx)
		return err
	})
	return items, err
}

func (r *ItemRepository) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	var i domain.Item
	err := r.db.WithSession(ctx, func(s *Session) error {
		var err error
		i, err = s.GetItem(ctx, id)
		return err
	})
	return i, err
}
