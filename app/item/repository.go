package item

import (
	"context"
	"itemsvc/domain"
)

// Repository returns sql.ErrNoRows from GetItem when no item has the id.
type Repository interface {
	Close() error
	GetItems(ctx context.Context) ([]domain.Item, error)
	GetItem(ctx context.Context, id int64) (domain.Item, error)
	Create(ctx context.Context, req *CreateItemRequest) (domain.Item, error)
}
