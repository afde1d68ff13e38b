package item

import (
	"context"
	"itemsvc/domain"
	"itemsvc/pkg/httperror"

	"go.uber.org/zap"
)

type GetItemsHandler struct {
	repository Repository
}

func NewGetItemsHandler(repository Repository) *GetItemsHandler {
	return &GetItemsHandler{
		repository: repository,
	}
}

type GetItemsRequest struct{}

type GetItemsResponse []domain.Item

func (h GetItemsHandler) Handle(ctx context.Context, _ *GetItemsRequest) (*GetItemsResponse, error) {
	items, err := h.repository.GetItems(ctx)
	if err != nil {
		zap.L().Error("Failed to list items", zap.Error(err))
		return nil, httperror.InternalServerError(
			"item.index.failed",
			"Failed to retrieve items",
			nil,
		)
	}

	// Always a JSON array, never null.
	res := make(GetItemsResponse, 0, len(items))
	res = append(res, items...)

	return &res, nil
}
