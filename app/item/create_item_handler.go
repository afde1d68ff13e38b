package item

import (
	"context"
	"errors"
	"itemsvc/domain"
	"itemsvc/pkg/events"
	"itemsvc/pkg/httperror"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type CreateItemHandler struct {
	repository     Repository
	eventPublisher events.Publisher
	service        string
}

type CreateItemRequest struct {
	Name        *string `json:"name" validate:"required" db:"name"`
	Description *string `json:"description" db:"description"`
}

type CreateItemResponse = domain.Item

// NewCreateItemHandler builds the create handler. eventPublisher may be nil,
// in which case no item.created event is emitted.
func NewCreateItemHandler(repository Repository, eventPublisher events.Publisher, service string) *CreateItemHandler {
	return &CreateItemHandler{
		repository:     repository,
		eventPublisher: eventPublisher,
		service:        service,
	}
}

func (h CreateItemHandler) Handle(ctx context.Context, req *CreateItemRequest) (*CreateItemResponse, error) {
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return nil, httperror.UnprocessableEntity(
				"item.create.validation_failed",
				"Validation failed for the request",
				fieldErrors(ve),
			)
		}

		return nil, httperror.InternalServerError(
			"item.create.validation_error",
			"An unexpected validation error occurred",
			nil,
		)
	}

	item, err := h.repository.Create(ctx, req)
	if err != nil {
		zap.L().Error("Failed to create item", zap.Error(err))
		return nil, httperror.InternalServerError(
			"item.create.create_failed",
			"An error occurred while creating the item",
			nil,
		)
	}

	h.publishEvent(ctx, item)

	return &item, nil
}

func (h CreateItemHandler) publishEvent(ctx context.Context, item domain.Item) {
	if h.eventPublisher == nil {
		return
	}

	headers := events.HeadersFromContext(ctx, h.service)

	event, err := events.NewEvent(
		events.ItemCreatedEvent,
		events.EventVersionV1,
		events.ItemCreatedPayload{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
		},
		headers,
	)
	if err != nil {
		zap.L().Error("Failed to build item.created event",
			zap.Int64("itemId", item.ID),
			zap.Error(err),
		)
		return
	}

	if err := h.eventPublisher.Publish(ctx, events.ItemExchange, event, headers); err != nil {
		zap.L().Error("Failed to publish item.created event",
			zap.Int64("itemId", item.ID),
			zap.Error(err),
		)
	}
}
