package consumers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"itemsvc/app/item"
	"itemsvc/pkg/events"

	"go.uber.org/zap"
)

// ItemEventHandler audits item events against storage.
type ItemEventHandler struct {
	repository item.Repository
	logger     *zap.Logger
}

func NewItemEventHandler(repository item.Repository, logger *zap.Logger) *ItemEventHandler {
	return &ItemEventHandler{
		repository: repository,
		logger:     logger,
	}
}

func (h *ItemEventHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	h.logger.Info("Item event received",
		zap.String("event", event.Event),
		zap.String("version", event.Version),
		zap.String("traceId", event.TraceID),
	)

	switch event.Event {
	case events.ItemCreatedEvent:
		return h.handleItemCreated(ctx, event)
	default:
		h.logger.Warn("Unknown item event type", zap.String("event", event.Event))
		return nil
	}
}

// handleItemCreated confirms the announced item is persisted with the
// announced name.
func (h *ItemEventHandler) handleItemCreated(ctx context.Context, event *events.Event) error {
	var payload events.ItemCreatedPayload
	if err := event.DecodePayload(&payload); err != nil {
		return fmt.Errorf("malformed payload - unmarshal failed: %w", err)
	}

	if payload.ID <= 0 {
		return fmt.Errorf("malformed payload - id missing or invalid")
	}

	stored, err := h.repository.GetItem(ctx, payload.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %d announced but not found", payload.ID)
		}
		return fmt.Errorf("failed to get item: %w", err)
	}

	if stored.Name != payload.Name {
		h.logger.Warn("Item changed since item.created was published",
			zap.Int64("itemId", payload.ID),
			zap.String("announcedName", payload.Name),
			zap.String("storedName", stored.Name),
			zap.String("traceId", event.TraceID),
		)
	}

	h.logger.Info("Item creation audited",
		zap.Int64("itemId", stored.ID),
		zap.String("name", stored.Name),
		zap.Bool("hasDescription", stored.Description != nil),
		zap.Time("publishedAt", event.Timestamp),
		zap.String("traceId", event.TraceID),
	)

	return nil
}
