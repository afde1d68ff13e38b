package consumers

import (
	"context"
	"encoding/json"
	"itemsvc/app/item"
	"itemsvc/infra/database"
	"itemsvc/pkg/events"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newHandler(t *testing.T) (*ItemEventHandler, item.Repository, *observer.ObservedLogs) {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })

	core, logs := observer.New(zap.InfoLevel)
	repo := database.NewItemRepository(db)

	return NewItemEventHandler(repo, zap.New(core)), repo, logs
}

func createdEvent(t *testing.T, payload any) *events.Event {
	t.Helper()
	event, err := events.NewEvent(events.ItemCreatedEvent, events.EventVersionV1, payload, events.Headers{TraceID: "trace-1"})
	require.NoError(t, err)
	return event
}

func TestHandleItemCreated(t *testing.T) {
	h, repo, logs := newHandler(t)
	name := "Test Item"

	stored, err := repo.Create(context.Background(), &item.CreateItemRequest{Name: &name})
	require.NoError(t, err)

	err = h.HandleEvent(context.Background(), createdEvent(t, events.ItemCreatedPayload{ID: stored.ID, Name: name}))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Item creation audited").Len())
	assert.Zero(t, logs.FilterMessage("Item changed since item.created was published").Len())
}

func TestHandleItemCreated_NameMismatchIsLogged(t *testing.T) {
	h, repo, logs := newHandler(t)
	name := "Current"

	stored, err := repo.Create(context.Background(), &item.CreateItemRequest{Name: &name})
	require.NoError(t, err)

	err = h.HandleEvent(context.Background(), createdEvent(t, events.ItemCreatedPayload{ID: stored.ID, Name: "Announced"}))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Item changed since item.created was published").Len())
}

func TestHandleItemCreated_MissingItem(t *testing.T) {
	h, _, _ := newHandler(t)

	err := h.HandleEvent(context.Background(), createdEvent(t, events.ItemCreatedPayload{ID: 999999, Name: "ghost"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestHandleItemCreated_MalformedPayload(t *testing.T) {
	h, _, _ := newHandler(t)

	event := createdEvent(t, nil)
	event.Payload = json.RawMessage(`{"id": "not-a-number"}`)
	assert.Error(t, h.HandleEvent(context.Background(), event))

	event.Payload = json.RawMessage(`{"name": "no id"}`)
	assert.Error(t, h.HandleEvent(context.Background(), event))
}

func TestHandleUnknownEventIsIgnored(t *testing.T) {
	h, _, logs := newHandler(t)

	event, err := events.NewEvent("item.archived", events.EventVersionV1, nil, events.Headers{})
	require.NoError(t, err)
	require.NoError(t, h.HandleEvent(context.Background(), event))

	assert.Equal(t, 1, logs.FilterMessage("Unknown item event type").Len())
}
