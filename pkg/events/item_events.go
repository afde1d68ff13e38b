package events

// Exchanges
const (
	ItemExchange = "items.item"
)

// Event names
const (
	ItemCreatedEvent = "item.created"
)

// Event versions
const (
	EventVersionV1 = "v1"
)

// ItemCreatedPayload represents the payload for item.created event
type ItemCreatedPayload struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}
