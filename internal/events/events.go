package events

import "context"

// Event types
const (
	EventWalletConnected  = "wallet_connected"
	EventFundingCreated   = "funding_created"
	EventFundingConfirmed = "funding_confirmed"
	EventFundingSettled   = "funding_settled"
	EventFundingFallback  = "funding_fallback"
)

// StreamFunding carries all funding lifecycle events.
const StreamFunding = "events:funding"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
