package subscriptions

import (
	"time"

	"github.com/draftnotes/notegraph/internal/server/events"
)

// Pattern defines which mutation events a subscription matches. Empty
// fields match everything; populated fields are OR-lists that must each
// admit the event.
type Pattern struct {
	EventTypes     []string `json:"event_types,omitempty"`
	HierarchyTypes []string `json:"hierarchy_types,omitempty"`
	NoteIDs        []int64  `json:"note_ids,omitempty"`
	TagIDs         []int64  `json:"tag_ids,omitempty"`
}

// Subscription is a standing query that fires when graph mutations match
// its pattern.
type Subscription struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Pattern Pattern `json:"pattern"`

	// Webhook is the URL notified on each match.
	Webhook string `json:"webhook,omitempty"`

	Enabled   bool       `json:"enabled"`
	Created   time.Time  `json:"created"`
	Modified  time.Time  `json:"modified"`
	LastFired *time.Time `json:"last_fired,omitempty"`
	FireCount int        `json:"fire_count"`
}

// Notification is the payload delivered when a subscription fires.
type Notification struct {
	SubscriptionID   string       `json:"subscription_id"`
	SubscriptionName string       `json:"subscription_name"`
	Event            events.Event `json:"event"`
	MatchedAt        time.Time    `json:"matched_at"`
}

// CreateSubscriptionRequest is the API request to create a subscription
type CreateSubscriptionRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Pattern     Pattern `json:"pattern"`
	Webhook     string  `json:"webhook,omitempty"`
}

// UpdateSubscriptionRequest is the API request to update a subscription.
// Nil fields are left unchanged.
type UpdateSubscriptionRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Pattern     *Pattern `json:"pattern,omitempty"`
	Webhook     *string  `json:"webhook,omitempty"`
	Enabled     *bool    `json:"enabled,omitempty"`
}
