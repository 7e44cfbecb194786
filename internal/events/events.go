// Package events defines the event payloads published by the inventory service.
package events

import "time"

// AssetStateChanged is emitted whenever an asset's lifecycle status changes.
type AssetStateChanged struct {
	AssetID    string    `json:"asset_id"`
	Tag        string    `json:"tag"`
	Status     string    `json:"status"`
	AssigneeID string    `json:"assignee_id,omitempty"`
	KnoxID     string    `json:"knox_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivityRecorded mirrors an appended audit record for downstream consumers.
type ActivityRecorded struct {
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Note       string    `json:"note"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ImportRequested carries a reconciliation batch submitted through the feed topic.
type ImportRequested struct {
	ActorID     string              `json:"actor_id,omitempty"`
	RequestedAt time.Time           `json:"requested_at"`
	Rows        []map[string]string `json:"rows"`
}
