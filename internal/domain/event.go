package domain

import (
	"encoding/json"
	"time"
)

// EventType defines the type of domain event.
type EventType string

const (
	// EventEntitiesSynced fires after a sync run; observers refresh their entity views.
	EventEntitiesSynced EventType = "ENTITIES_SYNCED"
	// EventClusterTagsChanged fires after tag batches were submitted; observers re-fetch clusters.
	EventClusterTagsChanged EventType = "CLUSTER_TAGS_CHANGED"
)

// DomainEvent is an immutable change notification.
type DomainEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	AggregateType string    `json:"aggregate_type"`
	AggregateID   string    `json:"aggregate_id"`
	Payload       []byte    `json:"payload"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntitiesSyncedPayload is the payload for EventEntitiesSynced.
type EntitiesSyncedPayload struct {
	SourceClusterID      string   `json:"source_cluster_id"`
	DestinationClusterID string   `json:"destination_cluster_id"`
	Category             Category `json:"category"`
	Synced               []string `json:"synced"`
	Failed               []string `json:"failed,omitempty"`
}

// ToJSON converts payload to JSON bytes.
func (p EntitiesSyncedPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// ClusterTagsChangedPayload is the payload for EventClusterTagsChanged.
type ClusterTagsChangedPayload struct {
	ClusterIDs []string `json:"cluster_ids"`
	Failed     int      `json:"failed_batches"`
}

// ToJSON converts payload to JSON bytes.
func (p ClusterTagsChangedPayload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}
