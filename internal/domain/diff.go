package domain

import "sort"

// Status classifies an entity key across a source and a destination realm.
type Status string

const (
	StatusMatch                Status = "match"
	StatusMissingInDestination Status = "missing_in_destination"
	StatusMissingInSource      Status = "missing_in_source"
	StatusDifferentConfig      Status = "different_config"
)

// SetDelta splits a set-valued field into its display partitions.
// OnlyInSource is what a sync adds to the destination; OnlyInDestination is kept.
type SetDelta struct {
	OnlyInSource      []string `json:"only_in_source"`
	OnlyInDestination []string `json:"only_in_destination"`
	Common            []string `json:"common"`
}

// Empty reports whether the symmetric difference is empty.
func (d SetDelta) Empty() bool {
	return len(d.OnlyInSource) == 0 && len(d.OnlyInDestination) == 0
}

// DiffRecord is the classification of one natural key.
// Differences, SourceValue and DestinationValue are set only for StatusDifferentConfig.
type DiffRecord struct {
	Key              string              `json:"key"`
	Entity           Entity              `json:"entity"`
	Status           Status              `json:"status"`
	Differences      []string            `json:"differences,omitempty"`
	SourceValue      map[string]any      `json:"source_value,omitempty"`
	DestinationValue map[string]any      `json:"destination_value,omitempty"`
	SetDeltas        map[string]SetDelta `json:"set_deltas,omitempty"`
}

// Selection is the explicit operator selection of entity keys.
type Selection map[string]bool

// Keys returns the selected keys in sorted order.
func (s Selection) Keys() []string {
	keys := make([]string, 0, len(s))
	for k, selected := range s {
		if selected {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
