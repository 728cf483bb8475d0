package domain

import "sort"

// Cluster is a managed realm on an identity-provider instance.
// TagIDs reflects the directory state at fetch time and is never patched locally.
type Cluster struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	BaseURL    string   `json:"base_url"`
	Realm      string   `json:"realm"`
	GroupLabel string   `json:"group_label,omitempty"`
	TagIDs     []string `json:"tag_ids"`
}

// Tag is an operator-defined label attachable to clusters.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// TagOperation is one batched assign or remove call.
type TagOperation struct {
	// Key is the sorted tag-id list joined by ",".
	Key        string   `json:"key"`
	ClusterIDs []string `json:"cluster_ids"`
	TagIDs     []string `json:"tag_ids"`
}

// TagOperationPlan is the minimal set of batched tag mutations.
// No (cluster, tag) pair appears in both Assign and Remove.
type TagOperationPlan struct {
	Assign []TagOperation `json:"assign"`
	Remove []TagOperation `json:"remove"`
}

// Empty reports whether the plan carries no operations.
func (p TagOperationPlan) Empty() bool {
	return len(p.Assign) == 0 && len(p.Remove) == 0
}

// TagSet is an unordered set of tag IDs.
type TagSet map[string]struct{}

// NewTagSet builds a TagSet from ids.
func NewTagSet(ids ...string) TagSet {
	s := make(TagSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s TagSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in sorted order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
