// Package tagplan computes the minimal batched tag mutations for a set of clusters.
//
// Import Path: kc-steward.io/steward/internal/tagplan
package tagplan

import (
	"sort"
	"strings"

	"kc-steward.io/steward/internal/domain"
)

// ClusterTags is the current tag membership of one cluster.
type ClusterTags struct {
	ID      string
	Current domain.TagSet
}

// Plan computes the assign and remove batches that move every cluster to target.
//
// Only tags in managed are ever removed; a nil managed set puts every tag under
// control. Clusters needing an identical tag set share one operation, keyed by the
// sorted tag ids. Clusters without drift contribute nothing.
func Plan(target domain.TagSet, clusters []ClusterTags, managed domain.TagSet) domain.TagOperationPlan {
	assign := newBatcher()
	remove := newBatcher()

	for _, c := range clusters {
		var toAssign, toRemove []string
		for id := range target {
			if !c.Current.Has(id) {
				toAssign = append(toAssign, id)
			}
		}
		for id := range c.Current {
			if target.Has(id) {
				continue
			}
			if managed != nil && !managed.Has(id) {
				continue
			}
			toRemove = append(toRemove, id)
		}
		assign.add(c.ID, toAssign)
		remove.add(c.ID, toRemove)
	}

	return domain.TagOperationPlan{
		Assign: assign.operations(),
		Remove: remove.operations(),
	}
}

// batcher groups clusters by the exact tag set they need.
type batcher struct {
	byKey map[string]*domain.TagOperation
	seen  map[string]map[string]struct{}
}

func newBatcher() *batcher {
	return &batcher{
		byKey: make(map[string]*domain.TagOperation),
		seen:  make(map[string]map[string]struct{}),
	}
}

func (b *batcher) add(clusterID string, tagIDs []string) {
	if len(tagIDs) == 0 {
		return
	}
	sort.Strings(tagIDs)
	key := strings.Join(tagIDs, ",")

	op, ok := b.byKey[key]
	if !ok {
		op = &domain.TagOperation{Key: key, TagIDs: tagIDs}
		b.byKey[key] = op
		b.seen[key] = make(map[string]struct{})
	}
	if _, dup := b.seen[key][clusterID]; dup {
		return
	}
	b.seen[key][clusterID] = struct{}{}
	op.ClusterIDs = append(op.ClusterIDs, clusterID)
}

func (b *batcher) operations() []domain.TagOperation {
	ops := make([]domain.TagOperation, 0, len(b.byKey))
	for _, op := range b.byKey {
		sort.Strings(op.ClusterIDs)
		ops = append(ops, *op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Key < ops[j].Key })
	return ops
}
