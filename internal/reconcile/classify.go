// Package reconcile classifies the entities of two realms per natural key.
//
// Everything here is pure and synchronous: inputs are snapshots fetched by the
// caller, nothing is mutated, and every call is independent.
//
// Import Path: kc-steward.io/steward/internal/reconcile
package reconcile

import (
	"sort"

	"kc-steward.io/steward/internal/domain"
)

// Result is the classification of one category.
type Result struct {
	Category domain.Category     `json:"category"`
	Records  []domain.DiffRecord `json:"records"`

	index map[string]int
}

// Lookup returns the record for a natural key.
func (r *Result) Lookup(key string) (domain.DiffRecord, bool) {
	if r == nil {
		return domain.DiffRecord{}, false
	}
	i, ok := r.index[key]
	if !ok {
		return domain.DiffRecord{}, false
	}
	return r.Records[i], true
}

// Summary counts records per status.
func (r *Result) Summary() map[domain.Status]int {
	counts := map[domain.Status]int{
		domain.StatusMatch:                0,
		domain.StatusMissingInDestination: 0,
		domain.StatusMissingInSource:      0,
		domain.StatusDifferentConfig:      0,
	}
	if r == nil {
		return counts
	}
	for _, rec := range r.Records {
		counts[rec.Status]++
	}
	return counts
}

// Filter returns the records with the given status.
func (r *Result) Filter(status domain.Status) []domain.DiffRecord {
	var out []domain.DiffRecord
	if r == nil {
		return out
	}
	for _, rec := range r.Records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

// Classify compares source and destination entities of one category.
//
// Keys match by exact, case-sensitive string equality. Destination-only keys are
// reported as missing_in_source only when twoWay is set; in one-way mode the
// destination may carry extra entities that are not tracked at all.
//
// Records come out sorted by key, but callers should address them via Lookup.
func Classify(category domain.Category, source, destination []domain.Entity, twoWay bool) *Result {
	src := keyed(source)
	dst := keyed(destination)

	records := make([]domain.DiffRecord, 0, len(src)+len(dst))
	for key, s := range src {
		d, ok := dst[key]
		if !ok {
			records = append(records, domain.DiffRecord{
				Key:    key,
				Entity: s,
				Status: domain.StatusMissingInDestination,
			})
			continue
		}

		diff := DiffFields(category, s, d)
		if diff.Empty() {
			records = append(records, domain.DiffRecord{
				Key:    key,
				Entity: s,
				Status: domain.StatusMatch,
			})
			continue
		}
		rec := domain.DiffRecord{
			Key:              key,
			Entity:           s,
			Status:           domain.StatusDifferentConfig,
			Differences:      diff.Fields,
			SourceValue:      diff.Source,
			DestinationValue: diff.Destination,
		}
		if len(diff.SetDeltas) > 0 {
			rec.SetDeltas = diff.SetDeltas
		}
		records = append(records, rec)
	}

	if twoWay {
		for key, d := range dst {
			if _, ok := src[key]; ok {
				continue
			}
			records = append(records, domain.DiffRecord{
				Key:    key,
				Entity: d,
				Status: domain.StatusMissingInSource,
			})
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })

	index := make(map[string]int, len(records))
	for i, rec := range records {
		index[rec.Key] = i
	}
	return &Result{Category: category, Records: records, index: index}
}

// keyed builds the key→entity map of one side. A repeated key keeps the last entity.
func keyed(entities []domain.Entity) map[string]domain.Entity {
	m := make(map[string]domain.Entity, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		m[e.Key()] = e
	}
	return m
}
