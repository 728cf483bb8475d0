package handlers

import (
	"time"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/service"
)

// CategoryResult is one tab of the comparison view.
type CategoryResult struct {
	Summary  map[domain.Status]int `json:"summary"`
	Records  []domain.DiffRecord   `json:"records"`
	Degraded bool                  `json:"degraded"`
}

// ComparisonResponse is the wire form of service.Comparison.
type ComparisonResponse struct {
	Source      domain.Cluster                     `json:"source"`
	Destination domain.Cluster                     `json:"destination"`
	TwoWay      bool                               `json:"two_way"`
	Categories  map[domain.Category]CategoryResult `json:"categories"`
	Degraded    []service.Degradation              `json:"degraded,omitempty"`
	ComparedAt  time.Time                          `json:"compared_at"`
}

// SyncResponse is the wire form of service.SyncResult.
type SyncResponse struct {
	Synced     []string              `json:"synced"`
	Failed     []service.SyncFailure `json:"failed,omitempty"`
	Comparison *ComparisonResponse   `json:"comparison,omitempty"`
}

func toComparisonResponse(cmp *service.Comparison) *ComparisonResponse {
	if cmp == nil {
		return nil
	}
	out := &ComparisonResponse{
		Source:      cmp.Source,
		Destination: cmp.Destination,
		TwoWay:      cmp.TwoWay,
		Categories:  make(map[domain.Category]CategoryResult, len(cmp.Results)),
		Degraded:    cmp.Degraded,
		ComparedAt:  cmp.ComparedAt,
	}
	for category, result := range cmp.Results {
		records := result.Records
		if records == nil {
			records = []domain.DiffRecord{}
		}
		out.Categories[category] = CategoryResult{
			Summary:  result.Summary(),
			Records:  records,
			Degraded: cmp.IsDegraded(category),
		}
	}
	return out
}

func toSyncResponse(res *service.SyncResult) *SyncResponse {
	return &SyncResponse{
		Synced:     res.Synced,
		Failed:     res.Failed,
		Comparison: toComparisonResponse(res.Comparison),
	}
}
