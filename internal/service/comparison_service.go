// Package service orchestrates realm comparison, entity synchronization and tag
// management over the provider boundaries.
//
// Services hold no per-request state. Concurrent I/O goes through the worker pools;
// the reconcile, topology and tagplan packages stay pure.
//
// Import Path: kc-steward.io/steward/internal/service
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"kc-steward.io/steward/internal/domain"
	apperrors "kc-steward.io/steward/internal/pkg/errors"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/pkg/metrics"
	"kc-steward.io/steward/internal/pkg/worker"
	"kc-steward.io/steward/internal/provider"
	"kc-steward.io/steward/internal/reconcile"
)

// Comparison sides.
const (
	SideSource      = "source"
	SideDestination = "destination"
)

// CompareRequest selects two realms and the categories to compare.
// Empty Categories means every category.
type CompareRequest struct {
	SourceID      string
	DestinationID string
	TwoWay        bool
	Categories    []domain.Category
}

// Degradation notes a category/side whose fetch failed and was compared as empty.
type Degradation struct {
	Category domain.Category `json:"category"`
	Side     string          `json:"side"`
	Error    string          `json:"error"`
}

// Comparison is the outcome of one comparison run.
type Comparison struct {
	Source      domain.Cluster                        `json:"source"`
	Destination domain.Cluster                        `json:"destination"`
	TwoWay      bool                                  `json:"two_way"`
	Results     map[domain.Category]*reconcile.Result `json:"results"`
	Degraded    []Degradation                         `json:"degraded,omitempty"`
	ComparedAt  time.Time                             `json:"compared_at"`
}

// IsDegraded reports whether a category was compared with partial data.
func (c *Comparison) IsDegraded(category domain.Category) bool {
	for _, d := range c.Degraded {
		if d.Category == category {
			return true
		}
	}
	return false
}

// ComparisonService fetches both realms and classifies every category.
type ComparisonService struct {
	directory provider.ClusterDirectory
	source    provider.EntitySource
	pool      *worker.Pool
	log       *zap.Logger
}

// NewComparisonService creates a new ComparisonService. Fetches fan out on pool.
func NewComparisonService(directory provider.ClusterDirectory, source provider.EntitySource, pool *worker.Pool) *ComparisonService {
	return &ComparisonService{
		directory: directory,
		source:    source,
		pool:      pool,
		log:       logger.Named("comparison"),
	}
}

// Compare runs one comparison. Only cluster validation fails the run; a failed
// fetch is recorded as a Degradation and treated as an empty snapshot.
func (s *ComparisonService) Compare(ctx context.Context, req CompareRequest) (*Comparison, error) {
	start := time.Now()

	categories, err := normalizeCategories(req.Categories)
	if err != nil {
		return nil, err
	}
	src, dst, err := s.resolvePair(ctx, req.SourceID, req.DestinationID)
	if err != nil {
		return nil, err
	}

	type snapshotKey struct {
		category domain.Category
		side     string
	}
	var (
		mu        sync.Mutex
		snapshots = make(map[snapshotKey][]domain.Entity, len(categories)*2)
		failures  = make(map[snapshotKey]error)
	)

	tasks := make([]worker.Task, 0, len(categories)*2)
	for _, category := range categories {
		for _, side := range []struct {
			name    string
			cluster string
		}{{SideSource, src.ID}, {SideDestination, dst.ID}} {
			key := snapshotKey{category: category, side: side.name}
			clusterID := side.cluster
			tasks = append(tasks, func(ctx context.Context) {
				entities, err := s.source.FetchEntities(ctx, clusterID, key.category)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures[key] = err
					return
				}
				snapshots[key] = entities
			})
		}
	}

	// Tasks that never ran leave their snapshot missing and are degraded below.
	if err := s.pool.RunAll(ctx, tasks...); err != nil {
		logger.FromContext(ctx, s.log).Warn("Some fetches did not run", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compare %s with %s: %w", src.ID, dst.ID, err)
	}

	cmp := &Comparison{
		Source:      *src,
		Destination: *dst,
		TwoWay:      req.TwoWay,
		Results:     make(map[domain.Category]*reconcile.Result, len(categories)),
		ComparedAt:  time.Now().UTC(),
	}
	for _, category := range categories {
		sides := make(map[string][]domain.Entity, 2)
		for _, side := range []string{SideSource, SideDestination} {
			key := snapshotKey{category: category, side: side}
			entities, ok := snapshots[key]
			if !ok {
				fetchErr := failures[key]
				if fetchErr == nil {
					fetchErr = errors.New("fetch did not run")
				}
				cmp.Degraded = append(cmp.Degraded, Degradation{Category: category, Side: side, Error: fetchErr.Error()})
				metrics.FetchFailuresTotal.WithLabelValues(string(category), side).Inc()
				logger.FromContext(ctx, s.log).Warn("Entity fetch failed, comparing as empty",
					zap.String("category", string(category)),
					zap.String("side", side),
					zap.String("source_cluster", src.ID),
					zap.String("destination_cluster", dst.ID),
					zap.Error(fetchErr),
				)
			}
			sides[side] = entities
		}

		result := reconcile.Classify(category, sides[SideSource], sides[SideDestination], req.TwoWay)
		cmp.Results[category] = result
		for status, n := range result.Summary() {
			if n > 0 {
				metrics.DiffRecordsTotal.WithLabelValues(string(category), string(status)).Add(float64(n))
			}
		}
	}

	metrics.ComparisonsTotal.Inc()
	metrics.ComparisonDuration.Observe(time.Since(start).Seconds())
	logger.FromContext(ctx, s.log).Info("Realms compared",
		zap.String("source_cluster", src.ID),
		zap.String("destination_cluster", dst.ID),
		zap.Bool("two_way", req.TwoWay),
		zap.Int("categories", len(categories)),
		zap.Int("degraded", len(cmp.Degraded)),
		zap.Duration("duration", time.Since(start)),
	)
	return cmp, nil
}

func (s *ComparisonService) resolvePair(ctx context.Context, sourceID, destinationID string) (*domain.Cluster, *domain.Cluster, error) {
	if sourceID == "" || destinationID == "" {
		return nil, nil, apperrors.BadRequest(apperrors.CodeInvalidRequest, "source and destination cluster ids are required")
	}
	if sourceID == destinationID {
		return nil, nil, apperrors.ErrSameClusterf(sourceID)
	}
	src, err := lookupCluster(ctx, s.directory, sourceID)
	if err != nil {
		return nil, nil, err
	}
	dst, err := lookupCluster(ctx, s.directory, destinationID)
	if err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

func lookupCluster(ctx context.Context, directory provider.ClusterDirectory, id string) (*domain.Cluster, error) {
	c, err := directory.GetCluster(ctx, id)
	if errors.Is(err, provider.ErrClusterNotFound) {
		return nil, apperrors.ErrClusterNotFoundf(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get cluster %s: %w", id, err)
	}
	return c, nil
}

// normalizeCategories deduplicates and orders categories; empty means all.
func normalizeCategories(in []domain.Category) ([]domain.Category, error) {
	if len(in) == 0 {
		return append([]domain.Category(nil), domain.AllCategories...), nil
	}
	seen := make(map[domain.Category]bool, len(in))
	for _, c := range in {
		parsed, err := domain.ParseCategory(string(c))
		if err != nil {
			return nil, apperrors.ErrInvalidCategoryf(string(c))
		}
		seen[parsed] = true
	}
	order := make(map[domain.Category]int, len(domain.AllCategories))
	for i, c := range domain.AllCategories {
		order[c] = i
	}
	out := make([]domain.Category, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out, nil
}
