package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kc-steward.io/steward/internal/domain"
	apperrors "kc-steward.io/steward/internal/pkg/errors"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/pkg/metrics"
	"kc-steward.io/steward/internal/provider"
)

// SyncRequest selects entities of one category to push from source to destination.
type SyncRequest struct {
	SourceID      string
	DestinationID string
	Category      domain.Category
	Selection     domain.Selection
	TwoWay        bool
	Actor         string
}

// SyncFailure is the rejected sync of one key.
type SyncFailure struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// SyncResult reports every selected key and the comparison recomputed afterwards.
type SyncResult struct {
	Synced     []string      `json:"synced"`
	Failed     []SyncFailure `json:"failed,omitempty"`
	Comparison *Comparison   `json:"comparison,omitempty"`
}

// PartiallyFailed reports whether at least one key was rejected.
func (r *SyncResult) PartiallyFailed() bool {
	return len(r.Failed) > 0
}

// SyncService pushes selected entity definitions between realms.
type SyncService struct {
	syncer     provider.EntitySyncer
	comparison *ComparisonService
	dispatcher *domain.EventDispatcher
	log        *zap.Logger
}

// NewSyncService creates a new SyncService.
func NewSyncService(syncer provider.EntitySyncer, comparison *ComparisonService, dispatcher *domain.EventDispatcher) *SyncService {
	return &SyncService{
		syncer:     syncer,
		comparison: comparison,
		dispatcher: dispatcher,
		log:        logger.Named("sync"),
	}
}

// Sync invokes the syncer once per selected key in key order. Keys are independent:
// a failure is recorded and the remaining keys still run, and nothing already
// synced is rolled back. The full comparison is recomputed afterwards.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	category, err := domain.ParseCategory(string(req.Category))
	if err != nil {
		return nil, apperrors.ErrInvalidCategoryf(string(req.Category))
	}
	keys := req.Selection.Keys()
	if len(keys) == 0 {
		return nil, apperrors.ErrEmptySelection()
	}
	src, dst, err := s.comparison.resolvePair(ctx, req.SourceID, req.DestinationID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Synced: []string{}}
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, SyncFailure{Key: key, Error: err.Error()})
			continue
		}
		if err := s.syncer.SyncEntity(ctx, src.ID, dst.ID, category, key); err != nil {
			metrics.SyncEntitiesTotal.WithLabelValues(string(category), metrics.ResultFailure).Inc()
			logger.FromContext(ctx, s.log).Warn("Entity sync failed",
				zap.String("category", string(category)),
				zap.String("key", key),
				zap.String("source_cluster", src.ID),
				zap.String("destination_cluster", dst.ID),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, SyncFailure{Key: key, Error: err.Error()})
			continue
		}
		metrics.SyncEntitiesTotal.WithLabelValues(string(category), metrics.ResultSuccess).Inc()
		result.Synced = append(result.Synced, key)
	}

	logger.FromContext(ctx, s.log).Info("Entity sync finished",
		zap.String("category", string(category)),
		zap.String("source_cluster", src.ID),
		zap.String("destination_cluster", dst.ID),
		zap.Int("synced", len(result.Synced)),
		zap.Int("failed", len(result.Failed)),
	)

	if len(result.Synced) > 0 {
		s.notify(ctx, req.Actor, src.ID, dst.ID, category, result)
	}

	// The caller needs a fresh view whatever the outcome; a cancelled context
	// leaves Comparison nil.
	cmp, err := s.comparison.Compare(ctx, CompareRequest{
		SourceID:      src.ID,
		DestinationID: dst.ID,
		TwoWay:        req.TwoWay,
	})
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("Comparison after sync failed", zap.Error(err))
	}
	result.Comparison = cmp
	return result, nil
}

func (s *SyncService) notify(ctx context.Context, actor, srcID, dstID string, category domain.Category, result *SyncResult) {
	failed := make([]string, 0, len(result.Failed))
	for _, f := range result.Failed {
		failed = append(failed, f.Key)
	}
	payload, err := domain.EntitiesSyncedPayload{
		SourceClusterID:      srcID,
		DestinationClusterID: dstID,
		Category:             category,
		Synced:               result.Synced,
		Failed:               failed,
	}.ToJSON()
	if err != nil {
		logger.FromContext(ctx, s.log).Error("Encode sync event payload", zap.Error(err))
		return
	}
	event := &domain.DomainEvent{
		EventID:       uuid.NewString(),
		EventType:     domain.EventEntitiesSynced,
		AggregateType: "realm",
		AggregateID:   fmt.Sprintf("%s/%s", dstID, category),
		Payload:       payload,
		CreatedBy:     actor,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		logger.FromContext(ctx, s.log).Warn("Sync observers failed", zap.Error(err))
	}
}
