package service

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kc-steward.io/steward/internal/domain"
	apperrors "kc-steward.io/steward/internal/pkg/errors"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/pkg/metrics"
	"kc-steward.io/steward/internal/pkg/worker"
	"kc-steward.io/steward/internal/provider"
	"kc-steward.io/steward/internal/tagplan"
)

// Tag batch actions.
const (
	ActionAssign = "assign"
	ActionRemove = "remove"
)

// TagPlanRequest is the submitted tag dialog. Checked holds only the tags the
// operator touched; untouched indeterminate tags are left alone.
type TagPlanRequest struct {
	ClusterIDs []string
	Checked    map[string]bool
	Actor      string
}

// TagPlan is the dialog state and the operations it implies.
type TagPlan struct {
	ClusterIDs []string                       `json:"cluster_ids"`
	States     map[string]tagplan.CheckState `json:"states"`
	Plan       domain.TagOperationPlan        `json:"plan"`
}

// BatchResult is the outcome of one batched tag operation.
type BatchResult struct {
	Action     string   `json:"action"`
	Key        string   `json:"key"`
	ClusterIDs []string `json:"cluster_ids"`
	TagIDs     []string `json:"tag_ids"`
	Error      string   `json:"error,omitempty"`
}

// Failed reports whether the batch was rejected.
func (b BatchResult) Failed() bool { return b.Error != "" }

// TagApplyResult is a plan together with its per-batch results.
type TagApplyResult struct {
	TagPlan
	Batches []BatchResult `json:"batches"`
}

// FailedBatches counts rejected batches.
func (r *TagApplyResult) FailedBatches() int {
	n := 0
	for _, b := range r.Batches {
		if b.Failed() {
			n++
		}
	}
	return n
}

// TagService plans and applies bulk tag changes.
type TagService struct {
	directory  provider.ClusterDirectory
	mutator    provider.TagMutator
	pool       *worker.Pool
	dispatcher *domain.EventDispatcher
	log        *zap.Logger
}

// NewTagService creates a new TagService.
func NewTagService(directory provider.ClusterDirectory, mutator provider.TagMutator, pool *worker.Pool, dispatcher *domain.EventDispatcher) *TagService {
	return &TagService{
		directory:  directory,
		mutator:    mutator,
		pool:       pool,
		dispatcher: dispatcher,
		log:        logger.Named("tags"),
	}
}

// ListTags returns the tag universe.
func (s *TagService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	tags, err := s.directory.ListTags(ctx)
	if err != nil {
		return nil, apperrors.Unavailable(err, apperrors.CodeDirectoryUnavailable, "list tags")
	}
	return tags, nil
}

// PlanBulk builds the tag dialog for the selected clusters from the directory,
// applies the operator choices and returns the resulting plan.
func (s *TagService) PlanBulk(ctx context.Context, req TagPlanRequest) (*TagPlan, error) {
	clusterIDs := dedupeSorted(req.ClusterIDs)
	if len(clusterIDs) == 0 {
		return nil, apperrors.BadRequest(apperrors.CodeTagPlanInvalid, "at least one cluster must be selected")
	}

	tags, err := s.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	universe := make([]string, 0, len(tags))
	for _, t := range tags {
		universe = append(universe, t.ID)
	}

	current := make([]tagplan.ClusterTags, 0, len(clusterIDs))
	for _, id := range clusterIDs {
		c, err := lookupCluster(ctx, s.directory, id)
		if err != nil {
			return nil, err
		}
		current = append(current, tagplan.ClusterTags{ID: c.ID, Current: domain.NewTagSet(c.TagIDs...)})
	}

	dialog := tagplan.NewDialog(universe, current)
	if err := dialog.Apply(req.Checked); err != nil {
		var unknown *tagplan.UnknownTagsError
		if errors.As(err, &unknown) {
			return nil, apperrors.BadRequest(apperrors.CodeTagNotFound, "unknown tag").
				WithParams(map[string]interface{}{"tag_ids": strings.Join(unknown.IDs, ",")})
		}
		return nil, apperrors.Wrap(err, apperrors.CodeTagPlanInvalid, "invalid tag selection", http.StatusBadRequest)
	}

	return &TagPlan{
		ClusterIDs: clusterIDs,
		States:     dialog.States(),
		Plan:       dialog.Plan(),
	}, nil
}

// PlanAndApply plans the dialog and submits the plan.
func (s *TagService) PlanAndApply(ctx context.Context, req TagPlanRequest) (*TagApplyResult, error) {
	plan, err := s.PlanBulk(ctx, req)
	if err != nil {
		return nil, err
	}
	batches := s.Apply(ctx, plan.Plan, req.Actor)
	return &TagApplyResult{TagPlan: *plan, Batches: batches}, nil
}

// Apply submits every operation of plan concurrently and returns one result per
// operation, assigns first. Cluster state is never updated locally: observers are
// told which clusters changed and re-read the directory.
func (s *TagService) Apply(ctx context.Context, plan domain.TagOperationPlan, actor string) []BatchResult {
	results := make([]BatchResult, 0, len(plan.Assign)+len(plan.Remove))
	for _, op := range plan.Assign {
		results = append(results, BatchResult{Action: ActionAssign, Key: op.Key, ClusterIDs: op.ClusterIDs, TagIDs: op.TagIDs})
	}
	for _, op := range plan.Remove {
		results = append(results, BatchResult{Action: ActionRemove, Key: op.Key, ClusterIDs: op.ClusterIDs, TagIDs: op.TagIDs})
	}
	if len(results) == 0 {
		return results
	}

	var (
		mu  sync.Mutex
		ran = make([]bool, len(results))
	)
	tasks := make([]worker.Task, len(results))
	for i := range results {
		tasks[i] = func(ctx context.Context) {
			b := results[i]
			var err error
			if b.Action == ActionAssign {
				err = s.mutator.AssignTags(ctx, b.ClusterIDs, b.TagIDs)
			} else {
				err = s.mutator.RemoveTags(ctx, b.ClusterIDs, b.TagIDs)
			}
			mu.Lock()
			defer mu.Unlock()
			ran[i] = true
			if err != nil {
				results[i].Error = err.Error()
			}
		}
	}
	runErr := s.pool.RunAll(ctx, tasks...)

	failed := 0
	for i := range results {
		if !ran[i] {
			reason := errors.New("batch was not submitted")
			if runErr != nil {
				reason = runErr
			}
			results[i].Error = reason.Error()
		}
		result := metrics.ResultSuccess
		if results[i].Failed() {
			failed++
			result = metrics.ResultFailure
			logger.FromContext(ctx, s.log).Warn("Tag batch failed",
				zap.String("action", results[i].Action),
				zap.String("tags", results[i].Key),
				zap.Strings("clusters", results[i].ClusterIDs),
				zap.String("error", results[i].Error),
			)
		}
		metrics.TagBatchesTotal.WithLabelValues(results[i].Action, result).Inc()
	}

	logger.FromContext(ctx, s.log).Info("Tag plan applied",
		zap.Int("batches", len(results)),
		zap.Int("failed", failed),
	)
	s.notify(ctx, actor, results, failed)
	return results
}

func (s *TagService) notify(ctx context.Context, actor string, results []BatchResult, failed int) {
	touched := map[string]struct{}{}
	for _, b := range results {
		for _, id := range b.ClusterIDs {
			touched[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	payload, err := domain.ClusterTagsChangedPayload{ClusterIDs: ids, Failed: failed}.ToJSON()
	if err != nil {
		logger.FromContext(ctx, s.log).Error("Encode tag event payload", zap.Error(err))
		return
	}
	event := &domain.DomainEvent{
		EventID:       uuid.NewString(),
		EventType:     domain.EventClusterTagsChanged,
		AggregateType: "cluster",
		AggregateID:   strings.Join(ids, ","),
		Payload:       payload,
		CreatedBy:     actor,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		logger.FromContext(ctx, s.log).Warn("Tag observers failed", zap.Error(err))
	}
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
