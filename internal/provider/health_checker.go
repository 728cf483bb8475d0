package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/pkg/metrics"
	"kc-steward.io/steward/internal/pkg/worker"
)

// ClusterStatus represents cluster health status.
type ClusterStatus string

const (
	ClusterStatusUnknown     ClusterStatus = "UNKNOWN"
	ClusterStatusHealthy     ClusterStatus = "HEALTHY"
	ClusterStatusUnreachable ClusterStatus = "UNREACHABLE"
)

// ClusterHealth contains health check results.
type ClusterHealth struct {
	ClusterID   string        `json:"cluster_id"`
	ClusterName string        `json:"cluster_name"`
	Status      ClusterStatus `json:"status"`
	LastChecked time.Time     `json:"last_checked"`
	Error       string        `json:"error,omitempty"`
}

// ClusterHealthChecker periodically pings the realm of every directory cluster.
type ClusterHealthChecker struct {
	pinger    RealmPinger
	directory ClusterDirectory
	interval  time.Duration
	pool      *worker.Pool
	results   map[string]*ClusterHealth
	mu        sync.RWMutex
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewClusterHealthChecker creates a new ClusterHealthChecker.
// A non-positive interval falls back to one minute.
func NewClusterHealthChecker(pinger RealmPinger, directory ClusterDirectory, interval time.Duration) *ClusterHealthChecker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ClusterHealthChecker{
		pinger:    pinger,
		directory: directory,
		interval:  interval,
		results:   make(map[string]*ClusterHealth),
		stopCh:    make(chan struct{}),
	}
}

// CheckCluster performs a single health check for a cluster.
func (c *ClusterHealthChecker) CheckCluster(ctx context.Context, cluster domain.Cluster) *ClusterHealth {
	health := &ClusterHealth{
		ClusterID:   cluster.ID,
		ClusterName: cluster.Name,
		LastChecked: time.Now(),
		Status:      ClusterStatusHealthy,
	}
	if err := c.pinger.Ping(ctx, cluster); err != nil {
		health.Status = ClusterStatusUnreachable
		health.Error = fmt.Sprintf("realm ping failed: %v", err)
		logger.Warn("Cluster health check failed",
			zap.String("cluster_id", cluster.ID),
			zap.String("realm", cluster.Realm),
			zap.Error(err),
		)
	}
	return health
}

// GetHealth returns the cached health status for a cluster.
func (c *ClusterHealthChecker) GetHealth(clusterID string) *ClusterHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if h, ok := c.results[clusterID]; ok {
		return h
	}
	return &ClusterHealth{
		ClusterID: clusterID,
		Status:    ClusterStatusUnknown,
	}
}

// Snapshot returns every cached result ordered by cluster ID.
func (c *ClusterHealthChecker) Snapshot() []ClusterHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ClusterHealth, 0, len(c.results))
	for _, h := range c.results {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out
}

// UpdateHealth stores a health check result.
func (c *ClusterHealthChecker) UpdateHealth(health *ClusterHealth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[health.ClusterID] = health

	up := 0.0
	if health.Status == ClusterStatusHealthy {
		up = 1
	}
	metrics.ClusterUp.WithLabelValues(health.ClusterID).Set(up)
}

// UsePool makes CheckAll ping clusters concurrently on pool. Without a pool
// clusters are pinged one after another.
func (c *ClusterHealthChecker) UsePool(pool *worker.Pool) *ClusterHealthChecker {
	c.pool = pool
	return c
}

// Start begins periodic health checking. The cluster list is re-read every round.
// nolint:naked-goroutine // health checker ticker loop; doesn't fit worker pool pattern.
func (c *ClusterHealthChecker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.CheckAll(ctx)

		for {
			select {
			case <-ticker.C:
				c.CheckAll(ctx)
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts periodic health checking. Safe to call more than once.
func (c *ClusterHealthChecker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

// CheckAll runs one round over the current directory and drops results of
// clusters that left it.
func (c *ClusterHealthChecker) CheckAll(ctx context.Context) {
	clusters, err := c.directory.ListClusters(ctx)
	if err != nil {
		logger.Error("Health check: list clusters failed", zap.Error(err))
		return
	}
	seen := make(map[string]struct{}, len(clusters))
	tasks := make([]worker.Task, 0, len(clusters))
	for _, cl := range clusters {
		seen[cl.ID] = struct{}{}
		tasks = append(tasks, func(ctx context.Context) {
			c.UpdateHealth(c.CheckCluster(ctx, cl))
		})
	}
	if c.pool != nil {
		if err := c.pool.RunAll(ctx, tasks...); err != nil {
			logger.Warn("Health check round incomplete", zap.Error(err))
		}
	} else {
		for _, task := range tasks {
			task(ctx)
		}
	}

	c.mu.Lock()
	for id := range c.results {
		if _, ok := seen[id]; !ok {
			delete(c.results, id)
			metrics.ClusterUp.DeleteLabelValues(id)
		}
	}
	c.mu.Unlock()
}
