// Package worker provides goroutine pool management.
//
// Naked goroutines are forbidden in request paths. All concurrent I/O (realm
// fetches, per-user lookups, tag batches, health pings) goes through a Pool
// with context propagation.
//
// Import Path: kc-steward.io/steward/internal/pkg/worker
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"kc-steward.io/steward/internal/pkg/logger"
)

// ErrPoolClosed is returned for tasks offered to a released pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// ErrShuttingDown is reported for tasks that were still queued when
// Pools.Shutdown began.
var ErrShuttingDown = errors.New("worker pools shutting down")

const releaseTimeout = 30 * time.Second

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with batch submission.
type Pool struct {
	pool *ants.Pool
	name string
	// life is cancelled by Pools.Shutdown.
	life context.Context
}

// Pools is the worker pool collection.
type Pools struct {
	General *Pool
	// IdP runs calls against identity-provider instances.
	IdP *Pool

	cancel context.CancelFunc
}

// PoolConfig contains worker pool sizes.
type PoolConfig struct {
	GeneralPoolSize int
	IdPPoolSize     int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize: 50,
		IdPPoolSize:     32,
	}
}

func newAntsPool(size int, expiry time.Duration) (*ants.Pool, error) {
	return ants.NewPool(size,
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error("Worker panic recovered",
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
		}),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(expiry),
	)
}

// NewPools creates the pool collection. Cancelling ctx has the same effect on
// queued tasks as Shutdown.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	life, cancel := context.WithCancel(ctx)

	general, err := newAntsPool(cfg.GeneralPoolSize, 10*time.Second)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create general pool: %w", err)
	}
	// IdP workers idle between comparisons; keep them around longer.
	idp, err := newAntsPool(cfg.IdPPoolSize, 30*time.Second)
	if err != nil {
		general.Release()
		cancel()
		return nil, fmt.Errorf("create idp pool: %w", err)
	}

	return &Pools{
		General: &Pool{pool: general, name: "general", life: life},
		IdP:     &Pool{pool: idp, name: "idp", life: life},
		cancel:  cancel,
	}, nil
}

// Name returns the pool label used in logs and metrics.
func (p *Pool) Name() string { return p.name }

// skipReason reports why a queued task must not start.
func (p *Pool) skipReason(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.life != nil && p.life.Err() != nil {
		return ErrShuttingDown
	}
	return nil
}

// RunAll submits every task and blocks until each one has returned or been skipped.
// Tasks skipped because ctx was cancelled or the pools are shutting down, and
// tasks that could not be submitted, are reported through the returned error.
// A nil error means every task ran.
func (p *Pool) RunAll(ctx context.Context, tasks ...Task) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for i, task := range tasks {
		if err := p.skipReason(ctx); err != nil {
			record(fmt.Errorf("task %d not started: %w", i, err))
			continue
		}
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			// May have been cancelled while queued.
			if err := p.skipReason(ctx); err != nil {
				logger.Debug("Task skipped",
					zap.String("pool", p.name),
					zap.Int("task", i),
					zap.Error(err),
				)
				record(fmt.Errorf("task %d skipped: %w", i, err))
				return
			}
			task(ctx)
		})
		if err != nil {
			wg.Done()
			if errors.Is(err, ants.ErrPoolClosed) {
				err = ErrPoolClosed
			}
			record(fmt.Errorf("submit task %d to %s pool: %w", i, p.name, err))
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Shutdown makes queued tasks skip, then waits for running ones (max 30s per pool).
func (p *Pools) Shutdown() {
	p.cancel()

	for _, pool := range []*Pool{p.General, p.IdP} {
		if err := pool.pool.ReleaseTimeout(releaseTimeout); err != nil {
			logger.Warn("Worker pool shutdown timeout",
				zap.String("pool", pool.name),
				zap.Error(err),
			)
		}
	}
}
