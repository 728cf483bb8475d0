// Package modules groups the composition root into units that each own one
// slice of the HTTP surface: the directory (clusters, topology, tags) and
// reconciliation (comparisons, sync).
//
// Import Path: kc-steward.io/steward/internal/app/modules
package modules

import (
	"context"
	"errors"
	"fmt"

	"kc-steward.io/steward/internal/api/handlers"
)

// Module is a unit of wiring. Modules share one Infrastructure and never
// reach into each other.
type Module interface {
	Name() string

	// ContributeServerDeps fills the handler dependencies this module serves.
	ContributeServerDeps(*handlers.ServerDeps)

	// Shutdown releases module-owned resources. Shared infrastructure is
	// closed separately, after every module.
	Shutdown(context.Context) error
}

// ShutdownAll shuts modules down in reverse registration order and joins
// their errors. A nil entry is skipped.
func ShutdownAll(ctx context.Context, mods []Module) error {
	var errs []error
	for i := len(mods) - 1; i >= 0; i-- {
		mod := mods[i]
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", mod.Name(), err))
		}
	}
	return errors.Join(errs...)
}
