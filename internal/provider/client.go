// Package provider holds the collaborator boundaries of the reconciliation core
// and their adapters (Keycloak Admin REST, in-memory mock).
//
// Anti-Corruption Layer: adapters return domain types, never wire representations.
//
// Import Path: kc-steward.io/steward/internal/provider
package provider

import (
	"context"
	"errors"

	"kc-steward.io/steward/internal/domain"
)

// ErrClusterNotFound is returned by a ClusterDirectory for an unknown cluster ID.
var ErrClusterNotFound = errors.New("cluster not found")

// ErrEntityNotFound is returned by an EntitySyncer when the source has no entity
// with the requested natural key.
var ErrEntityNotFound = errors.New("entity not found")

// EntitySource fetches the snapshot of one category of one cluster.
// A category that does not apply yields an empty list, not an error.
type EntitySource interface {
	FetchEntities(ctx context.Context, clusterID string, category domain.Category) ([]domain.Entity, error)
}

// EntitySyncer pushes one entity definition from a source realm to a destination realm.
type EntitySyncer interface {
	SyncEntity(ctx context.Context, sourceClusterID, destinationClusterID string, category domain.Category, key string) error
}

// RealmProvider is an identity-provider backend offering both fetch and sync.
type RealmProvider interface {
	EntitySource
	EntitySyncer
	Name() string
}

// TagMutator applies one batched tag operation. One plan operation maps to one call.
type TagMutator interface {
	AssignTags(ctx context.Context, clusterIDs, tagIDs []string) error
	RemoveTags(ctx context.Context, clusterIDs, tagIDs []string) error
}

// ClusterDirectory supplies the managed clusters and the tag universe.
type ClusterDirectory interface {
	ListClusters(ctx context.Context) ([]domain.Cluster, error)
	GetCluster(ctx context.Context, id string) (*domain.Cluster, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
}

// RealmPinger checks that a cluster's realm answers. Used by the health checker.
type RealmPinger interface {
	Ping(ctx context.Context, cluster domain.Cluster) error
}
