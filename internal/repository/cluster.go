package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/provider"
)

// ClusterRepository is the PostgreSQL cluster directory. It also applies
// batched tag mutations.
type ClusterRepository struct {
	db DBTX
}

var (
	_ provider.ClusterDirectory = (*ClusterRepository)(nil)
	_ provider.TagMutator       = (*ClusterRepository)(nil)
)

// NewClusterRepository creates a ClusterRepository.
func NewClusterRepository(db DBTX) *ClusterRepository {
	return &ClusterRepository{db: db}
}

const clusterSelect = `
	SELECT c.id, c.name, c.base_url, c.realm, c.group_label,
		COALESCE(array_agg(ct.tag_id ORDER BY ct.tag_id) FILTER (WHERE ct.tag_id IS NOT NULL), '{}')
	FROM clusters c
	LEFT JOIN cluster_tags ct ON ct.cluster_id = c.id`

func scanCluster(row pgx.Row) (domain.Cluster, error) {
	var c domain.Cluster
	err := row.Scan(&c.ID, &c.Name, &c.BaseURL, &c.Realm, &c.GroupLabel, &c.TagIDs)
	return c, err
}

// ListClusters returns every cluster with its current tags, ordered by name.
func (r *ClusterRepository) ListClusters(ctx context.Context) ([]domain.Cluster, error) {
	rows, err := r.db.Query(ctx, clusterSelect+` GROUP BY c.id ORDER BY c.name, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	defer rows.Close()

	var out []domain.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCluster returns one cluster or provider.ErrClusterNotFound.
func (r *ClusterRepository) GetCluster(ctx context.Context, id string) (*domain.Cluster, error) {
	c, err := scanCluster(r.db.QueryRow(ctx, clusterSelect+` WHERE c.id = $1 GROUP BY c.id`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cluster %s: %w", id, provider.ErrClusterNotFound)
		}
		return nil, fmt.Errorf("get cluster: %w", err)
	}
	return &c, nil
}

// ListTags returns the tag universe ordered by name.
func (r *ClusterRepository) ListTags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, color FROM tags ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpsertCluster creates or updates a cluster. Tag membership is left untouched.
func (r *ClusterRepository) UpsertCluster(ctx context.Context, c domain.Cluster) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO clusters (id, name, base_url, realm, group_label)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			base_url = EXCLUDED.base_url,
			realm = EXCLUDED.realm,
			group_label = EXCLUDED.group_label,
			updated_at = now()`,
		c.ID, c.Name, c.BaseURL, c.Realm, c.GroupLabel,
	)
	if err != nil {
		return fmt.Errorf("upsert cluster %s: %w", c.ID, err)
	}
	return nil
}

// UpsertTag creates or updates a tag. Tag names are unique.
func (r *ClusterRepository) UpsertTag(ctx context.Context, t domain.Tag) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tags (id, name, color)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, color = EXCLUDED.color`,
		t.ID, t.Name, t.Color,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("tag name %q: %w", t.Name, ErrConflict)
		}
		return fmt.Errorf("upsert tag %s: %w", t.ID, err)
	}
	return nil
}

// AssignTags attaches every tag to every cluster in one statement.
// Pairs already present are left as they are.
func (r *ClusterRepository) AssignTags(ctx context.Context, clusterIDs, tagIDs []string) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO cluster_tags (cluster_id, tag_id)
		SELECT c, t FROM unnest($1::text[]) AS c CROSS JOIN unnest($2::text[]) AS t
		ON CONFLICT DO NOTHING`,
		clusterIDs, tagIDs,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("assign tags: %w", ErrUnknownReference)
		}
		return fmt.Errorf("assign tags: %w", err)
	}
	logger.Debug("Tags assigned",
		zap.Strings("cluster_ids", clusterIDs),
		zap.Strings("tag_ids", tagIDs),
		zap.Int64("rows", tag.RowsAffected()),
	)
	return nil
}

// RemoveTags detaches every tag from every cluster in one statement.
func (r *ClusterRepository) RemoveTags(ctx context.Context, clusterIDs, tagIDs []string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM cluster_tags WHERE cluster_id = ANY($1) AND tag_id = ANY($2)`,
		clusterIDs, tagIDs,
	)
	if err != nil {
		return fmt.Errorf("remove tags: %w", err)
	}
	logger.Debug("Tags removed",
		zap.Strings("cluster_ids", clusterIDs),
		zap.Strings("tag_ids", tagIDs),
		zap.Int64("rows", tag.RowsAffected()),
	)
	return nil
}
