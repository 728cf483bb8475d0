package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kc-steward.io/steward/internal/provider"
)

const sampleDirectory = `
tags:
  - {id: prod, name: Production, color: "#d33"}
  - {id: eu, name: Europe}
clusters:
  - id: eu-1
    name: EU primary
    base_url: https://sso.eu.example.com
    realm: customers
    group: customers
    tags: [prod, eu]
  - id: eu-2
    base_url: https://sso.eu.example.com
    realm: staff
`

func TestParseFileDirectory(t *testing.T) {
	d, err := ParseFileDirectory(strings.NewReader(sampleDirectory))
	require.NoError(t, err)

	clusters, err := d.ListClusters(context.Background())
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	assert.Equal(t, "EU primary", clusters[0].Name)
	assert.Equal(t, []string{"eu", "prod"}, clusters[0].TagIDs)
	assert.Equal(t, "customers", clusters[0].GroupLabel)
	assert.Equal(t, "eu-2", clusters[1].Name, "name defaults to id")
	assert.Empty(t, clusters[1].TagIDs)

	tags, err := d.ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "Europe", tags[0].Name)
}

func TestParseFileDirectory_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown field", "clusterz: []", "field clusterz not found"},
		{"missing realm", "clusters:\n  - {id: a, base_url: https://x}", "realm"},
		{"duplicate cluster", "clusters:\n  - {id: a, base_url: https://x, realm: r}\n  - {id: a, base_url: https://y, realm: r}", "duplicate cluster"},
		{"unknown tag", "clusters:\n  - {id: a, base_url: https://x, realm: r, tags: [nope]}", "unknown tag"},
		{"duplicate tag", "tags:\n  - {id: t}\n  - {id: t}", "duplicate tag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFileDirectory(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseFileDirectory_Empty(t *testing.T) {
	d, err := ParseFileDirectory(strings.NewReader(""))
	require.NoError(t, err)
	clusters, err := d.ListClusters(context.Background())
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestLoadFileDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDirectory), 0o600))

	d, err := LoadFileDirectory(path)
	require.NoError(t, err)
	c, err := d.GetCluster(context.Background(), "eu-1")
	require.NoError(t, err)
	assert.Equal(t, "https://sso.eu.example.com", c.BaseURL)

	_, err = LoadFileDirectory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFileDirectory_GetClusterNotFound(t *testing.T) {
	d, err := ParseFileDirectory(strings.NewReader(sampleDirectory))
	require.NoError(t, err)

	_, err = d.GetCluster(context.Background(), "nope")
	assert.ErrorIs(t, err, provider.ErrClusterNotFound)
}

func TestFileDirectory_TagMutations(t *testing.T) {
	ctx := context.Background()
	d, err := ParseFileDirectory(strings.NewReader(sampleDirectory))
	require.NoError(t, err)

	require.NoError(t, d.AssignTags(ctx, []string{"eu-1", "eu-2"}, []string{"prod"}))
	c, _ := d.GetCluster(ctx, "eu-2")
	assert.Equal(t, []string{"prod"}, c.TagIDs)

	require.NoError(t, d.RemoveTags(ctx, []string{"eu-1"}, []string{"prod", "eu"}))
	c, _ = d.GetCluster(ctx, "eu-1")
	assert.Empty(t, c.TagIDs)

	err = d.AssignTags(ctx, []string{"eu-1", "ghost"}, []string{"eu"})
	assert.ErrorIs(t, err, ErrUnknownReference)
	c, _ = d.GetCluster(ctx, "eu-1")
	assert.Empty(t, c.TagIDs, "rejected batch must not partially apply")
}

func TestFileDirectory_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	d, err := ParseFileDirectory(strings.NewReader(sampleDirectory))
	require.NoError(t, err)

	before, _ := d.GetCluster(ctx, "eu-1")
	require.NoError(t, d.RemoveTags(ctx, []string{"eu-1"}, []string{"eu"}))
	assert.Equal(t, []string{"eu", "prod"}, before.TagIDs, "fetched state is never patched")
}
