package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/provider"
)

// DirectoryFile is the YAML layout read by FileDirectory.
//
//	tags:
//	  - {id: prod, name: Production, color: "#d33"}
//	clusters:
//	  - id: eu-1
//	    name: EU primary
//	    base_url: https://sso.eu.example.com
//	    realm: customers
//	    group: customers
//	    tags: [prod]
type DirectoryFile struct {
	Tags     []FileTag     `yaml:"tags"`
	Clusters []FileCluster `yaml:"clusters"`
}

// FileTag is one tag entry.
type FileTag struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// FileCluster is one cluster entry.
type FileCluster struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	BaseURL string   `yaml:"base_url"`
	Realm   string   `yaml:"realm"`
	Group   string   `yaml:"group"`
	Tags    []string `yaml:"tags"`
}

// FileDirectory is an in-memory directory loaded from YAML. Tag mutations
// change memory only; the file is never rewritten.
type FileDirectory struct {
	mu       sync.RWMutex
	clusters map[string]*domain.Cluster
	tags     map[string]domain.Tag
	tagsOf   map[string]domain.TagSet
}

var (
	_ provider.ClusterDirectory = (*FileDirectory)(nil)
	_ provider.TagMutator       = (*FileDirectory)(nil)
)

// LoadFileDirectory reads a directory file from disk.
func LoadFileDirectory(path string) (*FileDirectory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open directory file: %w", err)
	}
	defer f.Close()
	return ParseFileDirectory(f)
}

// ParseFileDirectory decodes a directory and validates its references.
func ParseFileDirectory(r io.Reader) (*FileDirectory, error) {
	var file DirectoryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode directory file: %w", err)
	}
	return NewFileDirectory(file)
}

// NewFileDirectory builds a directory from already decoded content.
func NewFileDirectory(file DirectoryFile) (*FileDirectory, error) {
	d := &FileDirectory{
		clusters: make(map[string]*domain.Cluster, len(file.Clusters)),
		tags:     make(map[string]domain.Tag, len(file.Tags)),
		tagsOf:   make(map[string]domain.TagSet, len(file.Clusters)),
	}
	for _, t := range file.Tags {
		if t.ID == "" {
			return nil, fmt.Errorf("tag %q has no id", t.Name)
		}
		if _, dup := d.tags[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tag id %q", t.ID)
		}
		name := t.Name
		if name == "" {
			name = t.ID
		}
		d.tags[t.ID] = domain.Tag{ID: t.ID, Name: name, Color: t.Color}
	}
	for _, c := range file.Clusters {
		if c.ID == "" || c.BaseURL == "" || c.Realm == "" {
			return nil, fmt.Errorf("cluster %q: id, base_url and realm are required", c.Name)
		}
		if _, dup := d.clusters[c.ID]; dup {
			return nil, fmt.Errorf("duplicate cluster id %q", c.ID)
		}
		for _, tagID := range c.Tags {
			if _, ok := d.tags[tagID]; !ok {
				return nil, fmt.Errorf("cluster %q references unknown tag %q", c.ID, tagID)
			}
		}
		name := c.Name
		if name == "" {
			name = c.ID
		}
		d.clusters[c.ID] = &domain.Cluster{
			ID:         c.ID,
			Name:       name,
			BaseURL:    c.BaseURL,
			Realm:      c.Realm,
			GroupLabel: c.Group,
		}
		d.tagsOf[c.ID] = domain.NewTagSet(c.Tags...)
	}
	return d, nil
}

func (d *FileDirectory) snapshot(c *domain.Cluster) domain.Cluster {
	out := *c
	out.TagIDs = d.tagsOf[c.ID].Sorted()
	return out
}

// ListClusters returns every cluster ordered by name, then ID.
func (d *FileDirectory) ListClusters(_ context.Context) ([]domain.Cluster, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Cluster, 0, len(d.clusters))
	for _, c := range d.clusters {
		out = append(out, d.snapshot(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetCluster returns one cluster or provider.ErrClusterNotFound.
func (d *FileDirectory) GetCluster(_ context.Context, id string) (*domain.Cluster, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.clusters[id]
	if !ok {
		return nil, fmt.Errorf("cluster %s: %w", id, provider.ErrClusterNotFound)
	}
	out := d.snapshot(c)
	return &out, nil
}

// ListTags returns the tag universe ordered by name, then ID.
func (d *FileDirectory) ListTags(_ context.Context) ([]domain.Tag, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Tag, 0, len(d.tags))
	for _, t := range d.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// checkRefs must be called with the lock held.
func (d *FileDirectory) checkRefs(clusterIDs, tagIDs []string) error {
	for _, id := range clusterIDs {
		if _, ok := d.clusters[id]; !ok {
			return fmt.Errorf("cluster %s: %w", id, ErrUnknownReference)
		}
	}
	for _, id := range tagIDs {
		if _, ok := d.tags[id]; !ok {
			return fmt.Errorf("tag %s: %w", id, ErrUnknownReference)
		}
	}
	return nil
}

// AssignTags attaches every tag to every cluster. All-or-nothing.
func (d *FileDirectory) AssignTags(_ context.Context, clusterIDs, tagIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkRefs(clusterIDs, tagIDs); err != nil {
		return fmt.Errorf("assign tags: %w", err)
	}
	for _, c := range clusterIDs {
		for _, t := range tagIDs {
			d.tagsOf[c][t] = struct{}{}
		}
	}
	return nil
}

// RemoveTags detaches every tag from every cluster. All-or-nothing.
func (d *FileDirectory) RemoveTags(_ context.Context, clusterIDs, tagIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkRefs(clusterIDs, tagIDs); err != nil {
		return fmt.Errorf("remove tags: %w", err)
	}
	for _, c := range clusterIDs {
		for _, t := range tagIDs {
			delete(d.tagsOf[c], t)
		}
	}
	return nil
}
