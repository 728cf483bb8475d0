// Package topology groups a flat cluster list into the navigation hierarchy
// instance → group → cluster.
//
// Import Path: kc-steward.io/steward/internal/topology
package topology

import (
	"net"
	"net/url"
	"sort"
	"strings"

	"kc-steward.io/steward/internal/domain"
)

// InstanceKey identifies an identity-provider deployment: "host:port".
type InstanceKey string

// InstanceNode holds the clusters of one instance that hosts at least two realms.
type InstanceNode struct {
	Groups    map[string][]domain.Cluster `json:"groups"`
	Ungrouped []domain.Cluster            `json:"ungrouped"`
}

// Topology is the partition produced by Build. Every input cluster lands in
// exactly one bucket.
type Topology struct {
	Instances        map[InstanceKey]*InstanceNode `json:"instances"`
	StandaloneGroups map[string][]domain.Cluster   `json:"standalone_groups"`
	Ungrouped        []domain.Cluster              `json:"ungrouped"`
}

// InstanceKeyOf derives the instance key of a base URL. Hosts are lowercased; a
// missing port defaults to 443 for https and 80 otherwise; a missing scheme is
// read as https.
func InstanceKeyOf(baseURL string) InstanceKey {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return InstanceKey(strings.TrimSpace(baseURL))
	}

	port := u.Port()
	if port == "" {
		if strings.EqualFold(u.Scheme, "https") {
			port = "443"
		} else {
			port = "80"
		}
	}
	return InstanceKey(net.JoinHostPort(strings.ToLower(u.Hostname()), port))
}

// Build partitions clusters by instance and group label.
//
// Instances hosting two or more clusters are split into named groups plus an
// instance-scoped ungrouped bucket. A single-cluster instance with a label is a
// standalone candidate; the candidate group is kept only when at least two
// single-cluster instances share the label, otherwise its sole member is demoted
// to the top-level ungrouped bucket. Member order follows input order; callers
// sort for display.
func Build(clusters []domain.Cluster) *Topology {
	t := &Topology{
		Instances:        make(map[InstanceKey]*InstanceNode),
		StandaloneGroups: make(map[string][]domain.Cluster),
		Ungrouped:        []domain.Cluster{},
	}

	byInstance := make(map[InstanceKey][]domain.Cluster)
	var order []InstanceKey
	for _, c := range clusters {
		key := instanceOf(c)
		if _, seen := byInstance[key]; !seen {
			order = append(order, key)
		}
		byInstance[key] = append(byInstance[key], c)
	}

	candidates := make(map[string][]domain.Cluster)
	var candidateOrder []string
	for _, key := range order {
		members := byInstance[key]
		if len(members) == 1 {
			c := members[0]
			label := normalizeLabel(c.GroupLabel)
			if label == "" {
				t.Ungrouped = append(t.Ungrouped, c)
				continue
			}
			if _, seen := candidates[label]; !seen {
				candidateOrder = append(candidateOrder, label)
			}
			candidates[label] = append(candidates[label], c)
			continue
		}

		node := &InstanceNode{
			Groups:    make(map[string][]domain.Cluster),
			Ungrouped: []domain.Cluster{},
		}
		for _, c := range members {
			label := normalizeLabel(c.GroupLabel)
			if label == "" {
				node.Ungrouped = append(node.Ungrouped, c)
				continue
			}
			node.Groups[label] = append(node.Groups[label], c)
		}
		t.Instances[key] = node
	}

	for _, label := range candidateOrder {
		members := candidates[label]
		if len(members) < 2 {
			t.Ungrouped = append(t.Ungrouped, members...)
			continue
		}
		t.StandaloneGroups[label] = members
	}

	return t
}

// instanceOf is InstanceKeyOf for a cluster. A cluster without an endpoint is
// its own instance so blank base URLs never share a node.
func instanceOf(c domain.Cluster) InstanceKey {
	if key := InstanceKeyOf(c.BaseURL); key != "" {
		return key
	}
	return InstanceKey("no-endpoint/" + c.ID)
}

func normalizeLabel(label string) string {
	return strings.TrimSpace(label)
}

// NodeKind is the tier of a tree node.
type NodeKind string

const (
	NodeInstance NodeKind = "instance"
	NodeGroup    NodeKind = "group"
	NodeLeaf     NodeKind = "leaf"
)

// Well-known keys for buckets without a label.
const (
	UngroupedKey = "ungrouped"
)

// Node is the display form of the hierarchy. Instance and group nodes carry
// Children; leaf buckets carry Clusters.
type Node struct {
	Kind     NodeKind         `json:"kind"`
	Key      string           `json:"key"`
	Children []Node           `json:"children,omitempty"`
	Clusters []domain.Cluster `json:"clusters,omitempty"`
}

// Nodes renders the topology as a tree in display order: instances, then
// standalone groups, then the top-level ungrouped bucket, each sorted by key with
// clusters sorted by name.
func (t *Topology) Nodes() []Node {
	var nodes []Node

	instanceKeys := make([]string, 0, len(t.Instances))
	for k := range t.Instances {
		instanceKeys = append(instanceKeys, string(k))
	}
	sort.Strings(instanceKeys)
	for _, k := range instanceKeys {
		inst := t.Instances[InstanceKey(k)]
		node := Node{Kind: NodeInstance, Key: k}
		for _, label := range sortedLabels(inst.Groups) {
			node.Children = append(node.Children, Node{
				Kind:     NodeGroup,
				Key:      label,
				Children: []Node{leaf(label, inst.Groups[label])},
			})
		}
		if len(inst.Ungrouped) > 0 {
			node.Children = append(node.Children, leaf(UngroupedKey, inst.Ungrouped))
		}
		nodes = append(nodes, node)
	}

	for _, label := range sortedLabels(t.StandaloneGroups) {
		nodes = append(nodes, Node{
			Kind:     NodeGroup,
			Key:      label,
			Children: []Node{leaf(label, t.StandaloneGroups[label])},
		})
	}

	if len(t.Ungrouped) > 0 {
		nodes = append(nodes, leaf(UngroupedKey, t.Ungrouped))
	}
	return nodes
}

// Count returns the number of clusters placed in the topology.
func (t *Topology) Count() int {
	n := len(t.Ungrouped)
	for _, inst := range t.Instances {
		n += len(inst.Ungrouped)
		for _, members := range inst.Groups {
			n += len(members)
		}
	}
	for _, members := range t.StandaloneGroups {
		n += len(members)
	}
	return n
}

func leaf(key string, clusters []domain.Cluster) Node {
	sorted := append([]domain.Cluster(nil), clusters...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})
	return Node{Kind: NodeLeaf, Key: key, Clusters: sorted}
}

func sortedLabels(m map[string][]domain.Cluster) []string {
	labels := make([]string, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
