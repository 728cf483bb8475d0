package topology

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kc-steward.io/steward/internal/domain"
)

func cluster(id, baseURL, group string) domain.Cluster {
	return domain.Cluster{ID: id, Name: id, BaseURL: baseURL, Realm: "realm-" + id, GroupLabel: group}
}

func ids(clusters []domain.Cluster) []string {
	out := make([]string, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, c.ID)
	}
	sort.Strings(out)
	return out
}

func TestInstanceKeyOf(t *testing.T) {
	tests := []struct {
		in   string
		want InstanceKey
	}{
		{"https://sso.example.com", "sso.example.com:443"},
		{"https://sso.example.com/", "sso.example.com:443"},
		{"https://SSO.Example.com:443/auth", "sso.example.com:443"},
		{"http://sso.example.com", "sso.example.com:80"},
		{"http://sso.example.com:8080", "sso.example.com:8080"},
		{"sso.example.com", "sso.example.com:443"},
		{"sso.example.com:8443", "sso.example.com:8443"},
		{"https://[::1]:8443", "[::1]:8443"},
		{"  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, InstanceKeyOf(tt.in))
		})
	}
}

func TestBuild_SameInstanceDifferentURLForms(t *testing.T) {
	topo := Build([]domain.Cluster{
		cluster("a", "https://sso.example.com", ""),
		cluster("b", "https://sso.example.com:443/", "prod"),
	})

	require.Len(t, topo.Instances, 1)
	inst := topo.Instances["sso.example.com:443"]
	require.NotNil(t, inst)
	assert.Equal(t, []string{"a"}, ids(inst.Ungrouped))
	assert.Equal(t, []string{"b"}, ids(inst.Groups["prod"]))
	assert.Empty(t, topo.Ungrouped)
	assert.Empty(t, topo.StandaloneGroups)
}

func TestBuild_GroupLabelsAreTrimmed(t *testing.T) {
	topo := Build([]domain.Cluster{
		cluster("a", "https://one", " prod "),
		cluster("b", "https://one", "prod"),
		cluster("c", "https://one", "   "),
	})

	inst := topo.Instances["one:443"]
	require.NotNil(t, inst)
	assert.Equal(t, []string{"a", "b"}, ids(inst.Groups["prod"]))
	assert.Equal(t, []string{"c"}, ids(inst.Ungrouped))
}

func TestBuild_StandaloneGroupDemotion(t *testing.T) {
	topo := Build([]domain.Cluster{
		cluster("p1", "https://one", "prod"),
		cluster("p2", "https://two", "prod"),
		cluster("pb", "https://three", "prod-backup"),
	})

	assert.Empty(t, topo.Instances)
	require.Len(t, topo.StandaloneGroups, 1)
	assert.Equal(t, []string{"p1", "p2"}, ids(topo.StandaloneGroups["prod"]))
	assert.Equal(t, []string{"pb"}, ids(topo.Ungrouped))
}

func TestBuild_SingleUnlabelledInstanceGoesToTopLevel(t *testing.T) {
	topo := Build([]domain.Cluster{cluster("solo", "https://solo", "")})

	assert.Empty(t, topo.Instances)
	assert.Empty(t, topo.StandaloneGroups)
	assert.Equal(t, []string{"solo"}, ids(topo.Ungrouped))
}

func TestBuild_BlankEndpointsAreSeparateInstances(t *testing.T) {
	topo := Build([]domain.Cluster{
		cluster("x", "", ""),
		cluster("y", "   ", ""),
		cluster("s1", "", "staging"),
		cluster("s2", "", "staging"),
	})

	assert.Empty(t, topo.Instances)
	assert.Equal(t, []string{"x", "y"}, ids(topo.Ungrouped))
	assert.Equal(t, []string{"s1", "s2"}, ids(topo.StandaloneGroups["staging"]))
	assert.Equal(t, 4, topo.Count())
}

func TestBuild_MultiClusterInstanceLabelsDoNotFormStandaloneGroups(t *testing.T) {
	topo := Build([]domain.Cluster{
		cluster("a1", "https://one", "prod"),
		cluster("a2", "https://one", ""),
		cluster("b1", "https://two", "prod"),
	})

	assert.Equal(t, []string{"a1"}, ids(topo.Instances["one:443"].Groups["prod"]))
	assert.Empty(t, topo.StandaloneGroups, "only single-cluster instances are standalone candidates")
	assert.Equal(t, []string{"b1"}, ids(topo.Ungrouped))
}

func TestBuild_EveryClusterPlacedOnce(t *testing.T) {
	input := []domain.Cluster{
		cluster("a1", "https://one", "prod"),
		cluster("a2", "https://one", "prod"),
		cluster("a3", "https://one", ""),
		cluster("b1", "https://two", "edge"),
		cluster("c1", "http://three", "edge"),
		cluster("d1", "https://four", "lonely"),
		cluster("e1", "https://five", ""),
	}

	topo := Build(input)
	assert.Equal(t, len(input), topo.Count())

	seen := map[string]int{}
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			for _, c := range n.Clusters {
				seen[c.ID]++
			}
			walk(n.Children)
		}
	}
	walk(topo.Nodes())
	require.Len(t, seen, len(input))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

// partition reduces a topology to order-independent sets of cluster IDs.
func partition(t *Topology) map[string][]string {
	out := map[string][]string{"ungrouped": ids(t.Ungrouped)}
	for key, inst := range t.Instances {
		out["instance:"+string(key)+":ungrouped"] = ids(inst.Ungrouped)
		for label, members := range inst.Groups {
			out["instance:"+string(key)+":group:"+label] = ids(members)
		}
	}
	for label, members := range t.StandaloneGroups {
		out["standalone:"+label] = ids(members)
	}
	return out
}

func TestBuild_IndependentOfInputOrder(t *testing.T) {
	input := []domain.Cluster{
		cluster("a1", "https://one", "prod"),
		cluster("a2", "https://one:443", "dev"),
		cluster("a3", "https://one", ""),
		cluster("b1", "https://two", "edge"),
		cluster("c1", "http://three", "edge"),
		cluster("d1", "https://four", "lonely"),
		cluster("e1", "https://five", ""),
	}
	want := partition(Build(input))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := append([]domain.Cluster(nil), input...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, partition(Build(shuffled)))
	}
}

func TestTopology_NodesDisplayOrder(t *testing.T) {
	topo := Build([]domain.Cluster{
		cluster("z", "https://b-host", ""),
		cluster("y", "https://b-host", "beta"),
		cluster("x", "https://b-host", "alpha"),
		cluster("s1", "https://s1", "shared"),
		cluster("s2", "https://s2", "shared"),
		cluster("u", "https://u", ""),
	})

	nodes := topo.Nodes()
	require.Len(t, nodes, 3)

	assert.Equal(t, NodeInstance, nodes[0].Kind)
	assert.Equal(t, "b-host:443", nodes[0].Key)
	require.Len(t, nodes[0].Children, 3)
	assert.Equal(t, "alpha", nodes[0].Children[0].Key)
	assert.Equal(t, "beta", nodes[0].Children[1].Key)
	assert.Equal(t, UngroupedKey, nodes[0].Children[2].Key)
	assert.Equal(t, NodeLeaf, nodes[0].Children[2].Kind)

	assert.Equal(t, NodeGroup, nodes[1].Kind)
	assert.Equal(t, "shared", nodes[1].Key)
	assert.Equal(t, []string{"s1", "s2"}, ids(nodes[1].Children[0].Clusters))

	assert.Equal(t, NodeLeaf, nodes[2].Kind)
	assert.Equal(t, []string{"u"}, ids(nodes[2].Clusters))
}
