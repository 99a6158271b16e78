package inventory

import (
	"fmt"
	"testing"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/pkg/clusterconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"
)

const testCluster = `
topology:
  - name: router
    roles: [router]
  - name: storage
    replication_factor: 2
    weight: 10
    roles: [vshard-storage]
    config: {all_rw: true, vshard_group: hot}
hosts:
  - name: dc-1
    hosts:
      - name: server-1
        config: {address: 10.0.1.1}
      - name: server-2
        config: {address: 10.0.1.2, ansible_host: 192.168.0.2}
failover:
  mode: stateful
  state_provider: stateboard
  stateboard_params: {uri: "10.0.1.2:4401", password: secret}
vars:
  cartridge_app_name: app
`

func placedTree(t *testing.T, doc string) (*hosttree.Host, *clusterconfig.Cluster) {
	cluster, err := clusterconfig.Parse([]byte(doc))
	require.NoError(t, err)

	root, err := cluster.Build()
	require.NoError(t, err)
	require.NoError(t, root.Spread())
	return root, cluster
}

func TestBuild(t *testing.T) {
	root, cluster := placedTree(t, testCluster)
	root.Find("server-1").Instances[0].Config.Zone = ptr.To("dc-1")

	inv, err := Build(root, Options{Failover: cluster.Failover, Vars: cluster.Vars})
	require.NoError(t, err)

	all := inv.All
	assert.Equal(t, "app", all.Vars["cartridge_app_name"])
	assert.Same(t, cluster.Failover, all.Vars["cartridge_failover_params"])
	require.Len(t, all.Hosts, 4)

	router := all.Hosts["router-1"]
	assert.Equal(t, "dc-1", router["zone"])
	assert.Equal(t, map[string]any{
		"advertise_uri": "10.0.1.1:3031",
		"http_port":     uint16(8081),
	}, router["config"])

	storage := all.Hosts["storage-1-1"]
	assert.Equal(t, "10.0.1.2:3031", storage["config"].(map[string]any)["advertise_uri"])
	assert.Equal(t, "10.0.1.1:3032", all.Hosts["storage-1-2"]["config"].(map[string]any)["advertise_uri"])

	stateboard := all.Hosts["stateboard"]
	assert.Equal(t, true, stateboard["stateboard"])
	assert.Equal(t, map[string]any{"listen": "0.0.0.0:4401", "password": "secret"}, stateboard["config"])

	rs := all.Children["replicaset_storage_1"]
	require.NotNil(t, rs)
	assert.Equal(t, "storage-1", rs.Vars["replicaset_alias"])
	assert.Equal(t, []string{"storage-1-1", "storage-1-2"}, rs.Vars["failover_priority"])
	assert.Equal(t, []string{"vshard-storage"}, rs.Vars["roles"])
	assert.Equal(t, uint(10), rs.Vars["weight"])
	assert.Equal(t, true, rs.Vars["all_rw"])
	assert.Equal(t, "hot", rs.Vars["vshard_group"])
	assert.Len(t, rs.Hosts, 2)

	assert.Contains(t, all.Children, "replicaset_router_1")
	assert.NotContains(t, all.Children, "replicaset_stateboard")

	server2 := all.Children["host_server_2"]
	require.NotNil(t, server2)
	assert.Equal(t, "192.168.0.2", server2.Vars["ansible_host"])
	assert.Contains(t, server2.Hosts, "stateboard")
	assert.Contains(t, server2.Hosts, "storage-1-1")
	assert.Equal(t, "10.0.1.1", all.Children["host_server_1"].Vars["ansible_host"])
}

func TestMarshal(t *testing.T) {
	root, cluster := placedTree(t, testCluster)

	inv, err := Build(root, Options{Failover: cluster.Failover, Vars: cluster.Vars})
	require.NoError(t, err)

	data, err := inv.Marshal()
	require.NoError(t, err)
	require.Contains(t, string(data), "10.0.1.1:3031")
	require.Contains(t, string(data), "state_provider: stateboard")

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	all := parsed["all"].(map[string]any)
	require.Contains(t, all, "hosts")
	require.Contains(t, all, "children")
	require.Contains(t, all, "vars")
}

func TestBuildExpelled(t *testing.T) {
	const doc = `
topology:
  - name: router
    replicasets_count: %d
hosts:
  - name: dc-1
    hosts:
      - name: server-1
        config: {address: 10.0.1.1}
      - name: server-2
        config: {address: 10.0.1.2}
`
	old, _ := placedTree(t, fmt.Sprintf(doc, 2))

	cluster, err := clusterconfig.Parse([]byte(fmt.Sprintf(doc, 1)))
	require.NoError(t, err)
	next, err := cluster.Build()
	require.NoError(t, err)

	_, err = hosttree.Merge(old, next, false)
	require.NoError(t, err)

	inv, err := Build(old, Options{})
	require.NoError(t, err)

	expelled := inv.All.Hosts["router-2"]
	require.Equal(t, true, expelled["expelled"])
	require.Equal(t, "10.0.1.2:3031", expelled["config"].(map[string]any)["advertise_uri"])
	require.Contains(t, inv.All.Children["host_server_2"].Hosts, "router-2")
	require.NotContains(t, inv.All.Children, "replicaset_router_2")
	require.Nil(t, inv.All.Vars)

	require.NotContains(t, inv.All.Hosts["router-1"], "expelled")
}

func TestBuildRequiresSpreadTree(t *testing.T) {
	cluster, err := clusterconfig.Parse([]byte("topology: [{name: a}]\nhosts: [{name: s}]\n"))
	require.NoError(t, err)

	// the root is also the only leaf, so the queued instance looks placed
	root, err := cluster.Build()
	require.NoError(t, err)

	_, err = Build(root, Options{})
	require.ErrorContains(t, err, "has no ports")
}

func TestAdvertiseFallback(t *testing.T) {
	root, _ := placedTree(t, `
topology:
  - name: router
    replicasets_count: 3
hosts:
  - name: dc-1
    hosts:
      - name: server-1
        config: {address: 0.0.0.0, ansible_host: 192.168.0.1}
      - name: server-2
        config: {address: "::"}
      - name: server-3
`)

	inv, err := Build(root, Options{})
	require.NoError(t, err)

	uris := map[string]bool{}
	for _, vars := range inv.All.Hosts {
		uris[vars["config"].(map[string]any)["advertise_uri"].(string)] = true
	}
	require.Equal(t, map[string]bool{
		"192.168.0.1:3031": true,
		"server-2:3031":    true,
		"server-3:3031":    true,
	}, uris)
}

func TestFailoverPriorityFollowsReplicaIndex(t *testing.T) {
	root, _ := placedTree(t, `
topology:
  - name: x
    replication_factor: 11
hosts:
  - name: server-1
    config: {address: 10.0.1.1}
`)

	inv, err := Build(root, Options{})
	require.NoError(t, err)

	rs := inv.All.Children["replicaset_x_1"]
	require.NotNil(t, rs)

	want := make([]string, 0, 11)
	for idx := 1; idx <= 11; idx++ {
		want = append(want, fmt.Sprintf("x-1-%d", idx))
	}
	require.Equal(t, want, rs.Vars["failover_priority"])
}
