package generator

import (
	"context"
	"fmt"
	"testing"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/pkg/clusterconfig"
	"github.com/couchbase/topogen/pkg/metrics"
	"github.com/couchbase/topogen/pkg/statestore"
	"github.com/stretchr/testify/suite"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
	"k8s.io/utils/ptr"
)

const clusterTemplate = `
topology:
  - name: router
    replicasets_count: %d
    roles: [router]
  - name: storage
    replicasets_count: 2
    replication_factor: 2
    failure_domains: [dc-1, dc-2]
    roles: [vshard-storage]
hosts:
  - name: dc-1
    config: {binary_port: 3301, http_port: 8091}
    hosts:
      - name: server-1
        config: {address: 10.0.1.1}
      - name: server-2
        config: {address: 10.0.1.2}
  - name: dc-2
    hosts:
      %s
failover: {mode: eventual}
vars: {cartridge_app_name: app}
`

const dc2Servers = `- name: server-3
        config: {address: 10.0.2.3}`

type GeneratorTestSuite struct {
	suite.Suite

	store  *statestore.Store
	reader *sdkmetric.ManualReader
	gen    *Generator
}

func TestGenerator(t *testing.T) {
	suite.Run(t, new(GeneratorTestSuite))
}

func (s *GeneratorTestSuite) SetupTest() {
	store, err := statestore.New(statestore.Options{
		Logger: zaptest.NewLogger(s.T()),
		Dir:    s.T().TempDir(),
	})
	s.Require().NoError(err)
	s.store = store

	s.reader = sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(s.reader))

	s.gen = New(Options{
		Logger:  zaptest.NewLogger(s.T()),
		Store:   store,
		DCLevel: ptr.To(1),
		Metrics: metrics.NewTopogenMetrics(provider),
	})
}

func (s *GeneratorTestSuite) cluster(routers int, dc2 string) *clusterconfig.Cluster {
	cluster, err := clusterconfig.Parse([]byte(fmt.Sprintf(clusterTemplate, routers, dc2)))
	s.Require().NoError(err)
	return cluster
}

func (s *GeneratorTestSuite) counters() map[string]int64 {
	var rm metricdata.ResourceMetrics
	s.Require().NoError(s.reader.Collect(context.Background(), &rm))

	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					totals[m.Name] += dp.Value
				}
			}
		}
	}
	return totals
}

func (s *GeneratorTestSuite) instance(root *hosttree.Host, label string) (*hosttree.Host, int) {
	for _, leaf := range root.Leaves() {
		for idx, inst := range leaf.Instances {
			if inst.Name.String() == label {
				return leaf, idx
			}
		}
	}
	s.FailNow("instance not found", label)
	return nil, 0
}

func (s *GeneratorTestSuite) TestBuild() {
	result, err := s.gen.Build(context.Background(), s.cluster(1, dc2Servers))
	s.Require().NoError(err)

	s.Len(result.Hosts.AllInstances(), 5)
	s.Empty(result.Changes)
	s.Equal(statestore.FormatVersion, result.Snapshot.Version)

	leaf, idx := s.instance(result.Hosts, "storage-1-1")
	inst := leaf.Instances[idx]
	s.Equal("dc-2", *inst.Config.Zone)
	s.Equal("server-3", leaf.Name.String())

	leaf, idx = s.instance(result.Hosts, "storage-1-2")
	s.Equal("dc-1", *leaf.Instances[idx].Config.Zone)
	s.Equal(uint16(3301), *leaf.Instances[idx].Config.BinaryPort)
	s.Equal(uint16(8091), *leaf.Instances[idx].Config.HTTPPort)

	s.Equal(int64(5), s.counters()["topogen_instances_placed_total"])

	inv, err := result.Inventory()
	s.Require().NoError(err)
	s.Len(inv.All.Hosts, 5)
	s.Equal("app", inv.All.Vars["cartridge_app_name"])
}

func (s *GeneratorTestSuite) TestUpgradeKeepsPlacement() {
	first, err := s.gen.Build(context.Background(), s.cluster(1, dc2Servers))
	s.Require().NoError(err)
	s.Require().NoError(s.gen.Save(first))

	before := map[string]uint16{}
	for _, inst := range first.Hosts.AllInstances() {
		before[inst.Key()] = *inst.Config.BinaryPort
	}

	dc2 := dc2Servers + `
      - name: server-4
        config: {address: 10.0.2.4}`
	second, err := s.gen.UpgradeFrom(context.Background(), s.cluster(3, dc2), statestore.LatestRef)
	s.Require().NoError(err)

	s.Require().Len(second.Changes, 1)
	s.Equal("+ server-4", second.Changes[0].String())

	for _, inst := range second.Hosts.AllInstances() {
		if port, ok := before[inst.Key()]; ok {
			s.Equal(port, *inst.Config.BinaryPort, "port of %s moved", inst.Key())
		}
	}

	s.Len(second.Hosts.AllInstances(), 7)
	s.Contains(second.Hosts.AddQueue, "router-2")
	s.Contains(second.Hosts.AddQueue, "router-3")
	s.Len(second.Hosts.AddQueue, 2)
	s.Empty(second.Hosts.DeleteQueue)

	totals := s.counters()
	s.Equal(int64(7), totals["topogen_instances_placed_total"])
	s.Equal(int64(1), totals["topogen_hosts_changed_total"])
}

func (s *GeneratorTestSuite) TestUpgradeDoesNotTouchSnapshot() {
	first, err := s.gen.Build(context.Background(), s.cluster(2, dc2Servers))
	s.Require().NoError(err)

	_, err = s.gen.Upgrade(context.Background(), s.cluster(1, dc2Servers), first.Snapshot)
	s.Require().NoError(err)

	s.Len(first.Snapshot.Hosts.AllInstances(), 6)
	s.Len(first.Snapshot.Hosts.AddQueue, 6)
	s.Nil(first.Snapshot.Hosts.Find("server-4"))
}

func (s *GeneratorTestSuite) TestUpgradeRemovesInstances() {
	first, err := s.gen.Build(context.Background(), s.cluster(2, dc2Servers))
	s.Require().NoError(err)

	second, err := s.gen.Upgrade(context.Background(), s.cluster(1, dc2Servers), first.Snapshot)
	s.Require().NoError(err)

	s.Len(second.Hosts.AllInstances(), 5)
	s.Contains(second.Hosts.DeleteQueue, "router-2")

	inv, err := second.Inventory()
	s.Require().NoError(err)
	s.Equal(true, inv.All.Hosts["router-2"]["expelled"])
}

func (s *GeneratorTestSuite) TestUnknownFailureDomain() {
	cluster := s.cluster(1, dc2Servers)
	cluster.Topology[0].FailureDomains = []string{"dc-9"}

	_, err := s.gen.Build(context.Background(), cluster)
	s.Require().ErrorIs(err, hosttree.ErrUnknownFailureDomain)
	s.Equal(int64(1), s.counters()["topogen_spread_failures_total"])
}

func (s *GeneratorTestSuite) TestReverse() {
	result, err := s.gen.Build(context.Background(), s.cluster(2, dc2Servers))
	s.Require().NoError(err)
	s.Require().NoError(s.gen.Save(result))

	snap, err := s.gen.Load(result.Snapshot.ID.String())
	s.Require().NoError(err)

	cluster, err := s.gen.Reverse(snap)
	s.Require().NoError(err)

	s.Require().Len(cluster.Topology, 2)
	s.Equal("router", cluster.Topology[0].Name)
	s.Equal(uint(2), *cluster.Topology[0].ReplicasetsCount)
	s.Equal(uint(2), *cluster.Topology[1].ReplicationFactor)
	s.Equal([]string{"dc-1", "dc-2"}, cluster.Topology[1].FailureDomains)
	s.Nil(cluster.Topology[1].Config.Zone)
	s.Len(cluster.Hosts, 2)
	s.Equal(uint16(3301), *cluster.Hosts[0].Config.BinaryPort)
	s.Nil(cluster.Hosts[0].Hosts[0].Config.BinaryPort)

	rebuilt, err := s.gen.Build(context.Background(), cluster)
	s.Require().NoError(err)
	s.Len(rebuilt.Hosts.AllInstances(), 6)
}

func (s *GeneratorTestSuite) TestReverseKeepsDeclaredOrder() {
	cluster, err := clusterconfig.Parse([]byte(`
topology:
  - name: zeta
  - name: alpha
    replicasets_count: 2
hosts:
  - name: server-1
    config: {address: 10.0.1.1}
`))
	s.Require().NoError(err)

	result, err := s.gen.Build(context.Background(), cluster)
	s.Require().NoError(err)

	// instances sit on the leaf in name order, so alpha is walked first
	s.Equal("alpha-1", result.Hosts.Instances[0].Name.String())

	reversed, err := s.gen.Reverse(result.Snapshot)
	s.Require().NoError(err)
	s.Require().Len(reversed.Topology, 2)
	s.Equal("zeta", reversed.Topology[0].Name)
	s.Equal("alpha", reversed.Topology[1].Name)
	s.Equal(uint(2), *reversed.Topology[1].ReplicasetsCount)
}

func (s *GeneratorTestSuite) TestNoStore() {
	gen := New(Options{Logger: zaptest.NewLogger(s.T())})

	_, err := gen.Load(statestore.LatestRef)
	s.Error(err)

	result, err := gen.Build(context.Background(), s.cluster(1, dc2Servers))
	s.Require().NoError(err)
	s.Error(gen.Save(result))

	// without a level the zone is the failure domain
	for _, inst := range result.Hosts.AllInstances() {
		if domain, ok := inst.FailureDomains.Domain(); ok {
			s.Equal(domain, *inst.Config.Zone)
		}
	}
}
