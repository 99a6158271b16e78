// Package generator ties the pieces together: it turns a cluster description
// into a placed tree, upgrades previously saved placements and recovers
// cluster descriptions from snapshots.
package generator

import (
	"context"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/common/topologyset"
	"github.com/couchbase/topogen/pkg/clusterconfig"
	"github.com/couchbase/topogen/pkg/inventory"
	"github.com/couchbase/topogen/pkg/metrics"
	"github.com/couchbase/topogen/pkg/statestore"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"k8s.io/utils/ptr"
)

type Options struct {
	Logger *zap.Logger
	// Store is where snapshots are read from and saved to.  It may be nil
	// when nothing is persisted.
	Store *statestore.Store
	// DCLevel is the depth of the hosts used as zones, see AssignZones.  Nil
	// labels instances with their failure domain only.
	DCLevel   *int
	Idiomatic bool
	Metrics   *metrics.TopogenMetrics
}

type Generator struct {
	logger    *zap.Logger
	store     *statestore.Store
	dcLevel   int
	idiomatic bool
	metrics   *metrics.TopogenMetrics
}

type Result struct {
	Hosts    *hosttree.Host
	Changes  []hosttree.Change
	Snapshot *statestore.Snapshot
}

func New(opts Options) *Generator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.GetTopogenMetrics()
	}

	return &Generator{
		logger:    opts.Logger.Named("generator"),
		store:     opts.Store,
		dcLevel:   ptr.Deref(opts.DCLevel, -1),
		idiomatic: opts.Idiomatic,
		metrics:   opts.Metrics,
	}
}

// Build places the cluster from scratch.
func (g *Generator) Build(ctx context.Context, cluster *clusterconfig.Cluster) (*Result, error) {
	root, err := cluster.Build()
	if err != nil {
		return nil, err
	}

	g.logger.Debug("spreading instances",
		zap.Int("instances", len(root.Instances)),
		zap.Int("leaves", len(root.Leaves())))

	if err := root.Spread(); err != nil {
		g.metrics.SpreadFailures.Add(ctx, 1)
		return nil, errors.Wrap(err, "failed to place instances")
	}

	root.AssignZones(g.dcLevel)

	placed := len(root.AllInstances())
	g.metrics.InstancesPlaced.Add(ctx, int64(placed))

	g.logger.Info("built placement",
		zap.Int("instances", placed),
		zap.Int("hosts", len(root.Leaves())))

	return &Result{
		Hosts:    root,
		Snapshot: statestore.NewSnapshot(root, cluster),
	}, nil
}

// Upgrade places the cluster on top of the placement saved in old.  old is
// not modified.
func (g *Generator) Upgrade(ctx context.Context, cluster *clusterconfig.Cluster, old *statestore.Snapshot) (*Result, error) {
	if old.ConfigHash == cluster.Digest {
		g.logger.Info("cluster file is unchanged since the snapshot", zap.Stringer("snapshot", old.ID))
	}

	next, err := cluster.Build()
	if err != nil {
		return nil, err
	}

	merged := old.Hosts.Clone()

	g.logger.Debug("merging placement",
		zap.Stringer("snapshot", old.ID),
		zap.Int("incoming", len(next.AllInstances())),
		zap.Bool("idiomatic", g.idiomatic))

	changes, err := hosttree.Merge(merged, next, g.idiomatic)
	if err != nil {
		g.metrics.SpreadFailures.Add(ctx, 1)
		return nil, errors.Wrapf(err, "failed to upgrade snapshot %s", old.ID)
	}

	merged.AssignZones(g.dcLevel)

	g.metrics.InstancesPlaced.Add(ctx, int64(len(merged.AddQueue)))
	g.metrics.HostsChanged.Add(ctx, int64(len(changes)))

	for _, change := range changes {
		g.logger.Debug("host changed", zap.Stringer("change", change.Kind), zap.Stringer("host", change.Name))
	}
	g.logger.Info("upgraded placement",
		zap.Stringer("snapshot", old.ID),
		zap.Int("added", len(merged.AddQueue)),
		zap.Int("removed", len(merged.DeleteQueue)),
		zap.Int("hostChanges", len(changes)))

	return &Result{
		Hosts:    merged,
		Changes:  changes,
		Snapshot: statestore.NewSnapshot(merged, cluster),
	}, nil
}

// UpgradeFrom loads the referenced snapshot from the store and upgrades it.
func (g *Generator) UpgradeFrom(ctx context.Context, cluster *clusterconfig.Cluster, ref string) (*Result, error) {
	old, err := g.Load(ref)
	if err != nil {
		return nil, err
	}
	return g.Upgrade(ctx, cluster, old)
}

// Reverse recovers a cluster description from a snapshot.
func (g *Generator) Reverse(snap *statestore.Snapshot) (*clusterconfig.Cluster, error) {
	cluster, err := clusterconfig.FromTree(snap.Hosts, snap.Failover, snap.Vars)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reverse snapshot %s", snap.ID)
	}

	// leaves interleave groups, the saved topology has the declared order
	topologyset.OrderLike(cluster.Topology, snap.Topology)

	g.logger.Debug("reversed snapshot",
		zap.Stringer("snapshot", snap.ID),
		zap.Int("groups", len(cluster.Topology)))
	return cluster, nil
}

func (g *Generator) Load(ref string) (*statestore.Snapshot, error) {
	if g.store == nil {
		return nil, errors.New("no state store configured")
	}
	return g.store.Load(ref)
}

// Save persists the snapshot of a result.
func (g *Generator) Save(result *Result) error {
	if g.store == nil {
		return errors.New("no state store configured")
	}
	if err := g.store.Save(result.Snapshot); err != nil {
		return err
	}

	g.logger.Info("saved snapshot",
		zap.Stringer("snapshot", result.Snapshot.ID),
		zap.String("dir", g.store.Dir()))
	return nil
}

// Inventory flattens the result for Ansible.
func (r *Result) Inventory() (*inventory.Inventory, error) {
	return inventory.Build(r.Hosts, inventory.Options{
		Failover: r.Snapshot.Failover,
		Vars:     r.Snapshot.Vars,
	})
}
