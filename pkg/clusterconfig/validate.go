package clusterconfig

import (
	"github.com/couchbase/topogen/common/topologyset"
	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/sets"
)

// Validate reports every problem found in the description at once.  Each
// returned error matches ErrConfig.
func (c *Cluster) Validate() error {
	var errs error

	if len(c.Topology) == 0 {
		errs = multierr.Append(errs, configErrorf("topology: at least one replicaset group is required"))
	}

	groups := sets.New[string]()
	for idx, set := range c.Topology {
		if set.Name == "" {
			errs = multierr.Append(errs, configErrorf("topology[%d]: name is required", idx))
			continue
		}
		if groups.Has(set.Name) {
			errs = multierr.Append(errs, configErrorf("topology[%d]: group %s is defined twice", idx, set.Name))
		}
		groups.Insert(set.Name)

		if set.ReplicasetsCount != nil && *set.ReplicasetsCount == 0 {
			errs = multierr.Append(errs, configErrorf("topology[%d]: replicasets_count of %s must be positive", idx, set.Name))
		}
	}

	if errs == nil {
		if err := topologyset.ValidateUnique(topologyset.Expand(c.Topology)); err != nil {
			errs = multierr.Append(errs, configErrorf("topology: %s", err))
		}
	}

	if len(c.Hosts) == 0 {
		errs = multierr.Append(errs, configErrorf("hosts: at least one host is required"))
	}
	labels := sets.New[string]()
	if len(c.Hosts) > 1 {
		labels.Insert(DefaultRootName)
	}
	for _, host := range c.Hosts {
		errs = multierr.Append(errs, host.validate("hosts", labels))
	}

	if c.Failover != nil {
		errs = multierr.Append(errs, c.Failover.validate())
	}

	return errs
}

// Host labels double as failure domain names, so they must be unique across
// the whole tree.
func (h *HostSpec) validate(path string, labels sets.Set[string]) error {
	if h.Name == "" {
		return configErrorf("%s: host name is required", path)
	}

	var errs error
	path = path + "." + h.Name
	if labels.Has(h.Name) {
		errs = multierr.Append(errs, configErrorf("%s: host name is not unique", path))
	}
	labels.Insert(h.Name)

	for _, child := range h.Hosts {
		errs = multierr.Append(errs, child.validate(path, labels))
	}
	return errs
}
