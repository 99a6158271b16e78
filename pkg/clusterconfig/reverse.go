package clusterconfig

import (
	"reflect"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/common/topologyset"
	"github.com/pkg/errors"
)

// FromTree recovers a cluster description from a placed tree.  Settings a
// host inherited from its parent are left out again.
func FromTree(root *hosttree.Host, failover *Failover, vars map[string]any) (*Cluster, error) {
	topology, err := topologyset.Reconstruct(root.AllInstances())
	if err != nil {
		return nil, errors.Wrap(err, "failed to reconstruct topology")
	}

	cluster := &Cluster{
		Topology: topology,
		Failover: failover,
		Vars:     vars,
	}

	if root.Name.String() == DefaultRootName && isEmptyConfig(root.Config) && !root.IsLeaf() {
		for _, child := range root.Children {
			cluster.Hosts = append(cluster.Hosts, hostSpec(child, root.Config))
		}
	} else {
		cluster.Hosts = []HostSpec{hostSpec(root, hosttree.HostConfig{})}
	}

	return cluster, nil
}

func hostSpec(host *hosttree.Host, parent hosttree.HostConfig) HostSpec {
	spec := HostSpec{
		Name:   host.Name.String(),
		Config: ownConfig(host.Config, parent),
	}
	for _, child := range host.Children {
		spec.Hosts = append(spec.Hosts, hostSpec(child, host.Config))
	}
	return spec
}

// ownConfig drops every field of config which equals the parent's.
func ownConfig(config, parent hosttree.HostConfig) hosttree.HostConfig {
	out := config.Clone()
	if out.HTTPPort != nil && parent.HTTPPort != nil && *out.HTTPPort == *parent.HTTPPort {
		out.HTTPPort = nil
	}
	if out.BinaryPort != nil && parent.BinaryPort != nil && *out.BinaryPort == *parent.BinaryPort {
		out.BinaryPort = nil
	}
	if out.Distance != nil && parent.Distance != nil && *out.Distance == *parent.Distance {
		out.Distance = nil
	}
	if out.Address.Equal(parent.Address) {
		out.Address = hosttree.Address{}
	}
	if out.AnsibleHost.Equal(parent.AnsibleHost) {
		out.AnsibleHost = hosttree.Address{}
	}
	for k, v := range parent.Additional {
		if own, ok := out.Additional[k]; ok && reflect.DeepEqual(own, v) {
			delete(out.Additional, k)
		}
	}
	if len(out.Additional) == 0 {
		out.Additional = nil
	}
	return out
}

func isEmptyConfig(config hosttree.HostConfig) bool {
	return config.HTTPPort == nil && config.BinaryPort == nil && config.Distance == nil &&
		config.Address.IsZero() && config.AnsibleHost.IsZero() && len(config.Additional) == 0
}
