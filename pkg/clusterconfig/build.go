package clusterconfig

import (
	"github.com/couchbase/topogen/common/failuredomain"
	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/common/instance"
	"github.com/couchbase/topogen/common/name"
	"github.com/couchbase/topogen/common/topologyset"
	"github.com/pkg/errors"
)

// StateboardName is the fixed name of the stateboard instance.
const StateboardName = "stateboard"

// Tree builds the host hierarchy without any instances.  A single top-level
// host becomes the root, several are wrapped in DefaultRootName.
func (c *Cluster) Tree() *hosttree.Host {
	if len(c.Hosts) == 1 {
		spec := c.Hosts[0]
		root := hosttree.New(name.New(spec.Name), spec.Config.Clone())
		addHosts(root, spec.Hosts)
		return root
	}

	root := hosttree.New(name.New(DefaultRootName), hosttree.HostConfig{})
	addHosts(root, c.Hosts)
	return root
}

func addHosts(parent *hosttree.Host, specs []HostSpec) {
	for _, spec := range specs {
		child := parent.AddChild(spec.Name, spec.Config.Clone())
		addHosts(child, spec.Hosts)
	}
}

// Build returns the host tree with every instance of the topology queued on
// the root, ready to be spread.
func (c *Cluster) Build() (*hosttree.Host, error) {
	root := c.Tree()
	root.Push(topologyset.Expand(c.Topology)...)

	if c.Failover.UsesStateboard() {
		stateboard, err := c.stateboardInstance(root)
		if err != nil {
			return nil, err
		}
		root.Push(stateboard)
	}

	return root, nil
}

// stateboardInstance pins the stateboard to the leaf whose address matches
// the stateboard URI.
func (c *Cluster) stateboardInstance(root *hosttree.Host) (*instance.Instance, error) {
	host, err := c.Failover.StateboardHost()
	if err != nil {
		return nil, err
	}

	addr, err := hosttree.ParseAddress(host)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "failover: stateboard uri: %s", err)
	}

	leaf := root.FindByAddress(addr)
	if leaf == nil {
		return nil, configErrorf("failover: no host with address %s for the stateboard", addr)
	}

	return &instance.Instance{
		Name:           name.New(StateboardName),
		Stateboard:     true,
		FailureDomains: failuredomain.New([]string{leaf.Name.String()}),
	}, nil
}
