// Package hosttree holds the hierarchical host inventory and the algorithms
// which operate on it: spreading instances across the leaves, merging a new
// tree onto a previously placed one and labelling instances with zones.
//
// A host is either a branch (it has children) or a leaf.  Instances sitting on
// a branch are pending and get handed down during Spread, instances on a leaf
// are placed.  Trees are mutated in place; if any pass returns an error the
// tree must be thrown away.
package hosttree

import (
	"github.com/couchbase/topogen/common/instance"
	"github.com/couchbase/topogen/common/name"
	"github.com/couchbase/topogen/utils/sliceutils"
	"k8s.io/utils/ptr"
)

const (
	DefaultHTTPPort   uint16 = 8081
	DefaultBinaryPort uint16 = 3031
)

// HostConfig is inherited from ancestors for every field left unset.
type HostConfig struct {
	HTTPPort    *uint16        `yaml:"http_port,omitempty" json:"http_port,omitempty"`
	BinaryPort  *uint16        `yaml:"binary_port,omitempty" json:"binary_port,omitempty"`
	Address     Address        `yaml:"address,omitempty" json:"address"`
	AnsibleHost Address        `yaml:"ansible_host,omitempty" json:"ansible_host"`
	Distance    *uint          `yaml:"distance,omitempty" json:"distance,omitempty"`
	Additional  map[string]any `yaml:",inline" json:"additional_config,omitempty"`
}

// Merge returns a copy of c where every unset field is taken from parent.
func (c HostConfig) Merge(parent HostConfig) HostConfig {
	out := c.Clone()
	if out.HTTPPort == nil && parent.HTTPPort != nil {
		out.HTTPPort = ptr.To(*parent.HTTPPort)
	}
	if out.BinaryPort == nil && parent.BinaryPort != nil {
		out.BinaryPort = ptr.To(*parent.BinaryPort)
	}
	if out.Address.IsZero() {
		out.Address = parent.Address
	}
	if out.AnsibleHost.IsZero() {
		out.AnsibleHost = parent.AnsibleHost
	}
	if out.Distance == nil && parent.Distance != nil {
		out.Distance = ptr.To(*parent.Distance)
	}
	for k, v := range parent.Additional {
		if out.Additional == nil {
			out.Additional = make(map[string]any, len(parent.Additional))
		}
		if _, ok := out.Additional[k]; !ok {
			out.Additional[k] = v
		}
	}
	return out
}

func (c HostConfig) Clone() HostConfig {
	out := c
	if c.HTTPPort != nil {
		out.HTTPPort = ptr.To(*c.HTTPPort)
	}
	if c.BinaryPort != nil {
		out.BinaryPort = ptr.To(*c.BinaryPort)
	}
	if c.Distance != nil {
		out.Distance = ptr.To(*c.Distance)
	}
	out.Additional = instance.CloneMap(c.Additional)
	return out
}

type Host struct {
	Name        name.Name                     `json:"name"`
	Config      HostConfig                    `json:"config"`
	Children    []*Host                       `json:"hosts,omitempty"`
	Instances   []*instance.Instance          `json:"instances,omitempty"`
	AddQueue    map[string]*instance.Instance `json:"add_queue,omitempty"`
	DeleteQueue map[string]*instance.Instance `json:"delete_queue,omitempty"`
}

func New(n name.Name, config HostConfig) *Host {
	return &Host{
		Name:   n,
		Config: config,
	}
}

// AddChild creates a child host named below h and returns it.
func (h *Host) AddChild(label string, config HostConfig) *Host {
	child := New(h.Name.WithRawIndex(label), config)
	h.Children = append(h.Children, child)
	return child
}

func (h *Host) IsLeaf() bool {
	return len(h.Children) == 0
}

// Push queues instances on h for the next Spread.
func (h *Host) Push(instances ...*instance.Instance) {
	h.Instances = append(h.Instances, instances...)
}

// Walk visits h and all of its descendants depth first, parents before
// children.
func (h *Host) Walk(fn func(host *Host, depth int)) {
	h.walk(0, fn)
}

func (h *Host) walk(depth int, fn func(host *Host, depth int)) {
	fn(h, depth)
	for _, child := range h.Children {
		child.walk(depth+1, fn)
	}
}

func (h *Host) Leaves() []*Host {
	var out []*Host
	h.Walk(func(host *Host, _ int) {
		if host.IsLeaf() {
			out = append(out, host)
		}
	})
	return out
}

// AllInstances returns every instance in the tree, pending or placed, in
// walk order.
func (h *Host) AllInstances() []*instance.Instance {
	var out []*instance.Instance
	h.Walk(func(host *Host, _ int) {
		out = append(out, host.Instances...)
	})
	return out
}

// Find returns the first host whose label matches.
func (h *Host) Find(label string) *Host {
	var found *Host
	h.Walk(func(host *Host, _ int) {
		if found == nil && host.Name.String() == label {
			found = host
		}
	})
	return found
}

// FindByAddress returns the first leaf whose effective address matches.
// Addresses are inherited, so the parent chain is taken into account.
func (h *Host) FindByAddress(addr Address) *Host {
	return h.findByAddress(addr, HostConfig{})
}

func (h *Host) findByAddress(addr Address, inherited HostConfig) *Host {
	config := h.Config.Merge(inherited)
	if h.IsLeaf() {
		if config.Address.Equal(addr) {
			return h
		}
		return nil
	}
	for _, child := range h.Children {
		if found := child.findByAddress(addr, config); found != nil {
			return found
		}
	}
	return nil
}

// load counts pending and placed instances in the subtree.
func (h *Host) load() int {
	n := len(h.Instances)
	for _, child := range h.Children {
		n += child.load()
	}
	return n
}

// containsAny reports whether h or any descendant is named by one of labels.
func (h *Host) containsAny(labels []string) bool {
	if sliceutils.ContainsAny(labels, h.Name.String()) {
		return true
	}
	for _, child := range h.Children {
		if child.containsAny(labels) {
			return true
		}
	}
	return false
}

func (h *Host) record(inst *instance.Instance, both bool) {
	if h.AddQueue == nil {
		h.AddQueue = make(map[string]*instance.Instance)
	}
	h.AddQueue[inst.Key()] = inst

	if both {
		if h.DeleteQueue == nil {
			h.DeleteQueue = make(map[string]*instance.Instance)
		}
		h.DeleteQueue[inst.Key()] = inst
	}
}

func (h *Host) resetQueues() {
	h.Walk(func(host *Host, _ int) {
		host.AddQueue = nil
		host.DeleteQueue = nil
	})
}

// Clone deep copies the tree.  Queue entries which referenced instances of
// the original tree reference the matching copies.
func (h *Host) Clone() *Host {
	copies := make(map[*instance.Instance]*instance.Instance)
	return h.clone(copies)
}

func (h *Host) clone(copies map[*instance.Instance]*instance.Instance) *Host {
	cloneInstance := func(inst *instance.Instance) *instance.Instance {
		if c, ok := copies[inst]; ok {
			return c
		}
		c := inst.Clone()
		copies[inst] = c
		return c
	}

	out := &Host{
		Name:   h.Name,
		Config: h.Config.Clone(),
	}

	for _, inst := range h.Instances {
		out.Instances = append(out.Instances, cloneInstance(inst))
	}
	for _, child := range h.Children {
		out.Children = append(out.Children, child.clone(copies))
	}

	if h.AddQueue != nil {
		out.AddQueue = make(map[string]*instance.Instance, len(h.AddQueue))
		for k, inst := range h.AddQueue {
			out.AddQueue[k] = cloneInstance(inst)
		}
	}
	if h.DeleteQueue != nil {
		out.DeleteQueue = make(map[string]*instance.Instance, len(h.DeleteQueue))
		for k, inst := range h.DeleteQueue {
			out.DeleteQueue[k] = cloneInstance(inst)
		}
	}

	return out
}
