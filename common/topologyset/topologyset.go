package topologyset

import (
	"github.com/couchbase/topogen/common/failuredomain"
	"github.com/couchbase/topogen/common/instance"
	"github.com/couchbase/topogen/common/name"
	"github.com/fatih/color"
	"k8s.io/utils/ptr"
)

// TopologySet describes a group of replicasets which share the same roles
// and settings.  It expands into one or more concrete instances.
type TopologySet struct {
	Name              string          `yaml:"name" json:"name"`
	ReplicasetsCount  *uint           `yaml:"replicasets_count,omitempty" json:"replicasets_count,omitempty"`
	ReplicationFactor *uint           `yaml:"replication_factor,omitempty" json:"replication_factor,omitempty"`
	Weight            *uint           `yaml:"weight,omitempty" json:"weight,omitempty"`
	FailureDomains    []string        `yaml:"failure_domains,omitempty" json:"failure_domains,omitempty"`
	Roles             []string        `yaml:"roles,omitempty" json:"roles,omitempty"`
	Config            instance.Config `yaml:"config,omitempty" json:"config"`
	Vars              map[string]any  `yaml:"vars,omitempty" json:"vars,omitempty"`
	ExtraEnv          map[string]any  `yaml:"extra_env,omitempty" json:"extra_env,omitempty"`
}

// Palette is the rotating list of colours handed out to replicaset groups.
var Palette = []color.Attribute{
	color.FgGreen,
	color.FgYellow,
	color.FgBlue,
	color.FgMagenta,
	color.FgCyan,
	color.FgHiGreen,
	color.FgHiYellow,
	color.FgHiBlue,
	color.FgHiMagenta,
	color.FgHiCyan,
}

func (s *TopologySet) replicasetsCount() uint {
	return ptr.Deref(s.ReplicasetsCount, 1)
}

func (s *TopologySet) replicationFactor() uint {
	return ptr.Deref(s.ReplicationFactor, 0)
}

// Size is the number of instances the set expands to.
func (s *TopologySet) Size() uint {
	if s.replicationFactor() <= 1 {
		return s.replicasetsCount()
	}
	return s.replicasetsCount() * s.replicationFactor()
}

func (s *TopologySet) newInstance(n name.Name, c color.Attribute) *instance.Instance {
	var roles []string
	if s.Roles != nil {
		roles = make([]string, len(s.Roles))
		copy(roles, s.Roles)
	}

	var weight *uint
	if s.Weight != nil {
		weight = ptr.To(*s.Weight)
	}

	return &instance.Instance{
		Name:           n,
		Weight:         weight,
		FailureDomains: failuredomain.New(s.FailureDomains),
		Roles:          roles,
		ExtraEnv:       instance.CloneMap(s.ExtraEnv),
		Vars:           instance.CloneMap(s.Vars),
		Config:         s.Config.Clone(),
		Color:          c,
	}
}

// Expand turns the sets into a flat ordered list of instances.  Sets with a
// replication factor above one produce three-label names (base-r-i), all
// others produce one two-label name per replicaset (base-r).
func Expand(sets []TopologySet) []*instance.Instance {
	var out []*instance.Instance

	for setIdx := range sets {
		set := &sets[setIdx]
		c := Palette[setIdx%len(Palette)]
		base := name.New(set.Name)

		for rsIdx := uint(1); rsIdx <= set.replicasetsCount(); rsIdx++ {
			replicaset := base.WithIndex(rsIdx)

			if set.replicationFactor() <= 1 {
				out = append(out, set.newInstance(replicaset, c))
				continue
			}

			for replicaIdx := uint(1); replicaIdx <= set.replicationFactor(); replicaIdx++ {
				out = append(out, set.newInstance(replicaset.WithIndex(replicaIdx), c))
			}
		}
	}

	return out
}
