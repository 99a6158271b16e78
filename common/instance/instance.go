package instance

import (
	"github.com/couchbase/topogen/common/failuredomain"
	"github.com/couchbase/topogen/common/name"
	"github.com/fatih/color"
	"k8s.io/utils/ptr"
)

// Config holds the per-instance settings which end up in the inventory.
// Unknown keys are kept in Additional.
type Config struct {
	HTTPPort    *uint16        `yaml:"http_port,omitempty" json:"http_port,omitempty"`
	BinaryPort  *uint16        `yaml:"binary_port,omitempty" json:"binary_port,omitempty"`
	AllRW       *bool          `yaml:"all_rw,omitempty" json:"all_rw,omitempty"`
	Zone        *string        `yaml:"zone,omitempty" json:"zone,omitempty"`
	VshardGroup *string        `yaml:"vshard_group,omitempty" json:"vshard_group,omitempty"`
	Additional  map[string]any `yaml:",inline" json:"additional_config,omitempty"`
}

// MergeAdditional copies keys from other that are not already set.
func (c *Config) MergeAdditional(other map[string]any) {
	if len(other) == 0 {
		return
	}
	if c.Additional == nil {
		c.Additional = make(map[string]any, len(other))
	}
	for k, v := range other {
		if _, ok := c.Additional[k]; !ok {
			c.Additional[k] = v
		}
	}
}

func (c Config) Clone() Config {
	return Config{
		HTTPPort:    clonePtr(c.HTTPPort),
		BinaryPort:  clonePtr(c.BinaryPort),
		AllRW:       clonePtr(c.AllRW),
		Zone:        clonePtr(c.Zone),
		VshardGroup: clonePtr(c.VshardGroup),
		Additional:  CloneMap(c.Additional),
	}
}

type Instance struct {
	Name           name.Name                    `json:"name"`
	Stateboard     bool                         `json:"stateboard,omitempty"`
	Weight         *uint                        `json:"weight,omitempty"`
	FailureDomains failuredomain.FailureDomains `json:"failure_domains"`
	Roles          []string                     `json:"roles,omitempty"`
	ExtraEnv       map[string]any               `json:"extra_env,omitempty"`
	Vars           map[string]any               `json:"vars,omitempty"`
	Config         Config                       `json:"config"`
	Color          color.Attribute              `json:"color,omitempty"`
}

// Key is the map key used for instances in host queues.
func (i *Instance) Key() string {
	return i.Name.String()
}

func (i *Instance) IsStateboard() bool {
	return i.Stateboard
}

// HasPorts reports whether both ports are already assigned.
func (i *Instance) HasPorts() bool {
	return i.Config.HTTPPort != nil && i.Config.BinaryPort != nil
}

// SwapStable exchanges every field that follows the topology definition
// rather than the placement: ports and failure domains stay where they are.
func (i *Instance) SwapStable(o *Instance) {
	i.Weight, o.Weight = o.Weight, i.Weight
	i.Roles, o.Roles = o.Roles, i.Roles
	i.ExtraEnv, o.ExtraEnv = o.ExtraEnv, i.ExtraEnv
	i.Vars, o.Vars = o.Vars, i.Vars
	i.Config.Zone, o.Config.Zone = o.Config.Zone, i.Config.Zone
	i.Config.VshardGroup, o.Config.VshardGroup = o.Config.VshardGroup, i.Config.VshardGroup
	i.Config.AllRW, o.Config.AllRW = o.Config.AllRW, i.Config.AllRW
	i.Config.Additional, o.Config.Additional = o.Config.Additional, i.Config.Additional
}

func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}

	var roles []string
	if i.Roles != nil {
		roles = make([]string, len(i.Roles))
		copy(roles, i.Roles)
	}

	return &Instance{
		Name:           i.Name,
		Stateboard:     i.Stateboard,
		Weight:         clonePtr(i.Weight),
		FailureDomains: cloneFailureDomains(i.FailureDomains),
		Roles:          roles,
		ExtraEnv:       CloneMap(i.ExtraEnv),
		Vars:           CloneMap(i.Vars),
		Config:         i.Config.Clone(),
		Color:          i.Color,
	}
}

func cloneFailureDomains(fd failuredomain.FailureDomains) failuredomain.FailureDomains {
	switch fd.State() {
	case failuredomain.StateInProgress:
		return failuredomain.New(fd.Labels())
	case failuredomain.StateFinished:
		domain, _ := fd.Domain()
		return failuredomain.Finished(domain)
	}
	return failuredomain.New(nil)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr.To(*p)
}

// CloneMap makes a shallow copy of a string keyed map, keeping nil as nil.
func CloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
