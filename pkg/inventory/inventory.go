// Package inventory flattens a placed host tree into an Ansible inventory.
package inventory

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/common/instance"
	"github.com/couchbase/topogen/pkg/clusterconfig"
	"github.com/couchbase/topogen/utils/netutils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	replicasetPrefix = "replicaset_"
	hostPrefix       = "host_"
)

type Inventory struct {
	All Group `yaml:"all"`
}

type Group struct {
	Vars     map[string]any            `yaml:"vars,omitempty"`
	Hosts    map[string]map[string]any `yaml:"hosts,omitempty"`
	Children map[string]*Group         `yaml:"children,omitempty"`
}

type Options struct {
	Failover *clusterconfig.Failover
	Vars     map[string]any
}

// Build flattens root, which must have been spread.  Instances listed in the
// delete queue of the root are emitted with expelled set so that a rollout
// removes them from the cluster.
func Build(root *hosttree.Host, opts Options) (*Inventory, error) {
	inv := &Inventory{
		All: Group{
			Vars:     make(map[string]any),
			Hosts:    make(map[string]map[string]any),
			Children: make(map[string]*Group),
		},
	}

	for k, v := range opts.Vars {
		inv.All.Vars[k] = v
	}
	if opts.Failover != nil {
		inv.All.Vars["cartridge_failover_params"] = opts.Failover
	}

	replicasets := make(map[string][]*instance.Instance)
	emitted := sets.New[string]()

	for _, leaf := range root.Leaves() {
		group := &Group{
			Vars:  map[string]any{},
			Hosts: map[string]map[string]any{},
		}
		if host := ansibleHost(leaf); host != "" {
			group.Vars["ansible_host"] = host
		}

		for _, inst := range leaf.Instances {
			vars, err := instanceVars(leaf, inst, opts.Failover)
			if err != nil {
				return nil, err
			}
			inv.All.Hosts[inst.Key()] = vars
			group.Hosts[inst.Key()] = nil
			emitted.Insert(inst.Key())

			if !inst.IsStateboard() {
				replicasets[replicasetOf(inst)] = append(replicasets[replicasetOf(inst)], inst)
			}
		}

		for _, key := range sortedKeys(leaf.DeleteQueue) {
			if emitted.Has(key) {
				continue
			}
			vars := expelledVars(leaf, leaf.DeleteQueue[key])
			inv.All.Hosts[key] = vars
			group.Hosts[key] = nil
			emitted.Insert(key)
		}

		if len(group.Hosts) > 0 {
			inv.All.Children[groupName(hostPrefix, leaf.Name.String())] = group
		}
	}

	for _, key := range sortedKeys(root.DeleteQueue) {
		if emitted.Has(key) {
			continue
		}
		inv.All.Hosts[key] = map[string]any{"expelled": true}
		emitted.Insert(key)
	}

	for alias, members := range replicasets {
		slices.SortStableFunc(members, compareReplicas)
		inv.All.Children[groupName(replicasetPrefix, alias)] = replicasetGroup(alias, members)
	}

	if len(inv.All.Vars) == 0 {
		inv.All.Vars = nil
	}
	return inv, nil
}

func (inv *Inventory) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(inv); err != nil {
		return nil, errors.Wrap(err, "failed to encode inventory")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode inventory")
	}
	return buf.Bytes(), nil
}

func instanceVars(leaf *hosttree.Host, inst *instance.Instance, failover *clusterconfig.Failover) (map[string]any, error) {
	vars := instance.CloneMap(inst.Vars)
	if vars == nil {
		vars = make(map[string]any)
	}

	if inst.IsStateboard() {
		return stateboardVars(vars, failover)
	}

	if !inst.HasPorts() {
		return nil, errors.Errorf("instance %s on %s has no ports, was the tree spread?", inst.Name, leaf.Name)
	}

	config := instance.CloneMap(inst.Config.Additional)
	if config == nil {
		config = make(map[string]any)
	}
	config["advertise_uri"] = netutils.JoinPort(advertiseHost(leaf), *inst.Config.BinaryPort)
	config["http_port"] = *inst.Config.HTTPPort
	vars["config"] = config

	if inst.Config.Zone != nil {
		vars["zone"] = *inst.Config.Zone
	}
	if len(inst.ExtraEnv) > 0 {
		vars["cartridge_extra_env"] = inst.ExtraEnv
	}
	return vars, nil
}

func stateboardVars(vars map[string]any, failover *clusterconfig.Failover) (map[string]any, error) {
	if failover == nil || failover.StateboardParams == nil {
		return nil, errors.New("stateboard instance without stateboard parameters")
	}

	_, port, err := net.SplitHostPort(failover.StateboardParams.URI)
	if err != nil {
		return nil, errors.Wrap(err, "invalid stateboard uri")
	}

	vars["stateboard"] = true
	vars["config"] = map[string]any{
		"listen":   netutils.ListenAll(port),
		"password": failover.StateboardParams.Password,
	}
	return vars, nil
}

func expelledVars(leaf *hosttree.Host, inst *instance.Instance) map[string]any {
	vars := map[string]any{"expelled": true}
	if inst.Config.BinaryPort != nil {
		vars["config"] = map[string]any{
			"advertise_uri": netutils.JoinPort(advertiseHost(leaf), *inst.Config.BinaryPort),
		}
	}
	return vars
}

func replicasetGroup(alias string, members []*instance.Instance) *Group {
	tmpl := members[0]

	group := &Group{
		Vars:  map[string]any{"replicaset_alias": alias},
		Hosts: make(map[string]map[string]any, len(members)),
	}

	priority := make([]string, 0, len(members))
	for _, inst := range members {
		group.Hosts[inst.Key()] = nil
		priority = append(priority, inst.Key())
	}
	group.Vars["failover_priority"] = priority

	if len(tmpl.Roles) > 0 {
		group.Vars["roles"] = tmpl.Roles
	}
	if tmpl.Weight != nil {
		group.Vars["weight"] = *tmpl.Weight
	}
	if tmpl.Config.AllRW != nil {
		group.Vars["all_rw"] = *tmpl.Config.AllRW
	}
	if tmpl.Config.VshardGroup != nil {
		group.Vars["vshard_group"] = *tmpl.Config.VshardGroup
	}
	return group
}

// compareReplicas orders replicas by their numeric index so that b-r-2 comes
// before b-r-10.
func compareReplicas(a, b *instance.Instance) int {
	idxA, okA := replicaIndex(a)
	idxB, okB := replicaIndex(b)
	if okA && okB && idxA != idxB {
		return idxA - idxB
	}
	return strings.Compare(a.Key(), b.Key())
}

// replicaIndex is the trailing number of a replica label relative to its
// replicaset label.
func replicaIndex(inst *instance.Instance) (int, bool) {
	if inst.Name.Len() < 3 {
		return 0, false
	}
	suffix, ok := strings.CutPrefix(inst.Key(), inst.Name.ParentLabel()+"-")
	if !ok {
		return 0, false
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// replicasetOf is the replicaset alias: the parent label for replicated
// instances, the instance label itself otherwise.
func replicasetOf(inst *instance.Instance) string {
	if inst.Name.Len() >= 3 {
		return inst.Name.ParentLabel()
	}
	return inst.Name.String()
}

// advertiseHost falls back to the ansible host and finally to the leaf label
// when the address is unset or a wildcard.
func advertiseHost(leaf *hosttree.Host) string {
	return netutils.AdvertiseHost(
		leaf.Config.Address.String(),
		leaf.Config.AnsibleHost.String(),
		leaf.Name.String())
}

func ansibleHost(leaf *hosttree.Host) string {
	if !leaf.Config.AnsibleHost.IsZero() {
		return leaf.Config.AnsibleHost.String()
	}
	return leaf.Config.Address.String()
}

func groupName(prefix, label string) string {
	return fmt.Sprintf("%s%s", prefix, strings.NewReplacer("-", "_", ".", "_").Replace(label))
}

func sortedKeys(m map[string]*instance.Instance) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
