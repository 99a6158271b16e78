package topologyset

import (
	"github.com/couchbase/topogen/common/instance"
	"github.com/couchbase/topogen/utils/sliceutils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"k8s.io/utils/ptr"
)

type reconstructGroup struct {
	template       *instance.Instance
	replicasets    []string
	replicaCounts  map[string]uint
	failureDomains []string
}

// Reconstruct groups a flat list of instances back into topology sets.  Groups
// are formed by the instance ancestor label and keep the order in which they
// first appear.  Stateboard instances are skipped.
func Reconstruct(instances []*instance.Instance) ([]TopologySet, error) {
	if err := ValidateUnique(instances); err != nil {
		return nil, err
	}

	var order []string
	groups := make(map[string]*reconstructGroup)

	for _, inst := range instances {
		if inst.IsStateboard() {
			continue
		}

		ancestor := inst.Name.Ancestor()
		group, ok := groups[ancestor]
		if !ok {
			group = &reconstructGroup{
				template:      inst,
				replicaCounts: make(map[string]uint),
			}
			groups[ancestor] = group
			order = append(order, ancestor)
		}

		replicaset := inst.Name.Label(1)
		if _, ok := group.replicaCounts[replicaset]; !ok {
			group.replicasets = append(group.replicasets, replicaset)
		}
		group.replicaCounts[replicaset]++

		group.failureDomains = append(group.failureDomains, inst.FailureDomains.Labels()...)
	}

	sets := make([]TopologySet, 0, len(order))
	for _, ancestor := range order {
		group := groups[ancestor]

		var factor uint
		for _, count := range group.replicaCounts {
			if count > factor {
				factor = count
			}
		}

		set := TopologySet{
			Name:             ancestor,
			ReplicasetsCount: ptr.To(uint(len(group.replicasets))),
			FailureDomains:   sliceutils.RemoveDuplicates(group.failureDomains),
		}
		if factor > 1 {
			set.ReplicationFactor = ptr.To(factor)
		}

		tmpl := group.template.Clone()
		set.Weight = tmpl.Weight
		set.Roles = tmpl.Roles
		set.Vars = tmpl.Vars
		set.ExtraEnv = tmpl.ExtraEnv

		// ports and zones are derived during placement, they are not part of
		// the topology definition
		set.Config = tmpl.Config
		set.Config.HTTPPort = nil
		set.Config.BinaryPort = nil
		set.Config.Zone = nil

		sets = append(sets, set)
	}

	return sets, nil
}

// OrderLike sorts sets in place into the order their names have in
// reference.  Sets missing from reference go last, keeping their relative
// order.
func OrderLike(sets, reference []TopologySet) []TopologySet {
	position := make(map[string]int, len(reference))
	for idx, set := range reference {
		if _, ok := position[set.Name]; !ok {
			position[set.Name] = idx
		}
	}

	rank := func(set TopologySet) int {
		if idx, ok := position[set.Name]; ok {
			return idx
		}
		return len(reference)
	}

	slices.SortStableFunc(sets, func(a, b TopologySet) int {
		return rank(a) - rank(b)
	})
	return sets
}

// ValidateUnique checks that no instance or replicaset label is claimed by
// two different groups, and that instance labels are not repeated.
func ValidateUnique(instances []*instance.Instance) error {
	instanceLabels := make(map[string]struct{}, len(instances))
	replicasetOwners := make(map[string]string)

	for _, inst := range instances {
		label := inst.Name.String()
		if _, ok := instanceLabels[label]; ok {
			return errors.Wrapf(ErrReplicasetNamesNotUnique, "instance %s is defined twice", label)
		}
		instanceLabels[label] = struct{}{}

		if inst.IsStateboard() || inst.Name.Len() < 2 {
			continue
		}

		replicaset := inst.Name.Label(1)
		owner, ok := replicasetOwners[replicaset]
		if ok && owner != inst.Name.Ancestor() {
			return errors.Wrapf(ErrReplicasetNamesNotUnique,
				"replicaset %s belongs to both %s and %s", replicaset, owner, inst.Name.Ancestor())
		}
		replicasetOwners[replicaset] = inst.Name.Ancestor()
	}

	return nil
}
