package hosttree

import (
	"fmt"

	"github.com/couchbase/topogen/common/instance"
	"github.com/couchbase/topogen/common/name"
	"golang.org/x/exp/slices"
	"k8s.io/apimachinery/pkg/util/sets"
)

type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	}
	return "unknown"
}

// Change describes a host which appeared in or disappeared from the tree.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Name name.Name  `json:"name"`
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeAdded:
		return fmt.Sprintf("+ %s", c.Name)
	case ChangeRemoved:
		return fmt.Sprintf("- %s", c.Name)
	}
	return fmt.Sprintf("? %s", c.Name)
}

// Merge reconciles a previously placed tree with the next one and leaves the
// result in old.
//
// Hosts are matched by label.  Hosts only present in old are dropped, hosts
// only present in next are grafted without instances.  Every instance of old
// which still exists in next stays on its host and keeps its ports, but takes
// the topology settings of its new counterpart.  The remaining instances of
// next are spread over the merged tree.  Afterwards the AddQueue of each host
// lists the instances newly placed below it and the DeleteQueue lists the
// instances below it which no longer exist.
//
// With idiomatic set, the first replica b-r-1 of a three label name is
// treated as the same instance as the two label name b-r, in both directions.
//
// next is consumed: its instances are moved into old.
func Merge(old, next *Host, idiomatic bool) ([]Change, error) {
	incoming := next.AllInstances()
	incomingByKey := make(map[string]*instance.Instance, len(incoming))
	for _, inst := range incoming {
		incomingByKey[inst.Key()] = inst
	}

	before := make(map[*Host][]*instance.Instance)
	old.Walk(func(host *Host, _ int) {
		before[host] = host.AllInstances()
	})

	var changes []Change
	mergeHosts(old, next, &changes)
	old.resetQueues()

	retained := sets.New[string]()
	old.Walk(func(host *Host, _ int) {
		var kept []*instance.Instance
		for _, inst := range host.Instances {
			match := lookupInstance(incomingByKey, inst.Name, idiomatic)
			if match == nil || retained.Has(match.Key()) {
				continue
			}

			if match.Name.Len() != inst.Name.Len() {
				inst.Name = match.Name
			}
			inst.SwapStable(match)
			retained.Insert(match.Key())
			kept = append(kept, inst)
		}
		host.Instances = kept
	})

	old.Walk(func(host *Host, _ int) {
		for _, inst := range before[host] {
			if lookupInstance(incomingByKey, inst.Name, idiomatic) != nil {
				continue
			}
			if host.DeleteQueue == nil {
				host.DeleteQueue = make(map[string]*instance.Instance)
			}
			host.DeleteQueue[inst.Key()] = inst
		}
	})

	var added []*instance.Instance
	for _, inst := range incoming {
		if retained.Has(inst.Key()) {
			continue
		}
		inst.FailureDomains = inst.FailureDomains.Reseed()
		added = append(added, inst)
	}
	if err := old.checkDomains(added); err != nil {
		return changes, err
	}
	for _, inst := range added {
		old.Instances = append(old.Instances, inst)
		old.record(inst, false)
	}

	if err := old.spread(spreadUpgrade); err != nil {
		return changes, err
	}

	return changes, nil
}

func mergeHosts(old, next *Host, changes *[]Change) {
	old.Config.Distance, next.Config.Distance = next.Config.Distance, old.Config.Distance
	old.Config.Additional, next.Config.Additional = next.Config.Additional, old.Config.Additional

	newChildren := make(map[string]*Host, len(next.Children))
	for _, child := range next.Children {
		newChildren[child.Name.String()] = child
	}

	slices.SortStableFunc(old.Children, compareHostNames)

	var kept []*Host
	oldChildren := sets.New[string]()
	for _, child := range old.Children {
		oldChildren.Insert(child.Name.String())
		if _, ok := newChildren[child.Name.String()]; !ok {
			*changes = append(*changes, Change{Kind: ChangeRemoved, Name: child.Name})
			continue
		}
		kept = append(kept, child)
	}

	matched := kept
	kept = slices.Clone(kept)

	for _, child := range next.Children {
		if oldChildren.Has(child.Name.String()) {
			continue
		}
		child.Walk(func(host *Host, _ int) {
			host.Instances = nil
			host.AddQueue = nil
			host.DeleteQueue = nil
		})
		*changes = append(*changes, Change{Kind: ChangeAdded, Name: child.Name})
		kept = append(kept, child)
	}

	old.Children = kept

	for _, child := range matched {
		mergeHosts(child, newChildren[child.Name.String()], changes)
	}
}

// lookupInstance finds the counterpart of n among the incoming instances.
func lookupInstance(byKey map[string]*instance.Instance, n name.Name, idiomatic bool) *instance.Instance {
	if inst, ok := byKey[n.String()]; ok {
		return inst
	}
	if !idiomatic {
		return nil
	}

	if n.Len() == 3 && n.Parent().WithIndex(1).Equal(n) {
		if inst, ok := byKey[n.ParentLabel()]; ok && inst.Name.Len() == 2 {
			return inst
		}
	}
	if n.Len() == 2 {
		if inst, ok := byKey[n.WithIndex(1).String()]; ok && inst.Name.Len() == 3 {
			return inst
		}
	}
	return nil
}
