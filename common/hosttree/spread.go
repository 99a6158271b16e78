package hosttree

import (
	"math"

	"github.com/couchbase/topogen/common/failuredomain"
	"github.com/couchbase/topogen/common/instance"
	"github.com/couchbase/topogen/common/name"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/utils/ptr"
)

type spreadMode int

const (
	// spreadFresh records every routed instance in both queues.
	spreadFresh spreadMode = iota
	// spreadUpgrade only records additions, deletions are computed by Merge.
	spreadUpgrade
)

// Spread distributes the instances queued on h over the leaves of the tree.
// It is meant to be called once on the root per build.  Placement only
// depends on the queue order and the shape of the tree.
func (h *Host) Spread() error {
	if err := h.checkDomains(h.Instances); err != nil {
		return err
	}

	h.resetQueues()
	for _, inst := range h.Instances {
		h.record(inst, true)
	}
	return h.spread(spreadFresh)
}

// checkDomains fails on the first instance with a pending failure domain
// label that no host in the tree carries.
func (h *Host) checkDomains(instances []*instance.Instance) error {
	for _, inst := range instances {
		if !inst.FailureDomains.InProgress() {
			continue
		}

		var missing []string
		for _, label := range inst.FailureDomains.Labels() {
			if !h.containsAny([]string{label}) {
				missing = append(missing, label)
			}
		}
		if len(missing) > 0 {
			return &UnknownFailureDomainError{
				Instance: inst.Name.String(),
				Host:     h.Name.String(),
				Domains:  missing,
			}
		}
	}
	return nil
}

func (h *Host) spread(mode spreadMode) error {
	if h.IsLeaf() {
		return h.finalize()
	}

	pending := h.Instances
	h.Instances = nil

	for _, inst := range pending {
		target, err := h.route(inst)
		if err != nil {
			return err
		}

		target.Instances = append(target.Instances, inst)
		target.record(inst, mode == spreadFresh)
	}

	slices.SortStableFunc(h.Children, compareHostNames)
	for _, child := range h.Children {
		child.Config = child.Config.Merge(h.Config)
		if err := child.spread(mode); err != nil {
			return err
		}
	}

	return nil
}

// route picks the child which receives inst next.
func (h *Host) route(inst *instance.Instance) (*Host, error) {
	if inst.FailureDomains.InProgress() {
		matched, err := inst.FailureDomains.Consume(h.Name.String())
		if err != nil {
			return nil, err
		}

		queue, err := inst.FailureDomains.Queue()
		if err != nil {
			return nil, err
		}

		if len(queue) > 0 {
			var candidates []*Host
			for _, child := range h.Children {
				if child.containsAny(queue) {
					candidates = append(candidates, child)
				}
			}

			if len(candidates) > 0 {
				slices.SortStableFunc(candidates, compareHostLoads)
				return candidates[0], nil
			}

			if !matched {
				domains := make([]string, len(queue))
				copy(domains, queue)
				return nil, &UnknownFailureDomainError{
					Instance: inst.Name.String(),
					Host:     h.Name.String(),
					Domains:  domains,
				}
			}
		}

		// the constraint is satisfied here, anything below is fair game
		if err := inst.FailureDomains.Finish(h.Name.String()); err != nil {
			return nil, err
		}
	}

	slices.SortStableFunc(h.Children, compareHostLoads)
	return h.Children[0], nil
}

// finalize settles the instances placed on a leaf: constraints are closed,
// ports are handed out in name order and host settings are inherited.
func (h *Host) finalize() error {
	for _, inst := range h.Instances {
		if !inst.FailureDomains.InProgress() {
			continue
		}
		matched, err := inst.FailureDomains.Consume(h.Name.String())
		if err != nil {
			return err
		}
		if !matched {
			return &UnknownFailureDomainError{
				Instance: inst.Name.String(),
				Host:     h.Name.String(),
				Domains:  inst.FailureDomains.Labels(),
			}
		}
		if err := inst.FailureDomains.Finish(h.Name.String()); err != nil {
			return err
		}
	}

	slices.SortStableFunc(h.Instances, func(a, b *instance.Instance) int {
		return name.Compare(a.Name, b.Name)
	})

	httpBase := ptr.Deref(h.Config.HTTPPort, DefaultHTTPPort)
	binaryBase := ptr.Deref(h.Config.BinaryPort, DefaultBinaryPort)

	usedHTTP := sets.New[uint16]()
	usedBinary := sets.New[uint16]()
	for _, inst := range h.Instances {
		if inst.Config.HTTPPort != nil {
			usedHTTP.Insert(*inst.Config.HTTPPort)
		}
		if inst.Config.BinaryPort != nil {
			usedBinary.Insert(*inst.Config.BinaryPort)
		}
	}

	ordinal := 0
	for _, inst := range h.Instances {
		if inst.IsStateboard() {
			continue
		}

		if inst.Config.HTTPPort == nil {
			port, err := freePort(httpBase, ordinal, usedHTTP)
			if err != nil {
				return errors.Wrapf(err, "http port for %s on %s", inst.Name, h.Name)
			}
			inst.Config.HTTPPort = ptr.To(port)
		}
		if inst.Config.BinaryPort == nil {
			port, err := freePort(binaryBase, ordinal, usedBinary)
			if err != nil {
				return errors.Wrapf(err, "binary port for %s on %s", inst.Name, h.Name)
			}
			inst.Config.BinaryPort = ptr.To(port)
		}

		inst.Config.MergeAdditional(h.Config.Additional)
		ordinal++
	}

	return nil
}

// freePort returns base+ordinal, or the next port above it not in used.
func freePort(base uint16, ordinal int, used sets.Set[uint16]) (uint16, error) {
	for candidate := int(base) + ordinal; candidate <= math.MaxUint16; candidate++ {
		port := uint16(candidate)
		if !used.Has(port) {
			used.Insert(port)
			return port, nil
		}
	}
	return 0, errors.Wrapf(failuredomain.ErrSpreading, "no free port above %d", base)
}

func compareHostNames(a, b *Host) int {
	return name.Compare(a.Name, b.Name)
}

func compareHostLoads(a, b *Host) int {
	loadA, loadB := a.load(), b.load()
	if loadA != loadB {
		if loadA < loadB {
			return -1
		}
		return 1
	}
	return name.Compare(a.Name, b.Name)
}
