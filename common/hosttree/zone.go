package hosttree

import "k8s.io/utils/ptr"

// AssignZones labels every instance with a finished failure domain.  The
// label is the name of its ancestor host at depth dcLevel (the root is at
// depth 0), or the failure domain itself when the instance sits above that
// depth or dcLevel is negative.
func (h *Host) AssignZones(dcLevel int) {
	h.assignZones(0, dcLevel, "")
}

func (h *Host) assignZones(depth, dcLevel int, zone string) {
	if depth == dcLevel {
		zone = h.Name.String()
	}

	for _, inst := range h.Instances {
		domain, ok := inst.FailureDomains.Domain()
		if !ok {
			continue
		}
		if zone != "" {
			inst.Config.Zone = ptr.To(zone)
		} else {
			inst.Config.Zone = ptr.To(domain)
		}
	}

	for _, child := range h.Children {
		child.assignZones(depth+1, dcLevel, zone)
	}
}
