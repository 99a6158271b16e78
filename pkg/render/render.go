// Package render prints placed trees and change lists for humans.  Nothing
// in here modifies the tree.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/common/instance"
	"github.com/fatih/color"
	"golang.org/x/exp/slices"
)

type Options struct {
	// Color enables ANSI colours.  Replicaset groups get their palette
	// colour, additions are green and removals red.
	Color bool
}

type Renderer struct {
	color bool
}

func New(opts Options) *Renderer {
	return &Renderer{color: opts.Color}
}

func (r *Renderer) paint(attr color.Attribute, s string) string {
	c := color.New(attr)
	if r.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(s)
}

// Tree prints every host indented by depth, each followed by its instances.
func (r *Renderer) Tree(w io.Writer, root *hosttree.Host) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tINSTANCE\tHTTP\tBINARY\tZONE\tDOMAIN")

	root.Walk(func(host *hosttree.Host, depth int) {
		label := strings.Repeat("  ", depth) + host.Name.String()
		if !host.Config.Address.IsZero() && host.IsLeaf() {
			label += " (" + host.Config.Address.String() + ")"
		}
		fmt.Fprintf(tw, "%s\t\t\t\t\t\n", label)

		for _, inst := range host.Instances {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("  ", depth+1),
				r.paint(inst.Color, inst.Name.String()),
				portString(inst.Config.HTTPPort),
				portString(inst.Config.BinaryPort),
				derefString(inst.Config.Zone),
				domainString(inst))
		}
	})

	return tw.Flush()
}

// Changes prints host level changes as +/- lines.
func (r *Renderer) Changes(w io.Writer, changes []hosttree.Change) error {
	for _, change := range changes {
		if _, err := fmt.Fprintln(w, r.change(change.Kind, change.String())); err != nil {
			return err
		}
	}
	return nil
}

// Queues prints, per leaf, the instances added to it and the instances
// removed from it.  Entries of the delete queue which are still placed on the
// leaf are not removals.
func (r *Renderer) Queues(w io.Writer, root *hosttree.Host) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	for _, leaf := range root.Leaves() {
		placed := make(map[string]struct{}, len(leaf.Instances))
		for _, inst := range leaf.Instances {
			placed[inst.Key()] = struct{}{}
		}

		for _, key := range sortedKeys(leaf.DeleteQueue) {
			if _, ok := placed[key]; ok {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\n", r.change(hosttree.ChangeRemoved, "- "+key), leaf.Name)
		}
		for _, key := range sortedKeys(leaf.AddQueue) {
			fmt.Fprintf(tw, "%s\t%s\n", r.change(hosttree.ChangeAdded, "+ "+key), leaf.Name)
		}
	}

	return tw.Flush()
}

func (r *Renderer) change(kind hosttree.ChangeKind, s string) string {
	if kind == hosttree.ChangeAdded {
		return r.paint(color.FgGreen, s)
	}
	return r.paint(color.FgRed, s)
}

func portString(port *uint16) string {
	if port == nil {
		return "-"
	}
	return fmt.Sprint(*port)
}

func derefString(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func domainString(inst *instance.Instance) string {
	switch {
	case inst.FailureDomains.IsFinished():
		domain, _ := inst.FailureDomains.Domain()
		return domain
	case inst.FailureDomains.InProgress():
		return "[" + strings.Join(inst.FailureDomains.Labels(), " ") + "]"
	}
	return "-"
}

func sortedKeys(m map[string]*instance.Instance) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
