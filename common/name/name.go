// Package name implements the hierarchical names used to identify replicasets,
// instances and hosts.  A name is an ordered chain of labels describing its
// ancestry, but only the final label takes part in equality and ordering.
package name

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Name is an immutable, non-empty chain of labels.
type Name struct {
	labels []string
}

// New builds a name from the given labels.  The first label is the ancestor
// and the last one is what the name displays as.
func New(labels ...string) Name {
	out := make([]string, len(labels))
	copy(out, labels)
	return Name{labels: out}
}

// WithIndex appends a label of the form "<last>-<index>".
func (n Name) WithIndex(index any) Name {
	return n.with(fmt.Sprintf("%s-%v", n.String(), index))
}

// WithRawIndex appends the index verbatim as a new label.
func (n Name) WithRawIndex(index any) Name {
	return n.with(fmt.Sprint(index))
}

func (n Name) with(label string) Name {
	out := make([]string, len(n.labels), len(n.labels)+1)
	copy(out, n.labels)
	return Name{labels: append(out, label)}
}

// String returns the last label.
func (n Name) String() string {
	if len(n.labels) == 0 {
		return ""
	}
	return n.labels[len(n.labels)-1]
}

// Ancestor returns the first label.
func (n Name) Ancestor() string {
	if len(n.labels) == 0 {
		return ""
	}
	return n.labels[0]
}

// Parent returns the name without its last label.  A single-label name is its
// own parent.
func (n Name) Parent() Name {
	if len(n.labels) <= 1 {
		return n
	}
	return New(n.labels[:len(n.labels)-1]...)
}

// ParentLabel returns the second-to-last label, or the only label.
func (n Name) ParentLabel() string {
	return n.Parent().String()
}

// Label returns the label at the given depth.
func (n Name) Label(idx int) string {
	if idx < 0 || idx >= len(n.labels) {
		return ""
	}
	return n.labels[idx]
}

func (n Name) Len() int {
	return len(n.labels)
}

func (n Name) IsEmpty() bool {
	return len(n.labels) == 0
}

// Labels returns a copy of the whole chain.
func (n Name) Labels() []string {
	out := make([]string, len(n.labels))
	copy(out, n.labels)
	return out
}

// Path renders the full chain joined by sep, mostly for logging.
func (n Name) Path(sep string) string {
	return strings.Join(n.labels, sep)
}

// Equal compares the last labels only.  Two names with the same leaf label
// but different ancestry are equal.
func (n Name) Equal(o Name) bool {
	return n.String() == o.String()
}

// Compare orders names by their last label.
func Compare(a, b Name) int {
	return strings.Compare(a.String(), b.String())
}

func (n Name) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.labels)
}

func (n *Name) UnmarshalJSON(data []byte) error {
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return errors.Wrap(err, "failed to parse name")
	}
	if len(labels) == 0 {
		return errors.New("name must have at least one label")
	}
	n.labels = labels
	return nil
}
