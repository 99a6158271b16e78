// Package clusterconfig reads the cluster description: the topology to
// expand, the host hierarchy to place it on and the failover settings.
package clusterconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/common/topologyset"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultRootName names the implicit root wrapping several top-level hosts.
const DefaultRootName = "cluster"

type HostSpec struct {
	Name   string              `yaml:"name" json:"name"`
	Config hosttree.HostConfig `yaml:"config,omitempty" json:"config"`
	Hosts  []HostSpec          `yaml:"hosts,omitempty" json:"hosts,omitempty"`
}

type Cluster struct {
	Topology []topologyset.TopologySet `yaml:"topology" json:"topology"`
	Hosts    []HostSpec                `yaml:"hosts" json:"hosts"`
	Failover *Failover                 `yaml:"failover,omitempty" json:"failover,omitempty"`
	Vars     map[string]any            `yaml:"vars,omitempty" json:"vars,omitempty"`

	// Digest is the hex sha256 of the document this cluster was parsed from.
	Digest string `yaml:"-" json:"-"`
}

// Parse decodes and validates a cluster description.
func Parse(data []byte) (*Cluster, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	cluster := &Cluster{}
	if err := dec.Decode(cluster); err != nil {
		return nil, errors.Wrapf(ErrConfig, "failed to parse cluster file: %s", err)
	}

	sum := sha256.Sum256(data)
	cluster.Digest = hex.EncodeToString(sum[:])

	if err := cluster.Validate(); err != nil {
		return nil, err
	}

	return cluster, nil
}

func Load(path string) (*Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cluster file %s", path)
	}

	cluster, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	return cluster, nil
}

// Marshal renders the cluster back into its YAML form.
func (c *Cluster) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(err, "failed to encode cluster")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode cluster")
	}
	return buf.Bytes(), nil
}
