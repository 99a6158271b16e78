package statestore

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/couchbase/topogen/common/hosttree"
	"github.com/couchbase/topogen/common/topologyset"
	"github.com/couchbase/topogen/pkg/clusterconfig"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/mod/semver"
)

// FormatVersion is written into every snapshot.  Snapshots with a different
// major version cannot be read.
const FormatVersion = "v1.2.0"

// Snapshot is a placed tree together with the inputs it was built from.
type Snapshot struct {
	ID         uuid.UUID                 `json:"id"`
	Version    string                    `json:"version"`
	CreatedAt  time.Time                 `json:"created_at"`
	ConfigHash string                    `json:"config_hash"`
	Hosts      *hosttree.Host            `json:"hosts"`
	Topology   []topologyset.TopologySet `json:"topology"`
	Failover   *clusterconfig.Failover   `json:"failover,omitempty"`
	Vars       map[string]any            `json:"vars,omitempty"`
}

func NewSnapshot(hosts *hosttree.Host, cluster *clusterconfig.Cluster) *Snapshot {
	return &Snapshot{
		ID:         uuid.New(),
		Version:    FormatVersion,
		CreatedAt:  time.Now().UTC(),
		ConfigHash: cluster.Digest,
		Hosts:      hosts,
		Topology:   cluster.Topology,
		Failover:   cluster.Failover,
		Vars:       cluster.Vars,
	}
}

// Encode serializes the snapshot as snappy compressed JSON.
func Encode(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal snapshot")
	}

	out := make([]byte, snappy.MaxEncodedLen(len(data)))
	out = snappy.Encode(out, data)
	return out, nil
}

// Decode is the reverse of Encode.  Numbers in free-form maps are kept as
// json.Number so that integers survive the round trip.
func Decode(in []byte) (*Snapshot, error) {
	data, err := snappy.Decode(nil, in)
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "failed to decompress: %s", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	snap := &Snapshot{}
	if err := dec.Decode(snap); err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "failed to unmarshal: %s", err)
	}

	if !semver.IsValid(snap.Version) {
		return nil, errors.Wrapf(ErrIncompatibleVersion, "invalid version %q", snap.Version)
	}
	if semver.Major(snap.Version) != semver.Major(FormatVersion) {
		return nil, errors.Wrapf(ErrIncompatibleVersion, "version %s, expected %s.x",
			snap.Version, semver.Major(FormatVersion))
	}
	if snap.Hosts == nil {
		return nil, errors.Wrap(ErrCorrupt, "snapshot has no hosts")
	}

	return snap, nil
}
