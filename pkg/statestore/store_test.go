package statestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchbase/topogen/pkg/clusterconfig"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testCluster = `
topology:
  - name: storage
    replicasets_count: 2
    failure_domains: [dc-2]
    config:
      memtx_memory: 1073741824
hosts:
  - name: dc-1
    hosts: [{name: server-1, config: {address: 10.0.0.1}}]
  - name: dc-2
    hosts: [{name: server-2, config: {address: server-2.example.com}}]
failover: {mode: eventual}
vars: {cartridge_app_name: app}
`

func newSnapshot(t *testing.T) *Snapshot {
	cluster, err := clusterconfig.Parse([]byte(testCluster))
	require.NoError(t, err)

	root, err := cluster.Build()
	require.NoError(t, err)
	require.NoError(t, root.Spread())

	return NewSnapshot(root, cluster)
}

func newStore(t *testing.T) *Store {
	store, err := New(Options{
		Logger: zaptest.NewLogger(t),
		Dir:    filepath.Join(t.TempDir(), "state"),
	})
	require.NoError(t, err)
	return store
}

func TestSaveLoad(t *testing.T) {
	store := newStore(t)
	snap := newSnapshot(t)

	require.NoError(t, store.Save(snap))
	require.FileExists(t, filepath.Join(store.Dir(), snap.ID.String()+".state"))

	loaded, err := store.Load(snap.ID.String())
	require.NoError(t, err)

	require.Equal(t, snap.ID, loaded.ID)
	require.Equal(t, FormatVersion, loaded.Version)
	require.Equal(t, snap.ConfigHash, loaded.ConfigHash)
	require.True(t, snap.CreatedAt.Equal(loaded.CreatedAt))
	require.Equal(t, clusterconfig.FailoverEventual, loaded.Failover.Mode)
	require.Equal(t, "app", loaded.Vars["cartridge_app_name"])

	server2 := loaded.Hosts.Find("server-2")
	require.NotNil(t, server2)
	require.Equal(t, "server-2.example.com", server2.Config.Address.String())
	require.Len(t, server2.Instances, 2)

	inst := server2.Instances[0]
	require.Equal(t, "storage-1", inst.Name.String())
	require.Equal(t, []string{"storage", "storage-1"}, inst.Name.Labels())
	domain, ok := inst.FailureDomains.Domain()
	require.True(t, ok)
	require.Equal(t, "dc-2", domain)
	require.Equal(t, uint16(3031), *inst.Config.BinaryPort)
	require.Equal(t, json.Number("1073741824"), inst.Config.Additional["memtx_memory"])
}

func TestLoadLatest(t *testing.T) {
	store := newStore(t)

	_, err := store.LoadLatest()
	require.ErrorIs(t, err, ErrNotFound)

	first := newSnapshot(t)
	require.NoError(t, store.Save(first))
	second := newSnapshot(t)
	require.NoError(t, store.Save(second))

	latest, err := store.Load(LatestRef)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	older, err := store.Load(first.ID.String())
	require.NoError(t, err)
	require.Equal(t, first.ID, older.ID)
}

func TestLoadMissing(t *testing.T) {
	store := newStore(t)

	_, err := store.Load(uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Load("not-an-id")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	store := newStore(t)

	var ids []uuid.UUID
	for idx := 0; idx < 3; idx++ {
		snap := newSnapshot(t)
		snap.CreatedAt = time.Date(2024, 1, 3-idx, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.Save(snap))
		ids = append(ids, snap.ID)
	}
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), uuid.NewString()+".state"), []byte("junk"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("hi"), 0o644))

	snaps, err := store.List()
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	require.Equal(t, ids[2], snaps[0].ID)
	require.Equal(t, ids[1], snaps[1].ID)
	require.Equal(t, ids[0], snaps[2].ID)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("NotSnappy", func(t *testing.T) {
		_, err := Decode([]byte("definitely not snappy"))
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("NotJSON", func(t *testing.T) {
		_, err := Decode(snappy.Encode(nil, []byte("{")))
		require.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("MajorVersion", func(t *testing.T) {
		snap := newSnapshot(t)
		snap.Version = "v2.0.0"
		data, err := Encode(snap)
		require.NoError(t, err)

		_, err = Decode(data)
		require.ErrorIs(t, err, ErrIncompatibleVersion)
	})

	t.Run("MinorVersion", func(t *testing.T) {
		snap := newSnapshot(t)
		snap.Version = "v1.0.3"
		data, err := Encode(snap)
		require.NoError(t, err)

		_, err = Decode(data)
		require.NoError(t, err)
	})

	t.Run("InvalidVersion", func(t *testing.T) {
		snap := newSnapshot(t)
		snap.Version = "1.0"
		data, err := Encode(snap)
		require.NoError(t, err)

		_, err = Decode(data)
		require.ErrorIs(t, err, ErrIncompatibleVersion)
	})
}
