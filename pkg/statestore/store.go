// Package statestore persists placement snapshots so that later runs can
// upgrade an existing placement instead of starting over.
package statestore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const (
	// LatestRef can be passed to Load instead of an id.
	LatestRef = "latest"

	latestFile = "latest"
	stateExt   = ".state"
)

type Options struct {
	Logger *zap.Logger
	Dir    string
}

type Store struct {
	logger *zap.Logger
	dir    string
}

func New(opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create state dir %s", opts.Dir)
	}

	return &Store{
		logger: opts.Logger.Named("statestore"),
		dir:    opts.Dir,
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+stateExt)
}

// Save writes the snapshot and marks it as the latest one.
func (s *Store) Save(snap *Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}

	if err := writeFile(s.path(snap.ID), data); err != nil {
		return errors.Wrapf(err, "failed to save snapshot %s", snap.ID)
	}
	if err := writeFile(filepath.Join(s.dir, latestFile), []byte(snap.ID.String()+"\n")); err != nil {
		return errors.Wrap(err, "failed to update latest snapshot")
	}

	s.logger.Debug("saved snapshot",
		zap.Stringer("id", snap.ID),
		zap.Int("bytes", len(data)))
	return nil
}

// Load reads the snapshot with the given id, or the latest one for LatestRef.
func (s *Store) Load(ref string) (*Snapshot, error) {
	if ref == "" || ref == LatestRef {
		return s.LoadLatest()
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "invalid snapshot id %q", ref)
	}
	return s.load(id)
}

func (s *Store) LoadLatest() (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, latestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNotFound, "no snapshot in %s", s.dir)
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read latest snapshot id")
	}

	id, err := uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupt, "latest snapshot id: %s", err)
	}
	return s.load(id)
}

func (s *Store) load(id uuid.UUID) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrNotFound, "snapshot %s", id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read snapshot %s", id)
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", id)
	}

	s.logger.Debug("loaded snapshot",
		zap.Stringer("id", id),
		zap.String("version", snap.Version),
		zap.Time("createdAt", snap.CreatedAt))
	return snap, nil
}

// List returns every readable snapshot, oldest first.  Unreadable files are
// logged and skipped.
func (s *Store) List() ([]*Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", s.dir)
	}

	var out []*Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), stateExt) {
			continue
		}

		id, err := uuid.Parse(strings.TrimSuffix(entry.Name(), stateExt))
		if err != nil {
			continue
		}

		snap, err := s.load(id)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		out = append(out, snap)
	}

	slices.SortStableFunc(out, func(a, b *Snapshot) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// writeFile replaces path atomically.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
