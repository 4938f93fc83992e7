// Package store keeps every persisted record in one pebble database split into
// named collections. Each key is stored as "<collection>:<key>" so a
// collection is one contiguous key range.
package store

import (
	"sort"
	"strings"

	"slunch/pkg/state/logger"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

type Options struct {
	// DisableWAL trades durability of the last writes for throughput.
	DisableWAL bool
	ReadOnly   bool
}

type Store struct {
	db          *pebble.DB
	path        string
	walDisabled bool
}

// Open opens or creates the pebble database at path.
func Open(path string, o Options) (*Store, error) {
	opts := &pebble.Options{
		DisableWAL: o.DisableWAL,
		ReadOnly:   o.ReadOnly,
	}
	if o.DisableWAL {
		logger.Warn("durability_disabled", "durability", "pebble WAL disabled")
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return nil, errors.Wrapf(err, "open store %s", path)
	}
	return &Store{db: db, path: path, walDisabled: o.DisableWAL}, nil
}

func (s *Store) Path() string { return s.path }

// Close flushes memtables and closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "close store")
	}
	s.db = nil
	return nil
}

// Flush forces memtables to disk.
func (s *Store) Flush() error {
	if s.db == nil {
		return errors.New("store closed")
	}
	return s.db.Flush()
}

// Ready reports whether the database is open.
func (s *Store) Ready() bool {
	return s != nil && s.db != nil
}

func (s *Store) writeOpt() *pebble.WriteOptions {
	if s.walDisabled {
		return pebble.NoSync
	}
	return pebble.Sync
}

// Collection returns a handle to the named collection. Handles are cheap and
// hold no state beyond the prefix.
func (s *Store) Collection(name string) *Collection {
	return &Collection{s: s, name: name, prefix: []byte(name + sep)}
}

// CollectionStat summarizes one collection for inspection.
type CollectionStat struct {
	Name  string
	Keys  int
	Bytes int64
}

// Stats walks the whole keyspace and groups keys by collection.
func (s *Store) Stats() ([]CollectionStat, error) {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "stats iterator")
	}
	defer iter.Close()

	byName := map[string]*CollectionStat{}
	for iter.First(); iter.Valid(); iter.Next() {
		k := string(iter.Key())
		name := k
		if i := strings.Index(k, sep); i >= 0 {
			name = k[:i]
		}
		st, ok := byName[name]
		if !ok {
			st = &CollectionStat{Name: name}
			byName[name] = st
		}
		st.Keys++
		st.Bytes += int64(len(iter.Key()) + len(iter.Value()))
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "stats iterate")
	}

	out := make([]CollectionStat, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DiskUsage returns pebble's view of the on-disk size.
func (s *Store) DiskUsage() uint64 {
	if s.db == nil {
		return 0
	}
	return s.db.Metrics().DiskSpaceUsage()
}
