package store

import (
	"encoding/json"
	"errors"
	"strings"

	"slunch/pkg/apperr"

	cerrors "github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

const sep = ":"

// Collection is a named key range. Every operation is atomic for one key only.
type Collection struct {
	s      *Store
	name   string
	prefix []byte
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) key(k string) []byte {
	out := make([]byte, 0, len(c.prefix)+len(k))
	out = append(out, c.prefix...)
	return append(out, k...)
}

// upper returns the exclusive upper bound of the collection.
func (c *Collection) upper() []byte {
	return []byte(c.name + string(rune(sep[0]+1)))
}

// Get returns a copy of the stored value or an apperr NotFound.
func (c *Collection) Get(k string) ([]byte, error) {
	v, closer, err := c.s.db.Get(c.key(k))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, apperr.NotFound("%s/%s not found", c.name, k)
		}
		return nil, cerrors.Wrapf(err, "get %s/%s", c.name, k)
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (c *Collection) Put(k string, v []byte) error {
	if err := c.s.db.Set(c.key(k), v, c.s.writeOpt()); err != nil {
		return cerrors.Wrapf(err, "put %s/%s", c.name, k)
	}
	return nil
}

func (c *Collection) Exists(k string) (bool, error) {
	_, closer, err := c.s.db.Get(c.key(k))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, cerrors.Wrapf(err, "exists %s/%s", c.name, k)
	}
	closer.Close()
	return true, nil
}

// Remove deletes k. Removing an absent key is not an error.
func (c *Collection) Remove(k string) error {
	if err := c.s.db.Delete(c.key(k), c.s.writeOpt()); err != nil {
		return cerrors.Wrapf(err, "remove %s/%s", c.name, k)
	}
	return nil
}

// Range calls fn for every key in [start, end) in ascending order. An empty
// end runs to the end of the collection. Values passed to fn are copies.
func (c *Collection) Range(start, end string, fn func(k string, v []byte) error) error {
	opts := &pebble.IterOptions{
		LowerBound: c.key(start),
		UpperBound: c.upper(),
	}
	if end != "" {
		opts.UpperBound = c.key(end)
	}
	iter, err := c.s.db.NewIter(opts)
	if err != nil {
		return cerrors.Wrapf(err, "range %s", c.name)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		k := strings.TrimPrefix(string(iter.Key()), string(c.prefix))
		v := make([]byte, len(iter.Value()))
		copy(v, iter.Value())
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Scan visits every key starting with prefix.
func (c *Collection) Scan(prefix string, fn func(k string, v []byte) error) error {
	return c.Range(prefix, prefixEnd(prefix), fn)
}

// All visits every key in the collection.
func (c *Collection) All(fn func(k string, v []byte) error) error {
	return c.Range("", "", fn)
}

func (c *Collection) Keys() ([]string, error) {
	var keys []string
	err := c.All(func(k string, _ []byte) error {
		keys = append(keys, k)
		return nil
	})
	return keys, err
}

func (c *Collection) Count() (int, error) {
	n := 0
	err := c.All(func(string, []byte) error {
		n++
		return nil
	})
	return n, err
}

// Clear drops the whole collection with a single range tombstone.
func (c *Collection) Clear() error {
	if err := c.s.db.DeleteRange(c.prefix, c.upper(), c.s.writeOpt()); err != nil {
		return cerrors.Wrapf(err, "clear %s", c.name)
	}
	return nil
}

// GetJSON decodes the value at k into v.
func (c *Collection) GetJSON(k string, v any) error {
	raw, err := c.Get(k)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return cerrors.Wrapf(err, "decode %s/%s", c.name, k)
	}
	return nil
}

// PutJSON encodes v and stores it at k.
func (c *Collection) PutJSON(k string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return cerrors.Wrapf(err, "encode %s/%s", c.name, k)
	}
	return c.Put(k, raw)
}

// prefixEnd returns the smallest key greater than every key starting with p,
// or "" when no such key exists.
func prefixEnd(p string) string {
	b := []byte(p)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
