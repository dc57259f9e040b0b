// Package attrstore implements the default attribute store: a
// filesystem-persisted key/value store backing the configuration
// attributes named in spec.md §6 (credential file paths, randomized
// join-delay parameters, topic prefix, commissioning state). Grounded on
// github.com/dgraph-io/badger/v4, an indirect dependency of the teacher
// (pulled in via its embedded-postgres chain) promoted here to a direct
// one since the gateway has no SQL database of its own to need it through.
package attrstore

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// Store is a single-process key/value attribute store. Unlike the
// firmware's NVS-backed attribute store, Badger serializes its own
// writers internally — callers need no external lock, matching spec.md
// §5's "attribute store: internally serialized; readers observe last
// committed value".
type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

// Open opens (creating if absent) a Store rooted at dir.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("attrstore: open %s: %w", dir, err)
	}
	return &Store{db: db, log: log.With().Str("component", "attrstore").Logger()}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetString writes key=value, committing immediately.
func (s *Store) SetString(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

// GetString reads key, returning def if the key is absent.
func (s *Store) GetString(key, def string) string {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = string(v)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.log.Warn().Err(err).Str("key", key).Msg("attribute read failed")
		}
		return def
	}
	return value
}

// SetDuration writes d as its string form, suitable for time.ParseDuration.
func (s *Store) SetDuration(key string, d time.Duration) error {
	return s.SetString(key, d.String())
}

// GetDuration reads key and parses it as a time.Duration, falling back to
// def on a missing key or parse failure. Satisfies gatewayfsm.AttributeStore.
func (s *Store) GetDuration(key string, def time.Duration) time.Duration {
	raw := s.GetString(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("raw", raw).Msg("attribute duration parse failed")
		return def
	}
	return d
}

// SetUint writes v as its decimal string form, e.g. for numeric attributes
// like "port" that spec.md §6 stores as numeric strings.
func (s *Store) SetUint(key string, v uint64) error {
	return s.SetString(key, strconv.FormatUint(v, 10))
}

// GetUint reads key and parses it as an unsigned decimal, falling back to
// def on a missing key or parse failure.
func (s *Store) GetUint(key string, def uint64) uint64 {
	raw := s.GetString(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("raw", raw).Msg("attribute uint parse failed")
		return def
	}
	return v
}

// SetBool writes v as "true"/"false", e.g. for the commissioned control
// point named in spec.md §6.
func (s *Store) SetBool(key string, v bool) error {
	return s.SetString(key, strconv.FormatBool(v))
}

// GetBool reads key and parses it as a bool, falling back to def on a
// missing key or parse failure.
func (s *Store) GetBool(key string, def bool) bool {
	raw := s.GetString(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Str("raw", raw).Msg("attribute bool parse failed")
		return def
	}
	return v
}
