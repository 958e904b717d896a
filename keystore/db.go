// Package keystore persists serialized key-handler envelopes in a bbolt
// database file, keyed by a caller-chosen name.  Envelopes are opaque to
// the store; encryption and integrity live inside the envelope itself, so
// the store holds ciphertext only and never needs a passphrase.
package keystore

import (
	"encoding/binary"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	bolt "go.etcd.io/bbolt"
)

var (
	// envelopeBucket maps handler names to their serialized envelopes.
	envelopeBucket = []byte("envelopes")

	// metaBucket maps handler names to non-secret metadata rows.
	metaBucket = []byte("meta")
)

// dbOpenTimeout bounds how long opening the database file may block on an
// exclusive lock held by another process.
const dbOpenTimeout = 5 * time.Second

// HandlerInfo describes one stored envelope.
type HandlerInfo struct {
	// Name is the caller-chosen name the envelope is stored under.
	Name string

	// CreatedAt is when the envelope was first stored.
	CreatedAt time.Time
}

// Store is a named-envelope store backed by a bbolt database file.  All
// methods are safe for concurrent use; each wraps a single database
// transaction.
type Store struct {
	db *bolt.DB

	// clock is used to stamp envelope creation times.
	clock clock.Clock
}

// Open opens the keystore database at the given path, creating the file
// and its buckets when absent.
func Open(path string) (*Store, error) {
	return openWithClock(path, clock.NewDefaultClock())
}

// openWithClock is the injection point the tests use to control time.
func openWithClock(path string, clk clock.Clock) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, storeError(ErrDatabase,
			"failed to open keystore database", err)
	}

	err = db.Update(func(dbTx *bolt.Tx) error {
		if _, err := dbTx.CreateBucketIfNotExists(envelopeBucket); err != nil {
			return err
		}
		_, err := dbTx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, storeError(ErrDatabase,
			"failed to create keystore buckets", err)
	}

	return &Store{db: db, clock: clk}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// serializeMeta encodes the metadata row for a stored envelope.  The row
// is a single big-endian unix timestamp; more fields append behind it in
// future versions.
func serializeMeta(createdAt time.Time) []byte {
	var row [8]byte
	binary.BigEndian.PutUint64(row[:], uint64(createdAt.Unix()))
	return row[:]
}

// deserializeMeta decodes a metadata row.
func deserializeMeta(row []byte) (time.Time, error) {
	if len(row) < 8 {
		return time.Time{}, storeError(ErrDatabase,
			"malformed metadata row", nil)
	}
	return time.Unix(int64(binary.BigEndian.Uint64(row[:8])), 0), nil
}

// Put stores an envelope under the given name.  Names are unique; storing
// under an existing name fails with ErrAlreadyExists so a stored handler
// can never be silently replaced.
func (s *Store) Put(name string, envelope []byte) error {
	if name == "" {
		return storeError(ErrInvalidName, "handler name must not be empty",
			nil)
	}

	err := s.db.Update(func(dbTx *bolt.Tx) error {
		envelopes := dbTx.Bucket(envelopeBucket)
		if envelopes.Get([]byte(name)) != nil {
			return storeError(ErrAlreadyExists,
				"a handler named "+name+" already exists", nil)
		}
		if err := envelopes.Put([]byte(name), envelope); err != nil {
			return err
		}

		meta := dbTx.Bucket(metaBucket)
		return meta.Put([]byte(name), serializeMeta(s.clock.Now()))
	})
	if err != nil {
		return maybeConvertDbError(err)
	}

	log.Infof("Stored key handler envelope %q (%d bytes)", name,
		len(envelope))
	return nil
}

// Fetch returns the envelope stored under the given name.
func (s *Store) Fetch(name string) ([]byte, error) {
	var envelope []byte
	err := s.db.View(func(dbTx *bolt.Tx) error {
		stored := dbTx.Bucket(envelopeBucket).Get([]byte(name))
		if stored == nil {
			return storeError(ErrNotFound,
				"no handler named "+name, nil)
		}
		envelope = make([]byte, len(stored))
		copy(envelope, stored)
		return nil
	})
	if err != nil {
		return nil, maybeConvertDbError(err)
	}
	return envelope, nil
}

// Delete removes the envelope stored under the given name.
func (s *Store) Delete(name string) error {
	err := s.db.Update(func(dbTx *bolt.Tx) error {
		envelopes := dbTx.Bucket(envelopeBucket)
		if envelopes.Get([]byte(name)) == nil {
			return storeError(ErrNotFound,
				"no handler named "+name, nil)
		}
		if err := envelopes.Delete([]byte(name)); err != nil {
			return err
		}
		return dbTx.Bucket(metaBucket).Delete([]byte(name))
	})
	if err != nil {
		return maybeConvertDbError(err)
	}

	log.Infof("Deleted key handler envelope %q", name)
	return nil
}

// List returns information about every stored envelope in key order.
func (s *Store) List() ([]HandlerInfo, error) {
	var infos []HandlerInfo
	err := s.db.View(func(dbTx *bolt.Tx) error {
		meta := dbTx.Bucket(metaBucket)
		return dbTx.Bucket(envelopeBucket).ForEach(
			func(name, _ []byte) error {
				info := HandlerInfo{Name: string(name)}
				if row := meta.Get(name); row != nil {
					createdAt, err := deserializeMeta(row)
					if err != nil {
						return err
					}
					info.CreatedAt = createdAt
				}
				infos = append(infos, info)
				return nil
			})
	})
	if err != nil {
		return nil, maybeConvertDbError(err)
	}
	return infos, nil
}
