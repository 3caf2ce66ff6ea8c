// Package badger implements the Event Store Contract (pkg/store.I) on top
// of github.com/dgraph-io/badger/v4, the teacher's storage engine.
//
// Grounded on the teacher's pkg/database package: the same badger.Options
// tuning (database.go), the same badger.Sequence-based serial allocation,
// and the same replace-before-delete technique for NIP-16 replaceable
// events (save-event.go) and NIP-09 deletion walk (delete-event.go,
// process-delete.go, app/handle-delete.go). Secondary indexing is
// simplified relative to the teacher's multi-file indexes.orly scheme: this
// store keeps one pointer key per replaceable address and a full scan over
// the event prefix for general filter queries, trading the teacher's
// per-field range indexes for a much smaller implementation, which this
// spec's scope does not require.
package badger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"relayd.dev/pkg/event"
	"relayd.dev/pkg/filter"
	"relayd.dev/pkg/store"
)

const (
	prefixEvent      = "ev:"
	prefixID         = "id:"
	prefixReplace    = "rk:"
	prefixParamRepl  = "pk:"
	prefixTombstone  = "tb:"
	sequenceBucket   = "EVENTS"
	sequenceLeaseLen = 1000
)

// Store is a badger-backed implementation of pkg/store.I.
type Store struct {
	db      *badger.DB
	seq     *badger.Sequence
	dataDir string
}

var _ store.I = (*Store)(nil)

// Open opens (creating if necessary) a badger database at dataDir, tuned
// the way the teacher's database.New does: a moderate block cache and
// table/memtable sizes chosen to avoid large allocations during startup.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("badger: ensure data dir: %w", err)
	}
	opts := badger.DefaultOptions(dataDir)
	opts.BlockCacheSize = 256 << 20
	opts.BlockSize = 4 << 10
	opts.BaseTableSize = 64 << 20
	opts.MemTableSize = 64 << 20
	opts.ValueLogFileSize = 256 << 20
	opts.CompactL0OnClose = true
	opts.LmaxCompaction = true
	opts.Compression = options.None
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", dataDir, err)
	}
	seq, err := db.GetSequence([]byte(sequenceBucket), sequenceLeaseLen)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("badger: acquire sequence: %w", err)
	}
	log.I.F("badger: opened store at %s", dataDir)
	return &Store{db: db, seq: seq, dataDir: dataDir}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if s.seq != nil {
		if err := s.seq.Release(); chk.E(err) {
			return err
		}
	}
	if err := s.db.Close(); chk.E(err) {
		return err
	}
	return nil
}

func (s *Store) SupportsNIP09() bool { return true }
func (s *Store) SupportsNIP16() bool { return true }

func eventKey(serial uint64) []byte {
	b := make([]byte, len(prefixEvent)+8)
	copy(b, prefixEvent)
	binary.BigEndian.PutUint64(b[len(prefixEvent):], serial)
	return b
}

func idKey(id []byte) []byte { return append([]byte(prefixID), id...) }

func replaceKey(pubkey []byte, k uint16) []byte {
	b := make([]byte, 0, len(prefixReplace)+len(pubkey)+2)
	b = append(b, prefixReplace...)
	b = append(b, pubkey...)
	b = binary.BigEndian.AppendUint16(b, k)
	return b
}

func paramReplaceKey(pubkey []byte, k uint16, dTag []byte) []byte {
	h := sha256.Sum256(dTag)
	b := make([]byte, 0, len(prefixParamRepl)+len(pubkey)+2+len(h))
	b = append(b, prefixParamRepl...)
	b = append(b, pubkey...)
	b = binary.BigEndian.AppendUint16(b, k)
	b = append(b, h[:]...)
	return b
}

func tombstoneKey(id []byte) []byte { return append([]byte(prefixTombstone), id...) }

func (s *Store) getSerialByID(txn *badger.Txn, id []byte) (uint64, bool, error) {
	item, err := txn.Get(idKey(id))
	if err == badger.ErrKeyNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var serial uint64
	err = item.Value(func(v []byte) error {
		serial = binary.BigEndian.Uint64(v)
		return nil
	})
	return serial, true, err
}

func (s *Store) getEventBySerial(txn *badger.Txn, serial uint64) (*event.E, error) {
	item, err := txn.Get(eventKey(serial))
	if err != nil {
		return nil, err
	}
	var ev event.E
	err = item.Value(func(v []byte) error { return json.Unmarshal(v, &ev) })
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *Store) isTombstoned(txn *badger.Txn, id []byte) (bool, error) {
	_, err := txn.Get(tombstoneKey(id))
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddEvent persists ev, applying NIP-16 replace/ephemeral semantics and
// NIP-09 tombstone checks, matching the teacher's SaveEvent flow.
func (s *Store) AddEvent(ctx context.Context, ev *event.E) error {
	if ev.Kind.IsEphemeral() {
		// Never persisted, matching spec.md §4.1 for ephemeral kinds.
		return nil
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, exists, err := s.getSerialByID(txn, ev.ID); err != nil {
			return err
		} else if exists {
			return store.ErrDuplicate
		}
		tombstoned, err := s.isTombstoned(txn, ev.ID)
		if err != nil {
			return err
		}
		if tombstoned {
			return store.ErrDeleted
		}

		var replaceKeyBytes []byte
		switch {
		case ev.Kind.IsRegularReplaceable():
			replaceKeyBytes = replaceKey(ev.Pubkey, uint16(ev.Kind))
		case ev.Kind.IsParameterizedReplaceable():
			d := ev.Tags.GetFirst("d")
			var dVal []byte
			if d != nil {
				dVal = d.Value()
			}
			replaceKeyBytes = paramReplaceKey(ev.Pubkey, uint16(ev.Kind), dVal)
		}
		if replaceKeyBytes != nil {
			item, err := txn.Get(replaceKeyBytes)
			switch err {
			case nil:
				var oldSerial uint64
				if err = item.Value(func(v []byte) error {
					oldSerial = binary.BigEndian.Uint64(v)
					return nil
				}); err != nil {
					return err
				}
				oldEv, err := s.getEventBySerial(txn, oldSerial)
				if err != nil {
					return err
				}
				if ev.CreatedAt < oldEv.CreatedAt {
					return store.ErrStale
				}
				if err = txn.Delete(eventKey(oldSerial)); err != nil {
					return err
				}
				if err = txn.Delete(idKey(oldEv.ID)); err != nil {
					return err
				}
			case badger.ErrKeyNotFound:
				// nothing to replace
			default:
				return err
			}
		}

		serial, err := s.seq.Next()
		if err != nil {
			return err
		}
		v, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if err = txn.Set(eventKey(serial), v); err != nil {
			return err
		}
		sb := make([]byte, 8)
		binary.BigEndian.PutUint64(sb, serial)
		if err = txn.Set(idKey(ev.ID), sb); err != nil {
			return err
		}
		if replaceKeyBytes != nil {
			if err = txn.Set(replaceKeyBytes, sb); err != nil {
				return err
			}
		}
		return nil
	})
}

// QueryEvents scans the event prefix and returns everything matching fs,
// newest first. Per-filter Limit fields are honored by taking the smallest
// configured limit across the filter set and applying it after sorting.
func (s *Store) QueryEvents(ctx context.Context, fs filter.S) (event.S, error) {
	var out event.S
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefixEvent)})
		defer it.Close()
		for it.Seek([]byte(prefixEvent)); it.ValidForPrefix([]byte(prefixEvent)); it.Next() {
			item := it.Item()
			var ev event.E
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &ev) }); err != nil {
				return err
			}
			if fs.Matches(&ev) {
				cp := ev
				out = append(out, &cp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Sort()
	if limit := minLimit(fs); limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func minLimit(fs filter.S) int {
	limit := -1
	for _, f := range fs {
		if f.Limit == nil {
			continue
		}
		l := int(*f.Limit)
		if limit < 0 || l < limit {
			limit = l
		}
	}
	return limit
}

// DeleteEvent applies a NIP-09 deletion: requester must match the stored
// event's author, matching app/handle-delete.go's author-must-match-signer
// check for `e`-tag deletions.
func (s *Store) DeleteEvent(ctx context.Context, id []byte, requester []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		serial, exists, err := s.getSerialByID(txn, id)
		if err != nil {
			return err
		}
		if !exists {
			// Nothing to delete; still record the tombstone so a future
			// resubmission of this id is blocked.
			return txn.Set(tombstoneKey(id), nil)
		}
		ev, err := s.getEventBySerial(txn, serial)
		if err != nil {
			return err
		}
		if !bytes.Equal(ev.Pubkey, requester) {
			return fmt.Errorf("store: cannot delete an event belonging to another pubkey")
		}
		if err = txn.Delete(eventKey(serial)); err != nil {
			return err
		}
		if err = txn.Delete(idKey(id)); err != nil {
			return err
		}
		return txn.Set(tombstoneKey(id), nil)
	})
}

// Path returns the filesystem directory holding the database files.
func (s *Store) Path() string { return s.dataDir }
