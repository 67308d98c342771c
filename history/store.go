// Package history persists the game event stream and completed-round
// summaries to disk so indexers and clients can replay what happened without
// holding a live subscription. Records are append-only under monotonic
// sequence keys.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/log"
)

var (
	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("history: store is closed")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("history: not found")
)

var (
	eventPrefix = []byte("evt:")
	roundPrefix = []byte("rnd:")
	seqKey      = []byte("meta:seq")
)

// Record is one journaled event.
type Record struct {
	Seq       uint64          `json:"seq"`
	Type      types.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// RoundSummary is the durable outcome of a completed round.
type RoundSummary struct {
	RoundID        uint64         `json:"roundId"`
	RoomID         uint64         `json:"roomId"`
	WordLength     int            `json:"wordLength"`
	QualifiedCount int            `json:"qualifiedCount"`
	Winner         *types.Address `json:"winner,omitempty"`
	CompletedAt    uint64         `json:"completedAt"`
}

// Store is a LevelDB-backed event journal. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	db     *leveldb.DB
	seq    uint64
	closed bool
	logger *log.Logger
}

// Open opens (or creates) the journal at path and restores the last used
// sequence number.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	s := &Store{
		db:     db,
		logger: log.Default().Module("history"),
	}
	if raw, err := db.Get(seqKey, nil); err == nil && len(raw) == 8 {
		s.seq = binary.BigEndian.Uint64(raw)
	}
	return s, nil
}

// Close flushes and closes the underlying database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func eventKey(seq uint64) []byte {
	key := make([]byte, len(eventPrefix)+8)
	copy(key, eventPrefix)
	binary.BigEndian.PutUint64(key[len(eventPrefix):], seq)
	return key
}

func roundKey(roundID uint64) []byte {
	key := make([]byte, len(roundPrefix)+8)
	copy(key, roundPrefix)
	binary.BigEndian.PutUint64(key[len(roundPrefix):], roundID)
	return key
}

// Append journals one event under the next sequence number and returns it.
func (s *Store) Append(t types.EventType, ts time.Time, payload any) (uint64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	s.seq++
	rec := Record{Seq: s.seq, Type: t, Timestamp: ts, Data: data}
	enc, err := json.Marshal(&rec)
	if err != nil {
		return 0, err
	}

	batch := new(leveldb.Batch)
	batch.Put(eventKey(s.seq), enc)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], s.seq)
	batch.Put(seqKey, seqBytes[:])
	if err := s.db.Write(batch, nil); err != nil {
		s.seq--
		return 0, err
	}
	return rec.Seq, nil
}

// Events returns up to limit records starting at sequence from (inclusive).
// A limit of 0 means no bound.
func (s *Store) Events(from uint64, limit int) ([]Record, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.mu.Unlock()

	iter := s.db.NewIterator(&util.Range{Start: eventKey(from)}, nil)
	defer iter.Release()

	var out []Record
	for iter.Next() {
		if len(iter.Key()) < len(eventPrefix) || string(iter.Key()[:len(eventPrefix)]) != string(eventPrefix) {
			break
		}
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			s.logger.Warn("skipping corrupt journal record", "key", iter.Key(), "err", err)
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// Replay streams every journaled record through fn in sequence order,
// stopping early if fn returns an error.
func (s *Store) Replay(fn func(Record) error) error {
	iter := s.db.NewIterator(util.BytesPrefix(eventPrefix), nil)
	defer iter.Release()

	for iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Seq returns the last assigned sequence number.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// PutRoundSummary stores the durable outcome of a completed round, keyed by
// round id. Overwrites are allowed; the latest write wins.
func (s *Store) PutRoundSummary(sum RoundSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	enc, err := json.Marshal(&sum)
	if err != nil {
		return err
	}
	return s.db.Put(roundKey(sum.RoundID), enc, nil)
}

// GetRoundSummary loads the stored outcome of a round.
func (s *Store) GetRoundSummary(roundID uint64) (RoundSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return RoundSummary{}, ErrClosed
	}
	raw, err := s.db.Get(roundKey(roundID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return RoundSummary{}, ErrNotFound
	}
	if err != nil {
		return RoundSummary{}, err
	}
	var sum RoundSummary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return RoundSummary{}, err
	}
	return sum, nil
}
