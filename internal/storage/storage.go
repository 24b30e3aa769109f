// Package storage persists session snapshots in an embedded Badger store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dgallion1/fieldmark/internal/snapshot"
)

// ErrNotFound is returned when no snapshot exists for an id.
var ErrNotFound = errors.New("snapshot not found")

// Store holds snapshot records keyed by session id.
type Store struct {
	store *badgerhold.Store
	log   *slog.Logger
}

// Open opens or creates the store in dir. Records are encoded as JSON so
// they match the API representation.
func Open(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	log.Debug("snapshot store opened", "dir", dir)
	return &Store{store: store, log: log}, nil
}

// Save inserts or replaces the record stored under rec.ID.
func (s *Store) Save(ctx context.Context, rec snapshot.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("save snapshot: empty id")
	}
	if err := s.store.Upsert(rec.ID, &rec); err != nil {
		return fmt.Errorf("save snapshot %s: %w", rec.ID, err)
	}
	s.log.Debug("snapshot saved", "session_id", rec.ID)
	return nil
}

// Load returns the record stored under id.
func (s *Store) Load(ctx context.Context, id string) (snapshot.Record, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.Record{}, err
	}
	var rec snapshot.Record
	if err := s.store.Get(id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return snapshot.Record{}, ErrNotFound
		}
		return snapshot.Record{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the record stored under id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Delete(id, &snapshot.Record{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return nil
}

// List returns summaries of all records, newest first.
func (s *Store) List(ctx context.Context) ([]snapshot.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var recs []snapshot.Record
	if err := s.store.Find(&recs, nil); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]snapshot.Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Summarize())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

func (s *Store) Close() error {
	return s.store.Close()
}
