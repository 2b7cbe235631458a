// Package jsonfile stores users, assets and events as three JSON documents in
// a data directory. Every operation reads whole documents and every mutation
// rewrites them. One store-wide lock serialises mutations.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/model"
)

// Document file names.
const (
	UsersFile  = "users.json"
	AssetsFile = "assets.json"
	EventsFile = "events.json"
)

// Store is a JSON document store rooted at a directory.
type Store struct {
	dir string
	mu  sync.RWMutex

	// Now returns the time stamped on new events.
	Now func() time.Time
}

// Open creates the data directory and any missing documents.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	s := &Store{dir: dir, Now: time.Now}
	for _, name := range []string{UsersFile, AssetsFile, EventsFile} {
		if err := s.ensureFile(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) ensureFile(name string) error {
	p := filepath.Join(s.dir, name)
	if _, err := os.Stat(p); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %s: %w", name, err)
	}
	if err := os.WriteFile(p, []byte("[]"), 0o644); err != nil {
		return fmt.Errorf("initializing %s: %w", name, err)
	}
	return nil
}

// readCollection loads a document. A missing, unreadable or malformed
// document yields an empty collection, and a malformed record is skipped.
func readCollection[T any](s *Store, name string) []T {
	out := []T{}
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		slog.Error("reading collection failed", "file", name, "error", err)
		return out
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		slog.Error("parsing collection failed", "file", name, "error", err)
		return out
	}
	for i, row := range rows {
		var v T
		if err := json.Unmarshal(row, &v); err != nil {
			slog.Error("skipping unreadable record", "file", name, "index", i, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// writeCollection replaces a document by writing a temp file and renaming it.
func (s *Store) writeCollection(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

// ListUsers returns all users in storage order.
func (s *Store) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readCollection[model.User](s, UsersFile), nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := readCollection[model.User](s, UsersFile)
	u := model.FindUser(users, id)
	if u == nil {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// SetUserAvatar replaces a user's avatar file reference.
func (s *Store) SetUserAvatar(_ context.Context, id int64, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := readCollection[model.User](s, UsersFile)
	u := model.FindUser(users, id)
	if u == nil {
		return model.ErrMeNotFound
	}
	u.AvatarFile = file
	return s.writeCollection(UsersFile, users)
}

// ListAssets returns all assets in storage order.
func (s *Store) ListAssets(_ context.Context) ([]model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return readCollection[model.Asset](s, AssetsFile), nil
}

// GetAsset returns an asset by id.
func (s *Store) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := model.FindAsset(readCollection[model.Asset](s, AssetsFile), id)
	if a == nil {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// ListEvents returns the events for an asset in storage order.
func (s *Store) ListEvents(_ context.Context, assetID string) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.EventsFor(readCollection[model.Event](s, EventsFile), assetID), nil
}

// Claim marks an asset busy under actorID and logs the claim.
func (s *Store) Claim(_ context.Context, assetID string, actorID int64) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	assets := readCollection[model.Asset](s, AssetsFile)
	users := readCollection[model.User](s, UsersFile)

	ev, err := lifecycle.Claim(model.FindAsset(assets, assetID), model.FindUser(users, actorID), s.Now())
	if err != nil {
		return nil, err
	}
	return s.commit(assets, ev)
}

// Release frees an asset held by actorID and logs the release.
func (s *Store) Release(_ context.Context, assetID string, actorID int64, req lifecycle.ReleaseRequest) (*model.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	assets := readCollection[model.Asset](s, AssetsFile)
	users := readCollection[model.User](s, UsersFile)

	ev, err := lifecycle.Release(model.FindAsset(assets, assetID), model.FindUser(users, actorID), actorID, req, s.Now())
	if err != nil {
		return nil, err
	}
	return s.commit(assets, ev)
}

// commit writes the mutated asset list and appends ev with the next id.
// The caller holds the write lock.
func (s *Store) commit(assets []model.Asset, ev model.Event) (*model.Event, error) {
	events := readCollection[model.Event](s, EventsFile)
	ev.ID = model.NextID(events, func(e model.Event) int64 { return e.ID })
	events = append(events, ev)

	if err := s.writeCollection(AssetsFile, assets); err != nil {
		return nil, err
	}
	if err := s.writeCollection(EventsFile, events); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Seed fills empty user and asset documents.
func (s *Store) Seed(_ context.Context, users []model.User, assets []model.Asset) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seeded := false
	if len(readCollection[model.User](s, UsersFile)) == 0 && len(users) > 0 {
		if err := s.writeCollection(UsersFile, users); err != nil {
			return false, err
		}
		seeded = true
	}
	if len(readCollection[model.Asset](s, AssetsFile)) == 0 && len(assets) > 0 {
		if err := s.writeCollection(AssetsFile, assets); err != nil {
			return seeded, err
		}
		seeded = true
	}
	return seeded, nil
}

// Close is a no-op; documents are closed after every access.
func (s *Store) Close() error { return nil }
