// Package filestore is the file-backed storage backend. The layout is a
// users.json registry at the root plus one directory per owner holding one
// <id>.json file per document.
//
// Concurrency discipline: registry mutations serialize on a single mutex,
// document writes serialize on a per-owner mutex, and every write goes
// through a temp file plus rename so readers never observe a torn file.
// A flock on the data directory keeps a second process out entirely.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/DidNoDB/didnodb/internal/server/models"
)

const (
	registryFile = "users.json"
	docSuffix    = ".json"
)

type registryEntry struct {
	PasswordHash string      `json:"password_hash"`
	Role         models.Role `json:"role"`
	CreatedAt    time.Time   `json:"created_at"`
}

type Store struct {
	root string
	lock *flock.Flock

	regMu sync.Mutex // guards users.json

	ownersMu sync.Mutex
	owners   map[string]*sync.Mutex
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(root, ".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("data directory %s is locked by another process", root)
	}
	s := &Store{root: root, lock: fl, owners: map[string]*sync.Mutex{}}
	if _, err := os.Stat(s.registryPath()); errors.Is(err, os.ErrNotExist) {
		if err := writeFileAtomic(s.registryPath(), []byte("{}\n")); err != nil {
			_ = fl.Unlock()
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Close() error { return s.lock.Unlock() }

func (s *Store) registryPath() string { return filepath.Join(s.root, registryFile) }

func (s *Store) ownerDir(owner string) string { return filepath.Join(s.root, owner) }

func (s *Store) ownerLock(owner string) *sync.Mutex {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	mu, ok := s.owners[owner]
	if !ok {
		mu = &sync.Mutex{}
		s.owners[owner] = mu
	}
	return mu
}

// validName rejects anything that could escape the data directory when used
// as a path element. The service validates usernames on registration; this
// is the storage layer's own guard.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) readRegistry() (map[string]registryEntry, error) {
	b, err := os.ReadFile(s.registryPath())
	if err != nil {
		return nil, err
	}
	reg := map[string]registryEntry{}
	if err := json.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("corrupt registry: %w", err)
	}
	return reg, nil
}

func (s *Store) writeRegistry(reg map[string]registryEntry) error {
	b, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.registryPath(), b)
}

// Users

func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	if !validName(user.Username) {
		return models.ErrInvalidInput
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return err
	}
	if _, ok := reg[user.Username]; ok {
		return models.ErrAlreadyExists
	}
	reg[user.Username] = registryEntry{
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt.UTC(),
	}
	return s.writeRegistry(reg)
}

func (s *Store) GetUser(ctx context.Context, username string) (models.User, error) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return models.User{}, err
	}
	entry, ok := reg[username]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return models.User{
		Username:     username,
		PasswordHash: entry.PasswordHash,
		Role:         entry.Role,
		CreatedAt:    entry.CreatedAt,
	}, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(reg))
	for username, entry := range reg {
		out = append(out, models.User{
			Username:  username,
			Role:      entry.Role,
			CreatedAt: entry.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	reg, err := s.readRegistry()
	if err != nil {
		return 0, err
	}
	return int64(len(reg)), nil
}

// Documents

func (s *Store) EnsureNamespace(ctx context.Context, owner string) error {
	if !validName(owner) {
		return models.ErrInvalidInput
	}
	return os.MkdirAll(s.ownerDir(owner), 0o755)
}

func (s *Store) SaveDocument(ctx context.Context, owner, id string, payload []byte) error {
	if !validName(owner) || !validName(id) {
		return models.ErrInvalidInput
	}
	mu := s.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()
	if err := os.MkdirAll(s.ownerDir(owner), 0o755); err != nil {
		return err
	}
	path := filepath.Join(s.ownerDir(owner), id+docSuffix)
	if _, err := os.Stat(path); err == nil {
		return models.ErrIDCollision
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return writeFileAtomic(path, payload)
}

func (s *Store) GetDocument(ctx context.Context, owner, id string) ([]byte, error) {
	if !validName(owner) || !validName(id) {
		return nil, models.ErrNotFound
	}
	b, err := os.ReadFile(filepath.Join(s.ownerDir(owner), id+docSuffix))
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrNotFound
	}
	return b, err
}

func (s *Store) ListDocuments(ctx context.Context, owner string) (map[string]json.RawMessage, error) {
	if err := s.EnsureNamespace(ctx, owner); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.ownerDir(owner))
	if err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, docSuffix) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(s.ownerDir(owner), name))
		if errors.Is(err, os.ErrNotExist) {
			// deleted between ReadDir and read; the snapshot just misses it
			continue
		}
		if err != nil {
			return nil, err
		}
		out[strings.TrimSuffix(name, docSuffix)] = b
	}
	return out, nil
}

func (s *Store) DeleteDocument(ctx context.Context, owner, id string) error {
	if !validName(owner) || !validName(id) {
		return models.ErrNotFound
	}
	mu := s.ownerLock(owner)
	mu.Lock()
	defer mu.Unlock()
	err := os.Remove(filepath.Join(s.ownerDir(owner), id+docSuffix))
	if errors.Is(err, os.ErrNotExist) {
		return models.ErrNotFound
	}
	return err
}

// CountDocuments sums per-owner document counts across every registered
// user. A registered user with no directory yet counts as zero.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, u := range users {
		entries, err := os.ReadDir(s.ownerDir(u.Username))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), docSuffix) {
				total++
			}
		}
	}
	return total, nil
}
