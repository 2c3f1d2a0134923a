// Package store persists the product database as a single JSON document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/fairyhunter13/glass-catalog-updater/internal/model"
)

// Version is written into new databases. Bump when the record schema changes.
const Version = "1.0"

// Store is the in-memory database. Products are keyed by "MFR:CODE" and are
// never removed.
type Store struct {
	Version     string                    `json:"version"`
	LastUpdated *string                   `json:"last_updated"`
	Products    map[string]*model.Product `json:"products"`

	path string
}

// New returns an empty store bound to path.
func New(path string) *Store {
	return &Store{Version: Version, Products: make(map[string]*model.Product), path: path}
}

// Open loads the store at path, or returns an empty one if the file does not exist.
func Open(path string) (*Store, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(path), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	s := New(path)
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", path, err)
	}
	if s.Products == nil {
		s.Products = make(map[string]*model.Product)
	}
	if s.Version == "" {
		s.Version = Version
	}
	for k, p := range s.Products {
		if p == nil {
			return nil, fmt.Errorf("decode store %s: product %s is null", path, k)
		}
		if want := p.Key().String(); want != k {
			return nil, fmt.Errorf("decode store %s: product under %q has key %q", path, k, want)
		}
	}
	return s, nil
}

// Path returns the file the store saves to.
func (s *Store) Path() string { return s.path }

// Get returns the product for key.
func (s *Store) Get(key string) (*model.Product, bool) {
	p, ok := s.Products[key]
	return p, ok
}

// Put inserts or replaces the product under its own key.
func (s *Store) Put(p *model.Product) {
	s.Products[p.Key().String()] = p
}

// Len returns the number of products.
func (s *Store) Len() int { return len(s.Products) }

// Keys returns every product key in ascending order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.Products))
	for k := range s.Products {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FindStableID returns the product carrying the given stable id.
func (s *Store) FindStableID(id string) (*model.Product, bool) {
	if id == "" {
		return nil, false
	}
	for _, p := range s.Products {
		if p.StableID == id {
			return p, true
		}
	}
	return nil, false
}

// Save stamps last_updated and writes the whole store atomically.
func (s *Store) Save(now time.Time) error {
	ts := now.Format(time.RFC3339)
	s.LastUpdated = &ts
	if err := WriteJSON(s.path, s); err != nil {
		return fmt.Errorf("save store: %w", err)
	}
	return nil
}

// Update opens the store at path, hands it to fn and saves it only when fn
// reports commit=true without error. The loaded store is returned either way
// so callers can export or report from it.
func Update(path string, now func() time.Time, fn func(*Store) (commit bool, err error)) (*Store, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	commit, err := fn(s)
	if err != nil {
		return s, err
	}
	if commit {
		if err := s.Save(now()); err != nil {
			return s, err
		}
	}
	return s, nil
}
