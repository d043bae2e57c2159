package store

import (
	"fmt"
	"sort"
	"sync"

	"sitepilot/internal/model"
)

// MemoryStore keeps encoded pages in memory. Every Load decodes a fresh
// copy, like reading the file again.
type MemoryStore struct {
	mu    sync.Mutex
	pages map[model.Key][]byte
	saves int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pages: make(map[model.Key][]byte)}
}

func (s *MemoryStore) Load(key model.Key) (*model.Page, error) {
	s.mu.Lock()
	data, ok := s.pages[key]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return Decode(key, data)
}

func (s *MemoryStore) Save(p *model.Page) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[p.Key()] = data
	s.saves++
	return nil
}

func (s *MemoryStore) List(domain string) ([]*model.Page, error) {
	s.mu.Lock()
	var keys []model.Key
	for k := range s.pages {
		if k.Domain == domain {
			keys = append(keys, k)
		}
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	pages := make([]*model.Page, 0, len(keys))
	for _, k := range keys {
		p, err := s.Load(k)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Saves counts Save calls.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
