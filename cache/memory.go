package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore is an in-process LRU-backed Store, the default for a
// single-session engine (spec §4.7 does not mandate persistence).
type MemoryStore struct {
	lru *lru.Cache[Key, Entry]
}

// NewMemoryStore builds a MemoryStore holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[Key, Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{lru: c}, nil
}

func (s *MemoryStore) Get(key Key) (Entry, bool, error) {
	e, ok := s.lru.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *MemoryStore) Set(key Key, entry Entry) error {
	s.lru.Add(key, entry)
	return nil
}

func (s *MemoryStore) Delete(key Key) error {
	s.lru.Remove(key)
	return nil
}
