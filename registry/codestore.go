// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// HashSource returns the hex sha256 of source text. The hash is the
// content address in the code store and half of every decision-cache key.
func HashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}

// CodeStore is content-addressed source storage. Identical source is stored
// once regardless of how many tools reference it.
type CodeStore interface {
	Put(hash string, src []byte)
	Get(hash string) ([]byte, bool)
}

// MemoryCodeStore is the in-process store.
type MemoryCodeStore struct {
	mu  sync.RWMutex
	src map[string][]byte
}

// NewMemoryCodeStore creates an empty store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{src: make(map[string][]byte)}
}

func (s *MemoryCodeStore) Put(hash string, src []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.src[hash]; ok {
		return
	}
	cp := make([]byte, len(src))
	copy(cp, src)
	s.src[hash] = cp
}

func (s *MemoryCodeStore) Get(hash string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.src[hash]
	return src, ok
}
