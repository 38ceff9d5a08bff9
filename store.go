package dfn

import (
	"sort"
	"sync"
)

// Store keeps the parse history of every document, keyed by URI. It is owned
// by whoever drives parsing (the language server or a workspace scan) and is
// never consulted by the parser itself.
//
// Store is safe for concurrent use. Appends for the same URI must still be
// made in the order the document changed.
type Store struct {
	mu           sync.RWMutex
	defs         map[string][]*Definition
	historyLimit int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHistoryLimit keeps at most n definitions per document. Zero keeps all.
func WithHistoryLimit(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{defs: make(map[string][]*Definition)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append records def as the newest parse of def.URI.
func (s *Store) Append(def *Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.defs[def.URI], def)
	if s.historyLimit > 0 && len(h) > s.historyLimit {
		h = append([]*Definition(nil), h[len(h)-s.historyLimit:]...)
	}
	s.defs[def.URI] = h
}

// Latest returns the most recent definition recorded for uri.
func (s *Store) Latest(uri string) (*Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.defs[uri]
	if len(h) == 0 {
		return nil, false
	}
	return h[len(h)-1], true
}

// History returns every definition recorded for uri, oldest first.
func (s *Store) History(uri string) []*Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.defs[uri]
	out := make([]*Definition, len(h))
	copy(out, h)
	return out
}

// URIs returns the sorted list of documents with at least one definition.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.defs))
	for uri := range s.defs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Forget drops the history of uri.
func (s *Store) Forget(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.defs, uri)
}

// Len returns the number of documents in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.defs)
}
