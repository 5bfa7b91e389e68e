package service

import (
	"sync"

	"newslens/internal/domain"
)

// Session is the state owned by one interactive surface: the index built
// by its last successful Build, if any.
type Session struct {
	mu    sync.RWMutex
	index domain.Index
}

// NewSession returns an unbuilt session.
func NewSession() *Session { return &Session{} }

// Built reports whether questions can be answered.
func (s *Session) Built() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index != nil
}

// Index returns the live index or nil.
func (s *Session) Index() domain.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

func (s *Session) set(idx domain.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = idx
}

func (s *Session) reset() { s.set(nil) }
