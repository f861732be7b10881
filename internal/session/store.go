package session

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"marketing-studio/internal/workflow"
)

type Mode string

const (
	ModeFusion Mode = "fusion"
	ModeDirect Mode = "direct"
)

// Studio is one user's workspace: a fusion flow and a direct flow. Nothing
// in it is persisted; an idle studio expires with everything it holds.
type Studio struct {
	ID     string
	Fusion *workflow.Fusion
	Direct *workflow.Direct

	mu   sync.Mutex
	mode Mode
}

func (s *Studio) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Studio) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

type Options struct {
	TTL      time.Duration
	Analyzer workflow.Analyzer
	Logger   *slog.Logger
}

type Store struct {
	mu       sync.Mutex
	items    *cache.Cache
	analyzer workflow.Analyzer
	logger   *slog.Logger
}

func NewStore(opts Options) *Store {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}

	s := &Store{
		items:    cache.New(ttl, cleanup),
		analyzer: opts.Analyzer,
		logger:   logger,
	}
	s.items.OnEvicted(func(key string, v interface{}) {
		if st, ok := v.(*Studio); ok {
			st.Fusion.Reset()
			st.Direct.Reset()
		}
		s.logger.Debug("session evicted", "session_id", key)
	})
	return s
}

// Create opens a studio under a fresh random id.
func (s *Store) Create() *Studio {
	st := s.newStudio(uuid.NewString())
	s.items.Set(st.ID, st, cache.DefaultExpiration)
	return st
}

// Get returns a live studio and pushes its expiry out.
func (s *Store) Get(id string) (*Studio, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(id)
	if !ok {
		return nil, false
	}
	st := v.(*Studio)
	s.items.Set(id, st, cache.DefaultExpiration)
	return st, true
}

// GetOrCreate looks a studio up by a caller-chosen key, such as a chat.
func (s *Store) GetOrCreate(key string) *Studio {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.items.Get(key); ok {
		st := v.(*Studio)
		s.items.Set(key, st, cache.DefaultExpiration)
		return st
	}

	st := s.newStudio(key)
	s.items.Set(key, st, cache.DefaultExpiration)
	return st
}

// Delete drops the studio and resets its flows.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items.Get(id); !ok {
		return false
	}
	s.items.Delete(id)
	return true
}

func (s *Store) Len() int {
	return s.items.ItemCount()
}

func (s *Store) newStudio(id string) *Studio {
	logger := s.logger.With("session_id", id)
	return &Studio{
		ID:     id,
		Fusion: workflow.NewFusion(workflow.FusionOptions{Analyzer: s.analyzer, Logger: logger}),
		Direct: workflow.NewDirect(workflow.DirectOptions{Analyzer: s.analyzer, Logger: logger}),
		mode:   ModeFusion,
	}
}
