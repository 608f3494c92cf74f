package services

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/vlrscout/scout-engine/pkg/metrics"
	"github.com/vlrscout/scout-engine/pkg/models"
)

// MaxSessionIDLength bounds caller-supplied session ids.
const MaxSessionIDLength = 128

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidSessionID reports whether id may be used as a session key.
func ValidSessionID(id string) bool {
	return len(id) > 0 && len(id) <= MaxSessionIDLength && sessionIDPattern.MatchString(id)
}

// NewSessionID returns a fresh session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ConversationConfig bounds session memory.
type ConversationConfig struct {
	MaxTurns int
	IdleTTL  time.Duration
}

type conversation struct {
	mu    sync.Mutex
	turns []models.ConversationTurn
}

// ConversationStore holds each session's recent turns in memory. Sessions
// expire after IdleTTL without activity; each keeps at most MaxTurns turns,
// dropping the oldest first.
type ConversationStore struct {
	sessions *ttlcache.Cache[string, *conversation]
	maxTurns int
}

func NewConversationStore(cfg ConversationConfig) *ConversationStore {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 2 * time.Hour
	}

	sessions := ttlcache.New(
		ttlcache.WithTTL[string, *conversation](cfg.IdleTTL),
	)
	sessions.OnInsertion(func(_ context.Context, _ *ttlcache.Item[string, *conversation]) {
		metrics.ActiveSessions.Inc()
	})
	sessions.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, _ *ttlcache.Item[string, *conversation]) {
		metrics.ActiveSessions.Dec()
	})

	return &ConversationStore{sessions: sessions, maxTurns: cfg.MaxTurns}
}

// Start runs expiry until Stop is called. It blocks.
func (s *ConversationStore) Start() {
	s.sessions.Start()
}

func (s *ConversationStore) Stop() {
	s.sessions.Stop()
}

func (s *ConversationStore) session(id string) *conversation {
	item, _ := s.sessions.GetOrSet(id, &conversation{})
	return item.Value()
}

// Append records a turn, evicting the oldest beyond the bound.
func (s *ConversationStore) Append(sessionID string, turn models.ConversationTurn) {
	c := s.session(sessionID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
	if over := len(c.turns) - s.maxTurns; over > 0 {
		c.turns = append([]models.ConversationTurn(nil), c.turns[over:]...)
	}
}

// Snapshot returns a copy of the session's turns, oldest first.
func (s *ConversationStore) Snapshot(sessionID string) []models.ConversationTurn {
	item := s.sessions.Get(sessionID)
	if item == nil {
		return nil
	}
	c := item.Value()
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ConversationTurn(nil), c.turns...)
}

// Reset forgets a session.
func (s *ConversationStore) Reset(sessionID string) {
	s.sessions.Delete(sessionID)
}

// Len returns the number of turns held for a session.
func (s *ConversationStore) Len(sessionID string) int {
	item := s.sessions.Get(sessionID)
	if item == nil {
		return 0
	}
	c := item.Value()
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}
