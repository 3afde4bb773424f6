// Package memory provides an in-process history store. Sessions are
// distributed over a fixed set of shards so that concurrent operations on
// different sessions never contend on a single lock.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ragchat/internal/domain"
)

const (
	shardCount    = 32
	defaultWindow = 10
	defaultTTL    = 2 * time.Hour
)

type session struct {
	turns     []domain.Turn
	expiresAt time.Time
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// Store is an in-memory history store with a sliding turn window and TTL
// expiry. Expired sessions are dropped lazily on access and swept by the
// janitor when one is running.
type Store struct {
	shards [shardCount]shard
	window int
	ttl    time.Duration

	now func() time.Time // overridable in tests
}

// NewStore creates a store keeping at most window turns per session, each
// session expiring ttl after its last append.
func NewStore(window int, ttl time.Duration) *Store {
	if window <= 0 {
		window = defaultWindow
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	s := &Store{window: window, ttl: ttl, now: time.Now}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*session)
	}
	return s
}

func (s *Store) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.shards[h.Sum32()%shardCount]
}

// Load returns the session's turns oldest first. Absent or expired sessions
// yield an empty result. Loading does not refresh the TTL.
func (s *Store) Load(_ context.Context, sessionID string) ([]domain.Turn, error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.now().After(sess.expiresAt) {
		delete(sh.sessions, sessionID)
		return nil, nil
	}
	out := make([]domain.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// Append adds turns at the tail, evicts from the head down to the window,
// and extends the session's life by the full TTL from now.
func (s *Store) Append(_ context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	now := s.now()
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[sessionID]
	if !ok || now.After(sess.expiresAt) {
		sess = &session{}
		sh.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turns...)
	if n := len(sess.turns); n > s.window {
		sess.turns = append([]domain.Turn(nil), sess.turns[n-s.window:]...)
	}
	sess.expiresAt = now.Add(s.ttl)
	return nil
}

// Info reports session metadata without copying turn bodies and without
// touching the TTL.
func (s *Store) Info(_ context.Context, sessionID string) (domain.SessionInfo, error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[sessionID]
	if !ok {
		return domain.SessionInfo{}, nil
	}
	remaining := sess.expiresAt.Sub(s.now())
	if remaining <= 0 {
		delete(sh.sessions, sessionID)
		return domain.SessionInfo{}, nil
	}
	return domain.SessionInfo{Exists: true, TurnCount: len(sess.turns), TTL: remaining}, nil
}

// Clear removes a session and reports whether a live one existed.
func (s *Store) Clear(_ context.Context, sessionID string) (bool, error) {
	sh := s.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[sessionID]
	if !ok {
		return false, nil
	}
	delete(sh.sessions, sessionID)
	return !s.now().After(sess.expiresAt), nil
}

// ListSessions returns the identifiers of live sessions, sorted.
func (s *Store) ListSessions(_ context.Context, limit int) ([]string, error) {
	now := s.now()
	var ids []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if now.After(sess.expiresAt) {
				continue
			}
			ids = append(ids, id)
		}
		sh.mu.Unlock()
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// StartJanitor sweeps expired sessions every interval until ctx is done.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.sweep(); n > 0 {
					log.Debug().Int("expired", n).Msg("history janitor removed expired sessions")
				}
			}
		}
	}()
}

func (s *Store) sweep() int {
	now := s.now()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if now.After(sess.expiresAt) {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
