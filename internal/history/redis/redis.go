// Package redis backs the history store with a Redis LIST per session.
//
// Each turn is one JSON-encoded list element. An append pushes the new
// turns, trims the list to the window, and refreshes the key's TTL inside a
// single MULTI/EXEC pipeline, so the sliding window and expiry move together
// and per-session operations stay linearizable without client-side locks.
package redis

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"ragchat/internal/domain"
)

const keyPrefix = "chat_history:"

const (
	defaultWindow = 10
	defaultTTL    = 2 * time.Hour
)

// Store is a Redis-backed history store.
type Store struct {
	client *goredis.Client
	window int
	ttl    time.Duration
}

// NewStore wraps an existing Redis client. The caller owns the client's
// lifecycle and timeouts.
func NewStore(client *goredis.Client, window int, ttl time.Duration) *Store {
	if window <= 0 {
		window = defaultWindow
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, window: window, ttl: ttl}
}

func key(sessionID string) string { return keyPrefix + sessionID }

// Load returns the session's turns oldest first. A missing or expired key
// yields an empty result.
func (s *Store) Load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	vals, err := s.client.LRange(ctx, key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, &domain.HistoryError{Op: "load", Err: err}
	}
	turns := make([]domain.Turn, 0, len(vals))
	for _, v := range vals {
		var t domain.Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, &domain.HistoryError{Op: "load", Err: errors.Wrap(err, "decode turn")}
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append pushes turns at the tail, trims to the window, and refreshes the
// TTL to the full window from now.
func (s *Store) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	encoded := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return &domain.HistoryError{Op: "append", Err: errors.Wrap(err, "encode turn")}
		}
		encoded = append(encoded, data)
	}
	k := key(sessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, k, encoded...)
	pipe.LTrim(ctx, k, int64(-s.window), -1)
	pipe.Expire(ctx, k, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return &domain.HistoryError{Op: "append", Err: err}
	}
	return nil
}

// Info reports session metadata using LLEN and TTL only; turn bodies are
// never transferred and the expiry is left untouched.
func (s *Store) Info(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	k := key(sessionID)
	pipe := s.client.Pipeline()
	lenCmd := pipe.LLen(ctx, k)
	ttlCmd := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.SessionInfo{}, &domain.HistoryError{Op: "info", Err: err}
	}
	n := lenCmd.Val()
	if n == 0 {
		return domain.SessionInfo{}, nil
	}
	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	return domain.SessionInfo{Exists: true, TurnCount: int(n), TTL: ttl}, nil
}

// Clear deletes the session key and reports whether it existed.
func (s *Store) Clear(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Del(ctx, key(sessionID)).Result()
	if err != nil {
		return false, &domain.HistoryError{Op: "clear", Err: err}
	}
	return n > 0, nil
}

// ListSessions scans for history keys and returns the session identifiers,
// sorted.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, &domain.HistoryError{Op: "list", Err: err}
	}
	sort.Strings(ids)
	return ids, nil
}
