// Package redis resolves fragment identifiers against a Redis docstore.
// Records live under a key namespace as JSON blobs, mirroring the layout
// written by the ingestion side.
package redis

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"ragchat/internal/domain"
)

const defaultNamespace = "docstore"

// Store reads fragment records from Redis.
type Store struct {
	client    *goredis.Client
	namespace string
}

// NewStore wraps an existing Redis client. An empty namespace uses the
// default.
func NewStore(client *goredis.Client, namespace string) *Store {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Store{client: client, namespace: namespace}
}

func (s *Store) key(fragmentID string) string { return s.namespace + ":" + fragmentID }

// GetFragment fetches one fragment record. A missing key returns ok=false;
// an evicted or expired body is not an error here, the caller decides what
// to do with the gap.
func (s *Store) GetFragment(ctx context.Context, fragmentID string) (domain.Fragment, bool, error) {
	val, err := s.client.Get(ctx, s.key(fragmentID)).Result()
	if err == goredis.Nil {
		return domain.Fragment{}, false, nil
	}
	if err != nil {
		return domain.Fragment{}, false, err
	}
	var frag domain.Fragment
	if err := json.Unmarshal([]byte(val), &frag); err != nil {
		return domain.Fragment{}, false, errors.Wrapf(err, "decode fragment %s", fragmentID)
	}
	return frag, true, nil
}
