package action

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kurobane/sagabrawl/cache"
)

// PromptStore holds follow-up input prompts for multi-step commands ("enter
// your additive", "block or dodge?"). Prompts live in the cache under a
// bounded TTL; a claim after expiry fails with ErrPromptExpired and leaves
// all combat state untouched.
type PromptStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewPromptStore creates a PromptStore with the given wait bound.
func NewPromptStore(c cache.Cache, ttl time.Duration) *PromptStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &PromptStore{cache: c, ttl: ttl}
}

func promptKey(channel string, userID int64, kind string) string {
	return fmt.Sprintf("prompt:%s:%d:%s", channel, userID, kind)
}

// Save stores a prompt payload. A live prompt of the same kind for the same
// user is not replaced; the caller should tell the player to answer it first.
func (s *PromptStore) Save(ctx context.Context, channel string, userID int64, kind string, payload interface{}) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	return s.cache.SetNX(ctx, promptKey(channel, userID, kind), string(raw), s.ttl)
}

// Claim retrieves and deletes a prompt, decoding its payload into out.
// A missing or expired prompt yields ErrPromptExpired.
func (s *PromptStore) Claim(ctx context.Context, channel string, userID int64, kind string, out interface{}) error {
	key := promptKey(channel, userID, kind)
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return ErrPromptExpired
	}
	_ = s.cache.Del(ctx, key)
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(raw), out)
}
