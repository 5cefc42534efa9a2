// README: Session-epoch side table backed by Redis.
package auth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

// SessionStore records the latest session epoch per principal. A login bumps
// the epoch; every gated call for single-session roles compares the token's
// epoch against the stored value.
type SessionStore struct {
	redis *redis.Client
}

func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{redis: rdb}
}

func epochKey(id types.ID) string {
	return fmt.Sprintf("session:epoch:%s", string(id))
}

// Bump advances the epoch for a principal and returns the new value.
// Called on login; invalidates every previously issued credential.
func (s *SessionStore) Bump(ctx context.Context, id types.ID) (int64, error) {
	return s.redis.Incr(ctx, epochKey(id)).Result()
}

// Current returns the recorded epoch for a principal. A principal that has
// never logged in has epoch 0.
func (s *SessionStore) Current(ctx context.Context, id types.ID) (int64, error) {
	val, err := s.redis.Get(ctx, epochKey(id)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}
