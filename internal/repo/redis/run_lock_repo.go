package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const runLockKeyPrefix = "lock:run:"

var ErrLockNotHeld = errors.New("run lock is not held")

// releaseScript deletes the key only when it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RunLockRepo struct {
	client *goredis.Client
}

func NewRunLockRepo(client *goredis.Client) *RunLockRepo {
	return &RunLockRepo{client: client}
}

// TryAcquire returns a release token when the lock was free, or "" when another
// holder owns it. The lock expires after ttl even if never released.
func (r *RunLockRepo) TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	if name == "" || ttl <= 0 {
		return "", fmt.Errorf("invalid run lock payload")
	}

	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, runLockKeyPrefix+name, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return "", nil
	}

	return token, nil
}

func (r *RunLockRepo) Release(ctx context.Context, name, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if name == "" || token == "" {
		return fmt.Errorf("invalid run lock release payload")
	}

	deleted, err := releaseScript.Run(ctx, r.client, []string{runLockKeyPrefix + name}, token).Int64()
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}

	return nil
}
