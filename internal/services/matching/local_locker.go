package matching

import (
	"context"
	"hash/fnv"
	"sync"
)

const localLockShards = 256

// LocalLocker serializes pairs within one process. Distinct pairs may share a
// shard, which only costs throughput.
type LocalLocker struct {
	shards [localLockShards]sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) WithPairLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mu := &l.shards[shardFor(key)]
	mu.Lock()
	defer mu.Unlock()

	return fn(ctx)
}

func shardFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % localLockShards
}
