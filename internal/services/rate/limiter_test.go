package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/ivankudzin/matchcore/internal/repo/redis"
)

func TestLimiterBlocksOn10SecondWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewRateRepo(client), 100, 2)

	ctx := context.Background()
	profileID := "p-42"

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := limiter.AllowSwipe(ctx, profileID)
		if err != nil {
			t.Fatalf("allow swipe #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.AllowSwipe(ctx, profileID)
	if err != nil {
		t.Fatalf("allow swipe #3: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on third swipe in 10s window")
	}
	if retryAfter <= 0 || retryAfter > 10 {
		t.Fatalf("unexpected retry_after: %d", retryAfter)
	}

	currentRetry, err := limiter.RetryAfterSwipe(ctx, profileID)
	if err != nil {
		t.Fatalf("retry_after state: %v", err)
	}
	if currentRetry <= 0 {
		t.Fatalf("expected positive retry_after state, got %d", currentRetry)
	}

	mr.FastForward(11 * time.Second)

	retryAfter, allowed, err = limiter.AllowSwipe(ctx, profileID)
	if err != nil {
		t.Fatalf("allow swipe after 10s window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("unexpected result after fast forward: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterBlocksOnMinuteWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewRateRepo(client), 3, 0)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, allowed, err := limiter.AllowSwipe(ctx, "p-77"); err != nil || !allowed {
			t.Fatalf("unexpected result on allow #%d: allowed=%v err=%v", i+1, allowed, err)
		}
	}

	retryAfter, allowed, err := limiter.AllowSwipe(ctx, "p-77")
	if err != nil {
		t.Fatalf("allow swipe #4: %v", err)
	}
	if allowed || retryAfter <= 0 {
		t.Fatalf("expected block with retry_after, got allowed=%v retry_after=%d", allowed, retryAfter)
	}

	if _, allowed, err := limiter.AllowSwipe(ctx, "p-78"); err != nil || !allowed {
		t.Fatalf("other profiles must keep their own budget: allowed=%v err=%v", allowed, err)
	}
}

func TestLimiterEnabled(t *testing.T) {
	var nilLimiter *Limiter
	if nilLimiter.Enabled() {
		t.Fatalf("nil limiter must be disabled")
	}
	if NewLimiter(nil, 10, 10).Enabled() {
		t.Fatalf("limiter without store must be disabled")
	}
	if NewLimiter(redrepo.NewRateRepo(nil), 0, 0).Enabled() {
		t.Fatalf("limiter without limits must be disabled")
	}
	if !NewLimiter(redrepo.NewRateRepo(nil), 1, 0).Enabled() {
		t.Fatalf("limiter with a limit and a store must be enabled")
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	return mr, client
}
