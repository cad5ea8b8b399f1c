package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_EnforcesFixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	key := ConsumeKey("user-1")

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, key, 3, now)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := 3 - (i + 1); result.Remaining != want {
			t.Fatalf("expected remaining=%d, got %d", want, result.Remaining)
		}
	}

	result, err := limiter.Allow(ctx, key, 3, now)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if result.Allowed {
		t.Fatal("fourth request in the same second should be rejected")
	}
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	key := ConsumeKey("user-1")

	if result, _ := limiter.Allow(ctx, key, 1, now); !result.Allowed {
		t.Fatal("first request should be allowed")
	}
	if result, _ := limiter.Allow(ctx, key, 1, now); result.Allowed {
		t.Fatal("second request in the same second should be rejected")
	}
	if result, _ := limiter.Allow(ctx, key, 1, now.Add(time.Second)); !result.Allowed {
		t.Fatal("request in the next second should be allowed")
	}
}

func TestMemoryLimiter_ZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter()
	result, err := limiter.Allow(context.Background(), ConsumeKey("user-1"), 0, time.Now())
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !result.Allowed {
		t.Fatal("zero limit should disable limiting")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	if result, _ := limiter.Allow(ctx, ConsumeKey("user-1"), 1, now); !result.Allowed {
		t.Fatal("user-1 should be allowed")
	}
	if result, _ := limiter.Allow(ctx, ConsumeKey("user-2"), 1, now); !result.Allowed {
		t.Fatal("user-2 must not share user-1's window")
	}
}

func TestManager_FallsBackToMemoryWhenRedisDisabled(t *testing.T) {
	provider := func() Config {
		return Config{ConsumePerSecond: 2}
	}
	now := time.Unix(1700000000, 0)
	manager := NewManager(provider, func() time.Time { return now }, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		result, err := manager.AllowConsume(ctx, "user-1")
		if err != nil {
			t.Fatalf("AllowConsume: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	result, err := manager.AllowConsume(ctx, "user-1")
	if err != nil {
		t.Fatalf("AllowConsume: %v", err)
	}
	if result.Allowed {
		t.Fatal("third request in the same second should be rejected")
	}
}

func TestManager_UnlimitedWhenUnconfigured(t *testing.T) {
	manager := NewManager(nil, nil, nil)
	result, err := manager.AllowConsume(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("AllowConsume: %v", err)
	}
	if !result.Allowed {
		t.Fatal("unconfigured manager should allow everything")
	}
}
