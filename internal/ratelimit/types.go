package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// Config captures the rate limit configuration snapshot.
type Config struct {
	ConsumePerSecond int    // Max consume requests per user per second; 0 disables.
	RedisEnabled     bool   // Use Redis as the limiter backend when reachable.
	RedisAddr        string // Redis host:port.
	RedisPassword    string // Redis auth password.
	RedisDB          int    // Redis logical database.
	RedisPrefix      string // Key prefix separating this service's counters.
}

// ConfigProvider supplies the latest configuration snapshot.
type ConfigProvider func() Config

// ConsumeKey builds a limiter key scoping consume requests to one user.
func ConsumeKey(userID string) string {
	if userID == "" {
		return ""
	}
	return fmt.Sprintf("consume:u:%s", userID)
}
