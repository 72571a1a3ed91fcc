// Package ratelimit 按邮箱限制密码重置请求次数。
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// 默认每个邮箱每小时最多 5 次。
const (
	DefaultLimit  = 5
	DefaultWindow = time.Hour
)

// Store 记录一次尝试并返回窗口内的累计次数与窗口剩余时间。
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetIn time.Duration, err error)
}

// Decision 限流结果。
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter 固定窗口限流，窗口从首次尝试开始计算。
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
}

// NewLimiter 创建限流器，limit 或 window 非正时使用默认值。
func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{store: store, limit: limit, window: window}
}

// Allow 记录一次尝试并判断是否放行。
func (l *Limiter) Allow(ctx context.Context, email string) (Decision, error) {
	key := NormalizeKey(email)
	if key == "" {
		return Decision{}, fmt.Errorf("rate limit key is empty")
	}
	count, resetIn, err := l.store.Hit(ctx, key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("record attempt: %w", err)
	}
	if count > l.limit {
		return Decision{Allowed: false, RetryAfter: resetIn}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - count}, nil
}

// NormalizeKey 统一邮箱大小写与空白。
func NormalizeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
