// Package ratelimit 提供进程内令牌桶限流
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket 令牌桶限流器，可并发使用
type TokenBucket struct {
	rate           float64 // 每秒生成的令牌数
	capacity       float64
	tokens         float64
	lastRefillTime time.Time
	mutex          sync.Mutex

	now func() time.Time
}

// NewTokenBucket 按每分钟请求数创建限流器，burst<=0 时取 perMinute 的一半(至少1)
// perMinute<=0 返回 nil，表示不限流
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perMinute / 2
		if burst <= 0 {
			burst = 1
		}
	}
	tb := &TokenBucket{
		rate:     float64(perMinute) / 60.0,
		capacity: float64(burst),
		tokens:   float64(burst), // 初始填满
		now:      time.Now,
	}
	tb.lastRefillTime = tb.now()
	return tb
}

// refill 按经过的时间补充令牌，不超过容量
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.lastRefillTime = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// Allow 尝试消耗一个令牌；nil 限流器总是放行
func (tb *TokenBucket) Allow() bool {
	if tb == nil {
		return true
	}
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// RetryAfter 距离下一个令牌可用的时间
func (tb *TokenBucket) RetryAfter() time.Duration {
	if tb == nil {
		return 0
	}
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill()
	if tb.tokens >= 1.0 {
		return 0
	}
	return time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
}
