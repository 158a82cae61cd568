// Package ratelimit 提供基于滑动窗口日志的请求准入控制。
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMaxRequests 是窗口内允许的默认请求数。
	DefaultMaxRequests = 10
	// DefaultWindow 是默认的窗口长度。
	DefaultWindow = time.Minute
)

// Clock 抽象当前时间，便于在测试中控制。
type Clock interface {
	Now() time.Time
}

// ClockFunc 将普通函数适配为 Clock。
type ClockFunc func() time.Time

// Now 实现 Clock。
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock 返回系统时间。
var SystemClock Clock = ClockFunc(time.Now)

// Limiter 记录窗口内的请求时间戳并给出准入判断。
// 它不做重试也不做退避，拒绝即为最终结果。
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	clock       Clock
	timestamps  []time.Time
}

// New 创建一个 Limiter。非正数的参数回退到默认值，clock 为 nil 时使用系统时间。
func New(maxRequests int, window time.Duration, clock Clock) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		clock:       clock,
	}
}

// MaxRequests 返回窗口内允许的请求数。
func (l *Limiter) MaxRequests() int { return l.maxRequests }

// Window 返回窗口长度。
func (l *Limiter) Window() time.Duration { return l.window }

// CanMakeRequest 报告当前窗口内的请求数是否少于上限。不修改状态。
func (l *Limiter) CanMakeRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inWindow(l.clock.Now())) < l.maxRequests
}

// RecordRequest 记录一次已准入的请求。必须在发出调用之前调用，
// 这样仍在进行中的慢调用也会占用窗口配额。
func (l *Limiter) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	l.timestamps = append(l.inWindow(now), now)
}

// ResetTime 返回窗口内最早一条记录过期的时刻；窗口为空时返回当前时间。
func (l *Limiter) ResetTime() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	live := l.inWindow(now)
	if len(live) == 0 {
		return now
	}
	return live[0].Add(l.window)
}

// inWindow 返回仍在 (now-window, now] 内的时间戳，调用方必须持有锁。
// 时间戳按记录顺序追加，所以只需找到第一个未过期的位置。
func (l *Limiter) inWindow(now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	return l.timestamps[i:]
}
