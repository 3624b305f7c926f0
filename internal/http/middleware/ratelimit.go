package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/auth"
	"github.com/Hackoholiq/Short-Term-Loan-Platform/internal/domain/audit"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows roughly n requests per window for each client IP.
// The full allowance is available as a burst and refills evenly.
type RateLimiter struct {
	name    string
	every   rate.Limit
	burst   int
	window  time.Duration
	message string

	recorder  *audit.Recorder
	onLimited func(name string)
	now       func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

func NewRateLimiter(name string, n int, window time.Duration, message string) *RateLimiter {
	if n <= 0 {
		n = 1
	}
	return &RateLimiter{
		name:      name,
		every:     rate.Every(window / time.Duration(n)),
		burst:     n,
		window:    window,
		message:   message,
		onLimited: func(string) {},
		now:       time.Now,
		visitors:  map[string]*visitor{},
	}
}

// WithAudit records every rejection through recorder and reports it to
// onLimited.
func (l *RateLimiter) WithAudit(recorder *audit.Recorder, onLimited func(name string)) *RateLimiter {
	l.recorder = recorder
	if onLimited != nil {
		l.onLimited = onLimited
	}
	return l
}

func (l *RateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > l.window {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.window {
				delete(l.visitors, k)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := auth.ClientIP(c.Request)
		if l.allow(ip) {
			c.Next()
			return
		}

		l.onLimited(l.name)
		l.recorder.Failure(c.Request.Context(), audit.Entry{
			Actor:       Actor(c),
			Action:      audit.ActionRateLimited,
			TargetType:  "RateLimit",
			TargetLabel: l.name,
			Metadata:    map[string]any{"path": c.Request.URL.Path, "method": c.Request.Method},
		}, "rate_limited")

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": l.message})
	}
}
