package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter is a token bucket shared by every API replica through Redis. It caps
// how many tickets a single requester can open per window.
type Limiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// New returns a limiter allowing limit requests per window and key. The prefix
// namespaces keys so several limiters can share one Redis.
func New(rdb redis.Scripter, limit int, window time.Duration, prefix string) *Limiter {
	if !strings.HasPrefix(prefix, "rl:") {
		prefix = "rl:" + prefix
	}
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

// Allow consumes a token for key if one is available. A limiter without Redis or
// with a non-positive limit allows everything.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return true, nil
	}
	interval := l.window.Milliseconds() / int64(l.limit)
	if interval <= 0 {
		interval = 1
	}
	now := time.Now().UnixMilli()
	res, err := bucket.Run(ctx, l.rdb, []string{l.prefix + key}, l.limit, interval, now).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Middleware rate limits by keyFunc. Redis failures let the request through so an
// outage of the cache never blocks ticket intake.
func (l *Limiter) Middleware(keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), keyFunc(c))
		if err != nil {
			log.Ctx(c.Request.Context()).Warn().Err(err).Msg("rate limit check")
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
			return
		}
		c.Next()
	}
}

// bucket stores remaining tokens and the last refill timestamp in a hash per key.
var bucket = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local data = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = capacity
  ts = now
else
  local add = math.floor((now - ts) / interval)
  if add > 0 then
    tokens = math.min(tokens + add, capacity)
    ts = ts + add * interval
  end
end
local allowed = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', key, 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', key, interval * capacity)
return allowed
`)
