package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count == 0 then
	redis.call("SET", KEYS[1], 1, "PX", window_ms)
	return 1
end
if count >= max then
	return 0
end
redis.call("INCR", KEYS[1])
return 1
`)

// RedisFixedWindow shares the window counters between server instances.
type RedisFixedWindow struct {
	RedisCli *redis.Client
	Max      int
	Window   time.Duration
	Prefix   string
}

func NewRedisFixedWindow(redisCli *redis.Client, max int, window time.Duration) *RedisFixedWindow {
	return &RedisFixedWindow{
		RedisCli: redisCli,
		Max:      max,
		Window:   window,
		Prefix:   "ratelimit:identify:",
	}
}

func (rw *RedisFixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	res, err := fixedWindowScript.Run(ctx, rw.RedisCli, []string{rw.Prefix + key}, rw.Max, rw.Window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
