// Package locks provides short-lived exclusive locks keyed by string, used to
// serialize photo uploads per plant.
package locks

import (
	"context"
	"errors"
	"sync"
	"time"

	"plantcareapi/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var ErrLocked = errors.New("resource is locked")

type Locker interface {
	// Acquire returns ErrLocked when someone else holds key. The lock expires
	// after ttl even if release is never called.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis shares locks between server instances.
type Redis struct {
	RedisCli *redis.Client
	Prefix   string
}

func NewRedis(redisCli *redis.Client) *Redis {
	return &Redis{RedisCli: redisCli, Prefix: "lock:"}
}

func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {

	owner, err := utils.NewLinkTokenValue()
	if err != nil {
		return nil, err
	}

	k := l.Prefix + key
	ok, err := l.RedisCli.SetNX(ctx, k, owner, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		// only the owner may unlock, the key may have expired and been retaken
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		unlockScript.Run(ctx, l.RedisCli, []string{k}, owner)
	}, nil

}

// Memory keeps locks in process memory.
type Memory struct {
	Now func() time.Time

	mu     sync.Mutex
	held   map[string]memoryLock
	nextId uint64
}

type memoryLock struct {
	id        uint64
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{Now: time.Now, held: make(map[string]memoryLock)}
}

func (l *Memory) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.Now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiresAt) {
		return nil, ErrLocked
	}

	l.nextId++
	id := l.nextId
	l.held[key] = memoryLock{id: id, expiresAt: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.id == id {
			delete(l.held, key)
		}
	}, nil

}
