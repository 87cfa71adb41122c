package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PURPOSE_CONFIRM  = "confirm"
	PURPOSE_RECOVERY = "recovery"
)

var ErrLinkTokenNotFound = errors.New("link token not found")

// returns the stored uid and deletes the key so a link works once
var consumeScript = redis.NewScript(`
	local uid = redis.call("GET", KEYS[1])
	if uid then
		redis.call("DEL", KEYS[1])
		return uid
	end
	return false
`)

// LinkTokens stores single-use email link tokens (signup confirmation and
// password recovery) in redis.
type LinkTokens struct {
	RedisCli *redis.Client
}

func linkTokenKey(purpose string, token string) string {
	return "linktoken:" + purpose + ":" + token
}

func NewLinkTokenValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (lt *LinkTokens) IssueLinkToken(ctx context.Context, purpose string, uid string, ttl time.Duration) (string, error) {

	token, err := NewLinkTokenValue()
	if err != nil {
		return "", err
	}

	ok, err := lt.RedisCli.SetNX(ctx, linkTokenKey(purpose, token), uid, ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("link token collision")
	}

	return token, nil

}

func (lt *LinkTokens) ConsumeLinkToken(ctx context.Context, purpose string, token string) (string, error) {

	uid, err := consumeScript.Run(ctx, lt.RedisCli, []string{linkTokenKey(purpose, token)}).Text()
	if errors.Is(err, redis.Nil) {
		return "", ErrLinkTokenNotFound
	} else if err != nil {
		return "", err
	}

	return uid, nil

}
