package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	QUEUE_KEY  = "mailq"
	FAILED_KEY = "failed_emails"
)

// Queue defers delivery to the mailer worker.
type Queue struct {
	RedisCli *redis.Client
}

func (q *Queue) Send(ctx context.Context, msg *Message) error {

	if _, ok := subjects[msg.Kind]; !ok {
		return fmt.Errorf("unknown mail kind %q", msg.Kind)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return q.RedisCli.LPush(ctx, QUEUE_KEY, data).Err()

}

// Pop takes up to n messages, oldest first. An empty queue returns no error.
func (q *Queue) Pop(ctx context.Context, n int) ([]*Message, error) {

	raw, err := q.RedisCli.RPopCount(ctx, QUEUE_KEY, n).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	msgs := make([]*Message, 0, len(raw))
	for _, r := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(r), &msg); err != nil {
			q.RedisCli.RPush(ctx, FAILED_KEY, r)
			continue
		}
		msgs = append(msgs, &msg)
	}

	return msgs, nil

}

func (q *Queue) PushFailed(ctx context.Context, msg *Message, cause error) error {

	data, err := json.Marshal(&struct {
		*Message
		Error string `json:"err"`
	}{Message: msg, Error: cause.Error()})
	if err != nil {
		return err
	}

	return q.RedisCli.RPush(ctx, FAILED_KEY, data).Err()

}

func (q *Queue) SendConfirmation(ctx context.Context, to string, link string) error {
	return sendConfirmation(q, ctx, to, link)
}

func (q *Queue) SendPasswordReset(ctx context.Context, to string, link string) error {
	return sendPasswordReset(q, ctx, to, link)
}
