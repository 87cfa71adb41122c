// Command mailer drains the redis mail queue into SES while staying under the
// account's send rate and daily quota.
package main

import (
	"context"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plantcareapi/pkg/config"
	"plantcareapi/pkg/mail"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DEFAULT_RATE_LIMIT       = 1 // until the quota is known
	DAY_LIMIT_WARN_THRESHOLD = 2000
	QUOTA_CHECK_INTERVAL     = 10 * time.Minute
	IDLE_SLEEP               = 10 * time.Second
)

type queue interface {
	Pop(ctx context.Context, n int) ([]*mail.Message, error)
	PushFailed(ctx context.Context, msg *mail.Message, cause error) error
}

type sender interface {
	Send(ctx context.Context, msg *mail.Message) error
}

// dispatch sends one batch and returns how many messages were taken off the queue.
func dispatch(ctx context.Context, logger *zap.Logger, q queue, s sender, batch int) (int, error) {

	msgs, err := q.Pop(ctx, batch)
	if err != nil {
		return 0, err
	}

	for _, msg := range msgs {
		if err := s.Send(ctx, msg); err != nil {
			logger.Warn("email failed", zap.Error(err), zap.String("kind", msg.Kind))
			// keep track of failed email
			if err := q.PushFailed(ctx, msg, err); err != nil {
				logger.Error("couldn't push to failed email list", zap.Error(err))
			}
		}
	}

	return len(msgs), nil

}

// budget reads the SES quota: mails per second, and mails left for the day.
func budget(quota *ses.GetSendQuotaOutput) (rate int, remaining int) {
	rate = max(1, int(math.Floor(quota.MaxSendRate)))
	remaining = max(0, int(math.Floor(quota.Max24HourSend-quota.SentLast24Hours)))
	return rate, remaining
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := zap.NewDevelopment(zap.AddCaller())
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisCli.Close()

	sesCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
	if err != nil {
		logger.Fatal("aws config", zap.Error(err))
	}
	sesCli := ses.NewFromConfig(sesCfg)

	q := &mail.Queue{RedisCli: redisCli}
	s := &mail.SES{Cli: sesCli, Sender: cfg.MailSender}

	lastQuotaCheck := time.Time{}
	rateLimit := DEFAULT_RATE_LIMIT
	dailyRemaining := math.MaxInt

	logger.Info("Starting email dispatcher")

	for ctx.Err() == nil {
		// check for daily quota usage
		if time.Since(lastQuotaCheck) > QUOTA_CHECK_INTERVAL {
			quota, err := sesCli.GetSendQuota(ctx, &ses.GetSendQuotaInput{})
			if err != nil {
				logger.Warn("GetSendQuota", zap.Error(err))
				sleep(ctx, 10*time.Second)
			} else {
				rateLimit, dailyRemaining = budget(quota)
				if dailyRemaining < DAY_LIMIT_WARN_THRESHOLD {
					logger.Warn("daily quota almost used", zap.Int("remaining", dailyRemaining))
				}
			}
			lastQuotaCheck = time.Now()
		}

		batch := min(rateLimit, dailyRemaining)
		if batch == 0 {
			// nothing left today, wait for the next quota check
			sleep(ctx, QUOTA_CHECK_INTERVAL)
			continue
		}

		start := time.Now()

		n, err := dispatch(ctx, logger, q, s, batch)
		if err != nil {
			logger.Error("redis pop", zap.Error(err))
			sleep(ctx, time.Minute)
			continue
		}
		if n == 0 {
			sleep(ctx, IDLE_SLEEP)
			continue
		}
		if dailyRemaining != math.MaxInt {
			dailyRemaining -= n
		}

		// avoid ses rate limit
		if remaining := time.Second - time.Since(start); remaining > 0 {
			sleep(ctx, remaining)
		}
	}

	logger.Info("email dispatcher stopped")

}
