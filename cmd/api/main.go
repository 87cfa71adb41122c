package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plantcareapi/internal/api"
	"plantcareapi/internal/router"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/locks"
	"plantcareapi/pkg/mail"
	"plantcareapi/pkg/photostore"
	"plantcareapi/pkg/plantid"
	"plantcareapi/pkg/ratelimit"
	"plantcareapi/pkg/store"
	"plantcareapi/pkg/utils"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProd() {
		return zap.NewProduction(zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return zap.NewDevelopment(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// init logger
	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("Server starting...", zap.String("env", cfg.Env))

	if cfg.AppBaseURL == "" {
		logger.Warn("APP_BASE_URL is not set, registration and password recovery will fail")
	}
	if cfg.PlantIdAPIKey == "" {
		logger.Warn("PLANT_ID_API_KEY is not set, plant identification is disabled")
	}

	h := &api.Handler{
		Logger:   logger,
		Validate: utils.NewValidator(),
		Config:   cfg,
	}

	// init mongo
	mongoServerAPI := options.ServerAPI(options.ServerAPIVersion1)
	mongoOpts := options.Client().ApplyURI(cfg.MongoURI).SetServerAPIOptions(mongoServerAPI)
	mongoCli, err := mongo.Connect(mongoOpts)
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer func() {
		if err := mongoCli.Disconnect(context.Background()); err != nil {
			logger.Error("mongo disconnect", zap.Error(err))
		}
	}()
	if err := mongoCli.Ping(ctx, readpref.Primary()); err != nil {
		logger.Fatal("mongo ping", zap.Error(err))
	}
	db := mongoCli.Database(cfg.MongoDB)
	if err := store.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("mongo indexes", zap.Error(err))
	}
	h.Users = store.NewUsers(db)
	h.Plants = store.NewPlants(db)
	h.Photos = store.NewPhotos(db)

	// init redis
	redisCli := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisCli.Close()
	h.Tokens = &utils.LinkTokens{RedisCli: redisCli}

	// init photo bucket
	h.Blobs = photostore.New(photostore.Options{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
	})

	// init mail, queued through redis in prod so cmd/mailer can respect the SES quota
	if cfg.IsProd() {
		h.Mailer = &mail.Queue{RedisCli: redisCli}
	} else {
		sesCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SESRegion))
		if err != nil {
			logger.Fatal("aws config", zap.Error(err))
		}
		h.Mailer = &mail.SES{Cli: ses.NewFromConfig(sesCfg), Sender: cfg.MailSender}
	}

	// init rate limiters and upload locks, shared across instances with redis
	switch cfg.RateLimitBackend {
	case "redis":
		h.Limiter = ratelimit.NewRedisFixedWindow(redisCli, config.RATE_LIMIT_MAX, config.RATE_LIMIT_WINDOW)
		h.UploadLocks = locks.NewRedis(redisCli)
	default:
		h.Limiter = ratelimit.NewFixedWindow(config.RATE_LIMIT_MAX, config.RATE_LIMIT_WINDOW)
		h.UploadLocks = locks.NewMemory()
	}
	h.LoginLimiter = api.NewIPLimiter(config.LOGIN_RATE_PER_SEC, config.LOGIN_RATE_BURST)
	h.LoginLimiter.TrustedProxies, err = api.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		logger.Fatal("trusted proxies", zap.Error(err))
	}

	// init classifier
	h.Classifier = plantid.NewClient(&http.Client{Timeout: 30 * time.Second}, cfg.PlantIdAPIKey, cfg.PlantIdAPIURL)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server running on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}

}
