package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	MONGO_DB     = "PlantCareDev"
	PHOTO_BUCKET = "plant-photos"
	MAIL_SENDER  = "no-reply@plantcare.app"

	RATE_LIMIT_MAX    = 10
	RATE_LIMIT_WINDOW = 60 * time.Second

	LOGIN_RATE_PER_SEC = 1
	LOGIN_RATE_BURST   = 10

	IDENTIFY_TIMEOUT         = 10 * time.Second
	IDENTIFY_MAX_UPLOAD      = 2 << 20
	IDENTIFY_MAX_SUGGESTIONS = 3
	IDENTIFY_MIN_CONFIDENCE  = 10
	PLANT_ID_API_URL         = "https://plant.id/api/v3/identification"

	MAX_PHOTOS_PER_PLANT = 5
	PHOTO_MAX_SIZE       = 5 << 20
	SIGNED_URL_TTL       = time.Hour
	PLANT_LIST_LIMIT     = 200
	UPLOAD_LOCK_TTL      = 30 * time.Second

	SESSION_COOKIE     = "plantcare_session"
	SESSION_DURATION   = 7 * 24 * time.Hour
	SESSION_REFRESH    = 24 * time.Hour
	CONFIRM_TOKEN_TTL  = 24 * time.Hour
	RECOVERY_TOKEN_TTL = time.Hour
	RESET_MIN_DURATION = 200 * time.Millisecond

	DEFAULT_REDIRECT = "/dashboard"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

type Config struct {
	Env               string
	Port              string
	AppBaseURL        string
	PlantIdAPIKey     string
	PlantIdAPIURL     string
	JWTSecret         string
	MongoURI          string
	MongoDB           string
	RedisAddr         string
	RedisUsername     string
	RedisPassword     string
	S3Endpoint        string
	S3AccessKey       string
	S3SecretKey       string
	S3Region          string
	S3Bucket          string
	SESRegion         string
	MailSender        string
	RateLimitBackend  string
	EmailConfirmation bool
	CookieSecure      bool
	WebDir            string
	TrustedProxies    []string
}

// Load reads a .env file outside of production (a missing file is fine) and
// builds the config from the environment.
func Load() (*Config, error) {

	if os.Getenv("ENV") != "prod" {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Env:               getenv("ENV", "dev"),
		Port:              getenv("PORT", "8080"),
		AppBaseURL:        os.Getenv("APP_BASE_URL"),
		PlantIdAPIKey:     os.Getenv("PLANT_ID_API_KEY"),
		PlantIdAPIURL:     getenv("PLANT_ID_API_URL", PLANT_ID_API_URL),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		MongoURI:          getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:           getenv("MONGO_DB", MONGO_DB),
		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		RedisUsername:     os.Getenv("REDIS_USERNAME"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKey:       os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:       os.Getenv("S3_SECRET_KEY"),
		S3Region:          getenv("S3_REGION", "auto"),
		S3Bucket:          getenv("S3_BUCKET", PHOTO_BUCKET),
		SESRegion:         getenv("SES_REGION", "eu-central-1"),
		MailSender:        getenv("MAIL_SENDER", MAIL_SENDER),
		RateLimitBackend:  getenv("RATE_LIMIT_BACKEND", "memory"),
		EmailConfirmation: getbool("EMAIL_CONFIRMATION", true),
		CookieSecure:      getbool("COOKIE_SECURE", os.Getenv("ENV") == "prod"),
		WebDir:            os.Getenv("WEB_DIR"),
		TrustedProxies:    getlist("TRUSTED_PROXIES"),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	return cfg, nil

}

func (cfg *Config) IsProd() bool {
	return cfg.Env == "prod"
}

func getenv(key string, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getlist(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getbool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
