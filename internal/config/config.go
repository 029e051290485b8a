package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppCfg struct{ Env, Port string }
type DBCfg struct{ DSN string }
type RedisCfg struct{ Addr string }

type DarajaCfg struct {
	Shortcode       string
	ConsumerKey     string
	ConsumerSecret  string
	Passkey         string
	Environment     string // sandbox | production
	CallbackBaseURL string
}

// ConfirmCfg holds the confirmation-flow tunables. These are deliberate
// configuration, not constants: MaxPollAttempts * PollInterval is the
// hard ceiling on how long a checkout waits, and the UI surfaces it.
type ConfirmCfg struct {
	PollInterval               time.Duration
	MaxPollAttempts            int
	RateLimitBackoffMultiplier float64
	RateLimitRetryCeiling      int
	TransientRetryCeiling      int
	GraceDelay                 time.Duration
	MinAmount                  int
	MaxAmount                  int
}

type DeliveryCfg struct{ URL string }

type SecurityCfg struct {
	AdminToken string // guards the audit/export APIs
}

type Cfg struct {
	App      AppCfg
	DB       DBCfg
	Redis    RedisCfg
	Daraja   DarajaCfg
	Confirm  ConfirmCfg
	Delivery DeliveryCfg
	Sec      SecurityCfg
}

func Load() Cfg {
	// 1) Load .env into process env (if file exists)
	_ = godotenv.Load()

	// 2) Read from env via viper
	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", "sandbox")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ADMIN_TOKEN", "")
	viper.SetDefault("DARAJA_ENV", "sandbox")
	viper.SetDefault("POLL_INTERVAL", "4s")
	viper.SetDefault("MAX_POLL_ATTEMPTS", 15)
	viper.SetDefault("RATE_LIMIT_BACKOFF_MULTIPLIER", 3.0)
	viper.SetDefault("RATE_LIMIT_RETRY_CEILING", 5)
	viper.SetDefault("TRANSIENT_RETRY_CEILING", 5)
	viper.SetDefault("GRACE_DELAY", "5s")
	viper.SetDefault("MIN_AMOUNT", 1)
	viper.SetDefault("MAX_AMOUNT", 70000)

	cfg := Cfg{
		App: AppCfg{
			Env:  viper.GetString("APP_ENV"),
			Port: viper.GetString("APP_PORT"),
		},
		DB:    DBCfg{DSN: viper.GetString("DB_DSN")},
		Redis: RedisCfg{Addr: viper.GetString("REDIS_ADDR")},
		Daraja: DarajaCfg{
			Shortcode:       viper.GetString("DARAJA_SHORTCODE"),
			ConsumerKey:     viper.GetString("DARAJA_CONSUMER_KEY"),
			ConsumerSecret:  viper.GetString("DARAJA_CONSUMER_SECRET"),
			Passkey:         viper.GetString("DARAJA_PASSKEY"),
			Environment:     viper.GetString("DARAJA_ENV"),
			CallbackBaseURL: viper.GetString("CALLBACK_BASE_URL"),
		},
		Confirm: ConfirmCfg{
			PollInterval:               viper.GetDuration("POLL_INTERVAL"),
			MaxPollAttempts:            viper.GetInt("MAX_POLL_ATTEMPTS"),
			RateLimitBackoffMultiplier: viper.GetFloat64("RATE_LIMIT_BACKOFF_MULTIPLIER"),
			RateLimitRetryCeiling:      viper.GetInt("RATE_LIMIT_RETRY_CEILING"),
			TransientRetryCeiling:      viper.GetInt("TRANSIENT_RETRY_CEILING"),
			GraceDelay:                 viper.GetDuration("GRACE_DELAY"),
			MinAmount:                  viper.GetInt("MIN_AMOUNT"),
			MaxAmount:                  viper.GetInt("MAX_AMOUNT"),
		},
		Delivery: DeliveryCfg{URL: viper.GetString("DELIVERY_URL")},
		Sec: SecurityCfg{
			AdminToken: strings.TrimSpace(viper.GetString("ADMIN_TOKEN")),
		},
	}

	// 3) Fail fast on required settings
	if cfg.DB.DSN == "" {
		log.Fatal().Msg("DB_DSN is required")
	}
	if cfg.Daraja.Shortcode == "" || cfg.Daraja.ConsumerKey == "" || cfg.Daraja.ConsumerSecret == "" || cfg.Daraja.Passkey == "" {
		log.Fatal().Msg("DARAJA_SHORTCODE, DARAJA_CONSUMER_KEY, DARAJA_CONSUMER_SECRET and DARAJA_PASSKEY are required")
	}
	if cfg.Delivery.URL == "" {
		log.Fatal().Msg("DELIVERY_URL is required")
	}
	if cfg.Confirm.PollInterval <= 0 || cfg.Confirm.MaxPollAttempts <= 0 {
		log.Fatal().Msg("POLL_INTERVAL and MAX_POLL_ATTEMPTS must be positive")
	}

	return cfg
}
