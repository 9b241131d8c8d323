// Package config loads the service's runtime configuration from the
// environment once at startup.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the complete set of tunables for the service, plus the
// connection strings its external collaborators need.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	S3Endpoint   string `env:"S3_ENDPOINT"`
	S3Bucket     string `env:"S3_BUCKET,required"`
	S3Region     string `env:"S3_REGION" envDefault:"us-east-1"`
	S3PathStyle  bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@icct.example"`
	MailTo       string `env:"MAIL_TO"`

	TeamIDPrefix      string        `env:"TEAM_ID_PREFIX" envDefault:"ICCT"`
	MaxTeamsPerChurch int           `env:"MAX_TEAMS_PER_CHURCH" envDefault:"2"`
	MinPlayers        int           `env:"MIN_PLAYERS" envDefault:"11"`
	MaxPlayers        int           `env:"MAX_PLAYERS" envDefault:"15"`
	MaxFileBytes      int64         `env:"MAX_FILE_BYTES" envDefault:"5242880"`
	UploadConcurrency int           `env:"UPLOAD_CONCURRENCY" envDefault:"5"`

	RetryUploadMaxAttempts   int `env:"RETRY_UPLOAD_MAX_ATTEMPTS" envDefault:"3"`
	RetryMailMaxAttempts     int `env:"RETRY_MAIL_MAX_ATTEMPTS" envDefault:"5"`
	RetryDBInsertMaxAttempts int `env:"RETRY_DB_INSERT_MAX_ATTEMPTS" envDefault:"5"`

	CircuitThresholdFailures uint32        `env:"CIRCUIT_THRESHOLD_FAILURES" envDefault:"5"`
	CircuitCoolOff           time.Duration `env:"CIRCUIT_COOL_OFF" envDefault:"30s"`

	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	NotificationQueueCapacity int `env:"NOTIFICATION_QUEUE_CAPACITY" envDefault:"256"`
	NotificationWorkers       int `env:"NOTIFICATION_WORKERS" envDefault:"4"`

	EndToEndDeadline    time.Duration `env:"END_TO_END_DEADLINE" envDefault:"60s"`
	DecodeTimeout       time.Duration `env:"DECODE_TIMEOUT" envDefault:"2s"`
	DBStatementTimeout  time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"10s"`
	UploadAttemptTimeout time.Duration `env:"UPLOAD_ATTEMPT_TIMEOUT" envDefault:"15s"`
	MailAttemptTimeout   time.Duration `env:"MAIL_ATTEMPT_TIMEOUT" envDefault:"10s"`
}

// Load reads a .env file if present (local development convenience; absence
// is not an error) and then parses the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
