package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// const dsn = "host=localhost user=postgres password=password dbname=eventixdb port=5432 sslmode=disable TimeZone=Asia/Jakarta"

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"
const DATE_FORMAT = "2006-01-02"

var API_ENV = os.Getenv("API_ENV")

type Config struct {
	// Server
	Env       string
	Port      string
	AppHost   string
	JWTSecret string
	QRSecret  string

	// Storage
	StoreDriver   string
	AtomicTimeout time.Duration

	// Transaction lifecycle
	PaymentWindow       time.Duration
	StaleAfter          time.Duration
	ExpirySweepInterval time.Duration
	StaleSweepInterval  time.Duration
	ReleaseHoldOnExpiry bool

	// Uploads
	StorageDriver   string
	UploadDir       string
	AssetsBucket    string
	PublicBaseURL   string
	UploadsBaseURL  string
	MaxProofSizeMiB int

	// AWS
	AWSRoleArn  string
	SNSTopicArn string

	// Mail
	MailDriver   string
	MailFrom     string
	MailFromName string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailQueue   string

	// Lifecycle events
	EventsDriver string
	KafkaBroker  string
	EventsQueue  string

	// Redis
	RedisHost string

	// Logging and monitoring
	LogFile        string
	MetricsEnabled bool
}

func LoadConfig() *Config {
	return &Config{
		Env:       getEnv("API_ENV", "local"),
		Port:      getEnv("PORT", "9090"),
		AppHost:   getEnv("APP_HOST", "http://localhost:3000"),
		JWTSecret: getEnv("JWT_SECRET", ""),
		QRSecret:  getEnv("API_QRC_SECRET", getEnv("JWT_SECRET", "")),

		StoreDriver:   getEnv("STORE_DRIVER", "postgres"),
		AtomicTimeout: getEnvAsDuration("ATOMIC_TIMEOUT", "10s"),

		PaymentWindow:       getEnvAsDuration("PAYMENT_WINDOW", "2h"),
		StaleAfter:          getEnvAsDuration("STALE_AFTER", "72h"),
		ExpirySweepInterval: getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", "5m"),
		StaleSweepInterval:  getEnvAsDuration("STALE_SWEEP_INTERVAL", "3h"),
		ReleaseHoldOnExpiry: getEnvAsBool("RELEASE_HOLD_ON_EXPIRY", true),

		StorageDriver:   getEnv("STORAGE_DRIVER", "local"),
		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		AssetsBucket:    getEnv("S3_ASSETS_BUCKET", ""),
		PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
		UploadsBaseURL:  getEnv("UPLOADS_BASE_URL", "http://localhost:9090/uploads"),
		MaxProofSizeMiB: getEnvAsInt("MAX_PROOF_SIZE_MIB", 5),

		AWSRoleArn:  getEnv("AWS_IAM_ROLE_ARN", ""),
		SNSTopicArn: getEnv("SNS_TOPIC_ARN", ""),

		MailDriver:   getEnv("MAIL_DRIVER", "log"),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@eventix.local"),
		MailFromName: getEnv("MAIL_FROM_NAME", "Eventix"),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		EmailQueue:   getEnv("EMAIL_QUEUE", "emails"),

		EventsDriver: getEnv("EVENTS_DRIVER", "log"),
		KafkaBroker:  getEnv("KAFKA_BROKER", ""),
		EventsQueue:  getEnv("EVENTS_QUEUE", "transaction-events"),

		RedisHost: getEnv("REDIS_HOST", ""),

		LogFile:        getEnv("LOG_FILE", ""),
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}
}

func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

// Validate rejects settings that are only tolerable on a developer machine.
func (c *Config) Validate() error {
	if c.IsLocal() {
		return nil
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set outside the local environment")
	}
	if c.QRSecret == "" {
		return errors.New("API_QRC_SECRET must be set outside the local environment")
	}
	return nil
}

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := getEnv("DATABASE_SSLMODE", "disable")
	DATABASE_TIMEZONE := getEnv("DATABASE_TIMEZONE", "UTC")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	value, _ := time.ParseDuration(defaultValue)
	return value
}
