package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"clover"`
	Port                          int      `env:"PORT" env-default:"3000"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// Database
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Admin API authentication
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`
	AuthAdminRole string `env:"AUTH_ADMIN_ROLE" env-default:""`

	// Redis
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Redis Streams job queue
	RedisStreamsJobQueue      string `env:"REDIS_STREAMS_JOB_QUEUE" env-default:"clover:jobs"`
	RedisStreamsConsumerGroup string `env:"REDIS_STREAMS_CONSUMER_GROUP" env-default:"clover-workers"`
	// defaults to the hostname
	RedisStreamsConsumerName string `env:"REDIS_STREAMS_CONSUMER_NAME" env-default:""`
	RedisStreamsWorkerCount  int    `env:"REDIS_STREAMS_WORKER_COUNT" env-default:"4"`
	RedisStreamsDLQ          string `env:"REDIS_STREAMS_DLQ" env-default:"clover:dlq"`

	// Kafka
	KafkaBrokers     string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaEventsTopic string `env:"KAFKA_EVENTS_TOPIC" env-default:"clover.events"`

	// Own identity
	OwnBpnl string `env:"OWN_BPNL" env-required:"true"`
	OwnName string `env:"OWN_NAME" env-default:""`
	// Public base URL of this service, used for EDR callbacks and ERP response URLs
	ServerURL string `env:"SERVER_URL" env-required:"true"`

	// Own connector management API
	EdcManagementURL        string        `env:"EDC_MANAGEMENT_URL" env-required:"true"`
	EdcAPIKey               string        `env:"EDC_API_KEY" env-default:""`
	EdcProtocol             string        `env:"EDC_PROTOCOL" env-default:"dataspace-protocol-http"`
	NegotiationPollInterval time.Duration `env:"NEGOTIATION_POLL_INTERVAL" env-default:"1s"`
	NegotiationTimeout      time.Duration `env:"NEGOTIATION_TIMEOUT" env-default:"30s"`
	TransferTimeout         time.Duration `env:"TRANSFER_TIMEOUT" env-default:"30s"`
	EdrTokenTTL             time.Duration `env:"EDR_TOKEN_TTL" env-default:"5m"`

	// Usage policy required from partner offers
	PolicyProfile            string `env:"POLICY_PROFILE" env-default:"profile2405"`
	PolicyFrameworkAgreement string `env:"POLICY_FRAMEWORK_AGREEMENT" env-default:"DataExchangeGovernance:1.0"`
	PolicyUsagePurpose       string `env:"POLICY_USAGE_PURPOSE" env-default:"cx.puris.base:1"`

	// ERP adapter
	ErpAdapterEnabled           bool          `env:"ERP_ADAPTER_ENABLED" env-default:"false"`
	ErpAdapterURL               string        `env:"ERP_ADAPTER_URL" env-default:""`
	ErpAdapterAuthKey           string        `env:"ERP_ADAPTER_AUTH_KEY" env-default:"x-api-key"`
	ErpAdapterAuthSecret        string        `env:"ERP_ADAPTER_AUTH_SECRET" env-default:""`
	ErpAdapterRefreshInterval   time.Duration `env:"ERP_ADAPTER_REFRESH_INTERVAL" env-default:"3h"`
	ErpAdapterStaleTimeLimit    time.Duration `env:"ERP_ADAPTER_STALE_TIME_LIMIT" env-default:"48h"`
	ErpAdapterSchedulerInterval time.Duration `env:"ERP_ADAPTER_SCHEDULER_INTERVAL" env-default:"1m"`
	ErpAdapterSammVersion       string        `env:"ERP_ADAPTER_SAMM_VERSION" env-default:"2.0"`

	// Reconciliation
	ReconcileTimeout          time.Duration `env:"RECONCILE_TIMEOUT" env-default:"2m"`
	ReconcileLockTTL          time.Duration `env:"RECONCILE_LOCK_TTL" env-default:"3m"`
	ReconcileOnPartnerRequest bool          `env:"RECONCILE_ON_PARTNER_REQUEST" env-default:"true"`

	// Partner request rate limit
	PartnerRateLimit  int64         `env:"PARTNER_RATE_LIMIT" env-default:"120"`
	PartnerRateWindow time.Duration `env:"PARTNER_RATE_WINDOW" env-default:"1m"`

	// Tracing
	OTLPEnabled  bool   `env:"OTLP_ENABLED" env-default:"false"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ErpAdapterEnabled && c.ErpAdapterURL == "" {
		return fmt.Errorf("ERP_ADAPTER_URL is required when ERP_ADAPTER_ENABLED is true")
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return fmt.Errorf("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is true")
	}
	if c.PolicyProfile != "profile2405" && c.PolicyProfile != "profile2509" {
		return fmt.Errorf("unknown POLICY_PROFILE %q", c.PolicyProfile)
	}
	if c.ErpAdapterRefreshInterval <= 0 || c.ErpAdapterStaleTimeLimit <= 0 || c.ErpAdapterSchedulerInterval <= 0 {
		return fmt.Errorf("ERP adapter intervals must be positive")
	}
	if c.ReconcileLockTTL <= c.ReconcileTimeout {
		return fmt.Errorf("RECONCILE_LOCK_TTL (%s) must be longer than RECONCILE_TIMEOUT (%s)", c.ReconcileLockTTL, c.ReconcileTimeout)
	}
	return nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}
