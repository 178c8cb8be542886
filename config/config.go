// Package config loads service configuration from config.yaml and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	Environment string
	HTTPServer  HTTPServerConfig
	Logger      LoggerConfig
	Postgres    PostgresConfig
	Storage     StorageConfig
	Catalog     CatalogConfig
	SMTP        SMTPConfig
	AMQP        AMQPConfig
	Outbox      OutboxConfig
	Schedule    ScheduleConfig
}

type HTTPServerConfig struct {
	Addr string
}

type LoggerConfig struct {
	Level string
}

type PostgresConfig struct {
	PrimaryDSN     string `validate:"required"`
	ReplicaDSN     string
	DatabaseName   string
	MigrationsPath string
	MaxOpenConns   int
	MaxIdleConns   int
}

// StorageConfig points at the physical storage system's HTTP API.
type StorageConfig struct {
	BaseURL string `validate:"required,url"`
	APIKey  string
}

// CatalogConfig points at the catalog notification gateway.
type CatalogConfig struct {
	BaseURL string `validate:"required,url"`
}

type SMTPConfig struct {
	Addr     string `validate:"required,hostname_port"`
	From     string `validate:"required"`
	Username string
	Password string
	Host     string
}

type AMQPConfig struct {
	URI      string `validate:"required"`
	Exchange string
}

// OutboxConfig tunes the drain processors.
type OutboxConfig struct {
	BatchSize          int
	DispatchTimeout    time.Duration
	PublishMaxAttempts int
	PublishBackoff     time.Duration
	MaxRecordAttempts  int
}

// ScheduleConfig holds one cron expression per processor category.
type ScheduleConfig struct {
	Catalog    string
	Storage    string
	Email      string
	Statistics string
}

// Load reads config.yaml (searched in ./config and .) and the environment,
// with environment variables taking precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Environment: v.GetString("environment"),
		HTTPServer: HTTPServerConfig{
			Addr: v.GetString("http.addr"),
		},
		Logger: LoggerConfig{
			Level: v.GetString("logger.level"),
		},
		Postgres: PostgresConfig{
			PrimaryDSN:     v.GetString("postgres.primary_dsn"),
			ReplicaDSN:     v.GetString("postgres.replica_dsn"),
			DatabaseName:   v.GetString("postgres.database"),
			MigrationsPath: v.GetString("postgres.migrations_path"),
			MaxOpenConns:   v.GetInt("postgres.max_open_conns"),
			MaxIdleConns:   v.GetInt("postgres.max_idle_conns"),
		},
		Storage: StorageConfig{
			BaseURL: v.GetString("storage.base_url"),
			APIKey:  v.GetString("storage.api_key"),
		},
		Catalog: CatalogConfig{
			BaseURL: v.GetString("catalog.base_url"),
		},
		SMTP: SMTPConfig{
			Addr:     v.GetString("smtp.addr"),
			From:     v.GetString("smtp.from"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			Host:     v.GetString("smtp.host"),
		},
		AMQP: AMQPConfig{
			URI:      v.GetString("amqp.uri"),
			Exchange: v.GetString("amqp.exchange"),
		},
		Outbox: OutboxConfig{
			BatchSize:          v.GetInt("outbox.batch_size"),
			DispatchTimeout:    v.GetDuration("outbox.dispatch_timeout"),
			PublishMaxAttempts: v.GetInt("outbox.publish_max_attempts"),
			PublishBackoff:     v.GetDuration("outbox.publish_backoff"),
			MaxRecordAttempts:  v.GetInt("outbox.max_record_attempts"),
		},
		Schedule: ScheduleConfig{
			Catalog:    v.GetString("schedule.catalog"),
			Storage:    v.GetString("schedule.storage"),
			Email:      v.GetString("schedule.email"),
			Statistics: v.GetString("schedule.statistics"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("logger.level", "info")
	v.SetDefault("postgres.database", "warehouse")
	v.SetDefault("postgres.migrations_path", "migrations")
	v.SetDefault("postgres.max_open_conns", 25)
	v.SetDefault("postgres.max_idle_conns", 10)
	v.SetDefault("amqp.exchange", "warehouse.statistics")
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.dispatch_timeout", "5s")
	v.SetDefault("outbox.publish_max_attempts", 3)
	v.SetDefault("outbox.publish_backoff", "200ms")
	v.SetDefault("outbox.max_record_attempts", 10)
	v.SetDefault("schedule.catalog", "* * * * *")
	v.SetDefault("schedule.storage", "* * * * *")
	v.SetDefault("schedule.email", "*/2 * * * *")
	v.SetDefault("schedule.statistics", "*/5 * * * *")
}

func (cfg *Config) validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("validate config: %w", err)
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fields = append(fields, fmt.Sprintf("%s (%s)",
			strings.TrimPrefix(fieldErr.Namespace(), "Config."), fieldErr.Tag()))
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
}
