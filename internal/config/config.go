package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Log           LogConfig
	Order         OrderConfig
	Sweep         SweepConfig
	Replenishment ReplenishmentConfig
	Notification  NotificationConfig
	Kafka         KafkaConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
	// Format is json (default) or console.
	Format string
}

type OrderConfig struct {
	ReservationTxTimeout time.Duration
	MaxRetryAttempts     int
}

type SweepConfig struct {
	// Interval of the background sweep; zero disables the scheduler.
	Interval                time.Duration
	NotificationConcurrency int
}

type ReplenishmentConfig struct {
	RetriggerPolicy   string
	RetriggerCooldown time.Duration
}

type NotificationConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Load reads configuration from the environment, optionally layered over a
// YAML/JSON/TOML file when configFile is not empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "60s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_USER", "stockwise")
	v.SetDefault("DB_PASSWORD", "secret")
	v.SetDefault("DB_NAME", "stockwise")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ORDER_RESERVATION_TX_TIMEOUT", "5s")
	v.SetDefault("ORDER_MAX_RETRY_ATTEMPTS", 3)
	v.SetDefault("SWEEP_INTERVAL", "15m")
	v.SetDefault("SWEEP_NOTIFICATION_CONCURRENCY", 4)
	v.SetDefault("REPLENISHMENT_RETRIGGER_POLICY", "recovery")
	v.SetDefault("REPLENISHMENT_RETRIGGER_COOLDOWN", "168h")
	v.SetDefault("NOTIFICATION_WEBHOOK_URL", "")
	v.SetDefault("NOTIFICATION_TIMEOUT", "5s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "sales-orders")
	v.SetDefault("KAFKA_GROUP_ID", "stockwise-allocation")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	durations := map[string]time.Duration{}
	for _, key := range []string{
		"SERVER_READ_TIMEOUT",
		"SERVER_WRITE_TIMEOUT",
		"SERVER_SHUTDOWN_TIMEOUT",
		"DB_CONN_MAX_LIFETIME",
		"ORDER_RESERVATION_TX_TIMEOUT",
		"SWEEP_INTERVAL",
		"REPLENISHMENT_RETRIGGER_COOLDOWN",
		"NOTIFICATION_TIMEOUT",
	} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", key, err)
		}
		durations[key] = d
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetInt("SERVER_PORT"),
			ReadTimeout:     durations["SERVER_READ_TIMEOUT"],
			WriteTimeout:    durations["SERVER_WRITE_TIMEOUT"],
			ShutdownTimeout: durations["SERVER_SHUTDOWN_TIMEOUT"],
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durations["DB_CONN_MAX_LIFETIME"],
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Order: OrderConfig{
			ReservationTxTimeout: durations["ORDER_RESERVATION_TX_TIMEOUT"],
			MaxRetryAttempts:     v.GetInt("ORDER_MAX_RETRY_ATTEMPTS"),
		},
		Sweep: SweepConfig{
			Interval:                durations["SWEEP_INTERVAL"],
			NotificationConcurrency: v.GetInt("SWEEP_NOTIFICATION_CONCURRENCY"),
		},
		Replenishment: ReplenishmentConfig{
			RetriggerPolicy:   v.GetString("REPLENISHMENT_RETRIGGER_POLICY"),
			RetriggerCooldown: durations["REPLENISHMENT_RETRIGGER_COOLDOWN"],
		},
		Notification: NotificationConfig{
			WebhookURL: v.GetString("NOTIFICATION_WEBHOOK_URL"),
			Timeout:    durations["NOTIFICATION_TIMEOUT"],
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
			GroupID: v.GetString("KAFKA_GROUP_ID"),
		},
	}

	if cfg.Order.MaxRetryAttempts < 1 {
		cfg.Order.MaxRetryAttempts = 1
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
