// Package config loads settings from .env, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr        string        `yaml:"http_addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Twilio   TwilioConfig   `yaml:"twilio"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	NATS     NATSConfig     `yaml:"nats"`

	NotifyTimeout   time.Duration `yaml:"notify_timeout" validate:"gt=0"`
	DefaultSpeedMps float64       `yaml:"default_speed_mps" validate:"gt=0"`
	RouteCacheSize  int           `yaml:"route_cache_size" validate:"gte=0"`
	RouteCacheTTL   time.Duration `yaml:"route_cache_ttl" validate:"gte=0"`
	SeedSampleData  bool          `yaml:"seed_sample_data"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver   string `yaml:"driver" validate:"oneof=postgres memory"`
	Host     string `yaml:"host" validate:"required_if=Driver postgres"`
	Port     string `yaml:"port" validate:"required_if=Driver postgres"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	Name     string `yaml:"name" validate:"required_if=Driver postgres"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode, d.TimeZone,
	)
}

type JWTConfig struct {
	Secret string        `yaml:"-" validate:"required,min=8"`
	Issuer string        `yaml:"issuer"`
	TTL    time.Duration `yaml:"ttl" validate:"gt=0"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level" validate:"oneof=trace debug info warn warning error"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gt=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"-"`
	AuthToken  string `yaml:"-"`
	FromNumber string `yaml:"from_number"`
}

// Enabled reports whether SMS can be sent through Twilio.
func (t TwilioConfig) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"`
	GeoKey   string `yaml:"geo_key"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" validate:"required_with=Brokers"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

func defaults() Config {
	return Config{
		HTTPAddr:        ":8080",
		ShutdownTimeout: 15 * time.Second,
		Database: DatabaseConfig{
			Driver:   "postgres",
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "password",
			Name:     "shuttle_tracker",
			SSLMode:  "disable",
			TimeZone: "UTC",
		},
		JWT: JWTConfig{Issuer: "shuttle-tracker", TTL: 72 * time.Hour},
		Log: LogConfig{
			File:       "./logs/app.log",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 7,
			MaxAgeDays: 7,
		},
		Redis:           RedisConfig{GeoKey: "bus_positions"},
		Kafka:           KafkaConfig{Topic: "shuttle-events"},
		NATS:            NATSConfig{SubjectPrefix: "shuttle"},
		NotifyTimeout:   10 * time.Second,
		DefaultSpeedMps: 8,
		RouteCacheSize:  256,
		RouteCacheTTL:   5 * time.Minute,
	}
}

// Load reads .env (if present), overlays CONFIG_FILE (if set) and then the
// environment. Every malformed value is reported, not just the first.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on env vars")
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	var errs []error
	applyEnv(&cfg, &errs)
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, errs *[]error) {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setDuration(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", errs)
	setList(&cfg.CORSOrigins, "CORS_ORIGINS")

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	setString(&cfg.Database.TimeZone, "DB_TIMEZONE")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.JWT.Issuer, "JWT_ISSUER")
	setDuration(&cfg.JWT.TTL, "JWT_TTL", errs)

	setString(&cfg.Log.File, "LOG_FILE")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	setInt(&cfg.Log.MaxSizeMB, "LOG_MAX_SIZE_MB", errs)
	setInt(&cfg.Log.MaxBackups, "LOG_MAX_BACKUPS", errs)
	setInt(&cfg.Log.MaxAgeDays, "LOG_MAX_AGE_DAYS", errs)

	setString(&cfg.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Twilio.FromNumber, "TWILIO_PHONE_NUMBER")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Redis.GeoKey, "REDIS_GEO_KEY")

	setList(&cfg.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.SubjectPrefix, "NATS_SUBJECT_PREFIX")

	setDuration(&cfg.NotifyTimeout, "NOTIFY_TIMEOUT", errs)
	setFloat(&cfg.DefaultSpeedMps, "DEFAULT_SPEED_MPS", errs)
	setInt(&cfg.RouteCacheSize, "ROUTE_CACHE_SIZE", errs)
	setDuration(&cfg.RouteCacheTTL, "ROUTE_CACHE_TTL", errs)
	setBool(&cfg.SeedSampleData, "SEED_SAMPLE_DATA", errs)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setInt(dst *int, key string, errs *[]error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func setFloat(dst *float64, key string, errs *[]error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = f
}

func setBool(dst *bool, key string, errs *[]error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func setDuration(dst *time.Duration, key string, errs *[]error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}
