package config

import (
	"chatapp-backend/internal/snowflake"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "CHATAPP_"
	configPathEnv = "CHATAPP_CONFIG"
)

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Address              string   `koanf:"address"`
	Port                 string   `koanf:"port"`
	BehindNginx          bool     `koanf:"behind_nginx"`
	TlsCert              string   `koanf:"tls_cert"`
	TlsKey               string   `koanf:"tls_key"`
	Cors                 bool     `koanf:"cors"`
	CorsOrigins          []string `koanf:"cors_origins"`
	PrintHttpRequests    bool     `koanf:"print_http_requests"`
	LogToFile            bool     `koanf:"log_to_file"`
	LogLevel             string   `koanf:"log_level"`
	JwtSecret            string   `koanf:"jwt_secret"`
	SnowflakeWorkerID    int64    `koanf:"snowflake_worker_id"`
	SelfContained        bool     `koanf:"self_contained"`
	SqlitePath           string   `koanf:"sqlite_path"`
	DbUser               string   `koanf:"db_user"`
	DbPassword           string   `koanf:"db_password"`
	DbAddress            string   `koanf:"db_address"`
	DbPort               string   `koanf:"db_port"`
	DbDatabase           string   `koanf:"db_database"`
	RedisAddress         string   `koanf:"redis_address"`
	RedisPassword        string   `koanf:"redis_password"`
	RedisDB              int      `koanf:"redis_db"`
	UploadDir            string   `koanf:"upload_dir"`
	MaxUploadBytes       int64    `koanf:"max_upload_bytes"`
	AttachmentExtensions []string `koanf:"attachment_extensions"`
	RateLimitPerMinute   int      `koanf:"rate_limit_per_minute"`
}

func defaultConfig() Config {
	return Config{
		Address:              "0.0.0.0",
		Port:                 "3000",
		CorsOrigins:          []string{"*"},
		LogLevel:             "info",
		SelfContained:        true,
		SqlitePath:           "./database.db",
		DbAddress:            "localhost",
		DbPort:               "3306",
		DbDatabase:           "chatapp",
		RedisAddress:         "localhost:6379",
		UploadDir:            "./public/uploads",
		MaxUploadBytes:       16 * 1024 * 1024,
		AttachmentExtensions: []string{"png", "jpg", "jpeg", "gif", "webp", "txt", "pdf", "zip", "mp3", "ogg", "wav", "mp4", "webm"},
		RateLimitPerMinute:   20,
	}
}

// Load layers defaults, an optional yaml file and CHATAPP_* environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// CHATAPP_DB_USER -> db_user
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// env values come in as plain strings
	for _, key := range []string{"cors_origins", "attachment_extensions"} {
		if raw, ok := k.Get(key).(string); ok {
			if err := k.Set(key, splitList(raw)); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JwtSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.SnowflakeWorkerID < 0 || c.SnowflakeWorkerID > snowflake.MaxWorkerID {
		errs = append(errs, fmt.Errorf("snowflake_worker_id must be between 0 and %d", snowflake.MaxWorkerID))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	if (c.TlsCert == "") != (c.TlsKey == "") {
		errs = append(errs, errors.New("tls_cert and tls_key must be set together"))
	}
	if !c.SelfContained && (c.DbUser == "" || c.DbDatabase == "") {
		errs = append(errs, errors.New("db_user and db_database are required unless self_contained"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsHttps() bool {
	return c.TlsCert != "" && c.TlsKey != ""
}

func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%s", c.Address, c.Port)
}

func findConfigFile() string {
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
