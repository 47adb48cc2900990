package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("CHATAPP_JWT_SECRET", "secret")
	t.Setenv("CHATAPP_PORT", "8080")
	t.Setenv("CHATAPP_SELF_CONTAINED", "true")
	t.Setenv("CHATAPP_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CHATAPP_ATTACHMENT_EXTENSIONS", "png,txt")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(configPathEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want env override", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want value from file", cfg.LogLevel)
	}
	if cfg.MaxUploadBytes != 16*1024*1024 {
		t.Errorf("MaxUploadBytes = %d, want default", cfg.MaxUploadBytes)
	}
	if !slices.Equal(cfg.CorsOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("CorsOrigins = %v", cfg.CorsOrigins)
	}
	if !slices.Equal(cfg.AttachmentExtensions, []string{"png", "txt"}) {
		t.Errorf("AttachmentExtensions = %v", cfg.AttachmentExtensions)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"Valid", func(c *Config) {}, false},
		{"Missing secret", func(c *Config) { c.JwtSecret = "" }, true},
		{"Worker too large", func(c *Config) { c.SnowflakeWorkerID = 5000 }, true},
		{"Half TLS", func(c *Config) { c.TlsCert = "cert.pem" }, true},
		{"Mysql without user", func(c *Config) { c.SelfContained = false }, true},
		{"Zero upload size", func(c *Config) { c.MaxUploadBytes = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.JwtSecret = "secret"
			tc.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %t", err, tc.wantErr)
			}
		})
	}
}
