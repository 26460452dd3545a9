package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		cleanup func()
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "load with defaults (no config file)",
			setup: func() {
				viper.Reset()
			},
			cleanup: func() {},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 3001 {
					t.Errorf("Server.Port = %d, want 3001", cfg.Server.Port)
				}
				if cfg.Extractor.Path != "yt-dlp" {
					t.Errorf("Extractor.Path = %s, want yt-dlp", cfg.Extractor.Path)
				}
				if cfg.Extractor.Timeout != 600*time.Second {
					t.Errorf("Extractor.Timeout = %v, want 600s", cfg.Extractor.Timeout)
				}
				if cfg.Ingestion.DefaultMaxVideos != 10 {
					t.Errorf("Ingestion.DefaultMaxVideos = %d, want 10", cfg.Ingestion.DefaultMaxVideos)
				}
				if cfg.Ingestion.MaxVideosLimit != 100 {
					t.Errorf("Ingestion.MaxVideosLimit = %d, want 100", cfg.Ingestion.MaxVideosLimit)
				}
				if cfg.Transcript.Concurrency != 1 {
					t.Errorf("Transcript.Concurrency = %d, want 1", cfg.Transcript.Concurrency)
				}
				if cfg.Database.Enabled {
					t.Error("Database.Enabled = true, want false")
				}
				if cfg.RabbitMQ.Enabled {
					t.Error("RabbitMQ.Enabled = true, want false")
				}
				// 600s extractor + 5s grace + 100 sequential 30s caption fetches.
				if got := cfg.RequestBudget(); got != 55*time.Minute+5*time.Second {
					t.Errorf("RequestBudget() = %v, want 55m5s", got)
				}
				if got := cfg.EffectiveWriteTimeout(); got <= cfg.RequestBudget() {
					t.Errorf("EffectiveWriteTimeout() = %v, want more than %v", got, cfg.RequestBudget())
				}
			},
		},
		{
			name: "load with environment variables",
			setup: func() {
				viper.Reset()
				viper.SetEnvPrefix("APP")
				viper.AutomaticEnv()
				os.Setenv("APP_SERVER_PORT", "9090")
				os.Setenv("APP_EXTRACTOR_PATH", "/opt/bin/yt-dlp")
				os.Setenv("APP_TRANSCRIPT_CONCURRENCY", "4")
				os.Setenv("APP_DATABASE_HOST", "testdb")
				// Manually bind env vars since AutomaticEnv doesn't work with nested keys
				viper.BindEnv("server.port", "APP_SERVER_PORT")
				viper.BindEnv("extractor.path", "APP_EXTRACTOR_PATH")
				viper.BindEnv("transcript.concurrency", "APP_TRANSCRIPT_CONCURRENCY")
				viper.BindEnv("database.host", "APP_DATABASE_HOST")
			},
			cleanup: func() {
				os.Unsetenv("APP_SERVER_PORT")
				os.Unsetenv("APP_EXTRACTOR_PATH")
				os.Unsetenv("APP_TRANSCRIPT_CONCURRENCY")
				os.Unsetenv("APP_DATABASE_HOST")
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
				}
				if cfg.Extractor.Path != "/opt/bin/yt-dlp" {
					t.Errorf("Extractor.Path = %s, want /opt/bin/yt-dlp", cfg.Extractor.Path)
				}
				if cfg.Transcript.Concurrency != 4 {
					t.Errorf("Transcript.Concurrency = %d, want 4", cfg.Transcript.Concurrency)
				}
				if cfg.Database.Host != "testdb" {
					t.Errorf("Database.Host = %s, want testdb", cfg.Database.Host)
				}
			},
		},
		{
			name: "invalid concurrency is rejected",
			setup: func() {
				viper.Reset()
				os.Setenv("APP_TRANSCRIPT_CONCURRENCY", "0")
				viper.BindEnv("transcript.concurrency", "APP_TRANSCRIPT_CONCURRENCY")
			},
			cleanup: func() {
				os.Unsetenv("APP_TRANSCRIPT_CONCURRENCY")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			defer func() {
				if tt.cleanup != nil {
					tt.cleanup()
				}
			}()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && cfg == nil {
				t.Fatal("Load() returned nil config")
			}

			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_EXTRACTOR_PATH=/from/dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer func() {
		_ = os.Chdir(wd)
		os.Unsetenv("APP_EXTRACTOR_PATH")
	}()

	viper.Reset()
	viper.BindEnv("extractor.path", "APP_EXTRACTOR_PATH")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Extractor.Path != "/from/dotenv" {
		t.Errorf("Extractor.Path = %s, want /from/dotenv", cfg.Extractor.Path)
	}
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	setDefaults()

	tests := []struct {
		name string
		key  string
		want interface{}
	}{
		{"server port", "server.port", 3001},
		{"extractor path", "extractor.path", "yt-dlp"},
		{"ingestion defaultmaxvideos", "ingestion.defaultmaxvideos", 10},
		{"ingestion maxvideoslimit", "ingestion.maxvideoslimit", 100},
		{"transcript concurrency", "transcript.concurrency", 1},
		{"database enabled", "database.enabled", false},
		{"database port", "database.port", 5432},
		{"rabbitmq enabled", "rabbitmq.enabled", false},
		{"rabbitmq exchange", "rabbitmq.exchange", "youtube.ingestion"},
		{"rabbitmq queue", "rabbitmq.queue", "youtube.ingestion.runs"},
		{"rabbitmq routingkey", "rabbitmq.routingkey", "ingestion.*"},
		{"metrics enabled", "metrics.enabled", true},
		{"metrics path", "metrics.path", "/metrics"},
		{"logging level", "logging.level", "info"},
		{"logging file", "logging.file", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.want {
				t.Errorf("viper.Get(%s) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}

	if viper.GetDuration("extractor.timeout") != 600*time.Second {
		t.Errorf("extractor.timeout = %v, want 600s", viper.GetDuration("extractor.timeout"))
	}
	if viper.GetDuration("transcript.httptimeout") != 30*time.Second {
		t.Errorf("transcript.httptimeout = %v, want 30s", viper.GetDuration("transcript.httptimeout"))
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			Extractor:  ExtractorConfig{Path: "yt-dlp", Timeout: time.Minute},
			Ingestion:  IngestionConfig{DefaultMaxVideos: 10, MaxVideosLimit: 100},
			Transcript: TranscriptConfig{Concurrency: 1, HTTPTimeout: 30 * time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty extractor path", func(c *Config) { c.Extractor.Path = "" }, true},
		{"zero timeout", func(c *Config) { c.Extractor.Timeout = 0 }, true},
		{"default above limit", func(c *Config) { c.Ingestion.DefaultMaxVideos = 101 }, true},
		{"zero limit", func(c *Config) { c.Ingestion.MaxVideosLimit = 0 }, true},
		{"zero concurrency", func(c *Config) { c.Transcript.Concurrency = 0 }, true},
		{"write timeout covers budget", func(c *Config) { c.Server.WriteTimeout = time.Hour }, false},
		{"write timeout below budget", func(c *Config) { c.Server.WriteTimeout = 11 * time.Minute }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_EffectiveWriteTimeout(t *testing.T) {
	base := Config{
		Extractor:  ExtractorConfig{Timeout: 10 * time.Minute, WaitDelay: 5 * time.Second},
		Ingestion:  IngestionConfig{MaxVideosLimit: 100},
		Transcript: TranscriptConfig{HTTPTimeout: 30 * time.Second, Concurrency: 1},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   time.Duration
	}{
		{"sequential enrichment", func(*Config) {}, 10*time.Minute + 5*time.Second + 50*time.Minute + time.Minute},
		{"concurrent enrichment rounds up", func(c *Config) { c.Transcript.Concurrency = 3 }, 10*time.Minute + 5*time.Second + 17*time.Minute + time.Minute},
		{"explicit value wins", func(c *Config) { c.Server.WriteTimeout = 2 * time.Hour }, 2 * time.Hour},
		{"zero concurrency treated as one", func(c *Config) { c.Transcript.Concurrency = 0 }, 10*time.Minute + 5*time.Second + 50*time.Minute + time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if got := cfg.EffectiveWriteTimeout(); got != tt.want {
				t.Errorf("EffectiveWriteTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Name: "ingestion", User: "u", Password: "p"}
	want := "postgres://u:p@db:5433/ingestion?sslmode=disable"
	if got := d.ConnString(); got != want {
		t.Errorf("ConnString() = %s, want %s", got, want)
	}
}
