// Package config loads marksync settings from defaults, an optional YAML
// file and MARKSYNC_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/seckatie/marksync/internal/core"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MARKSYNC_"

// Auth modes.
const (
	AuthJWT      = "jwt"
	AuthSupabase = "supabase"
)

type Config struct {
	DB       string       `yaml:"db"`
	Host     string       `yaml:"host"`
	Port     int          `yaml:"port"`
	LogLevel string       `yaml:"log_level"`
	Auth     AuthConfig   `yaml:"auth"`
	Feed     FeedConfig   `yaml:"feed"`
	CORS     CORSConfig   `yaml:"cors"`
	Client   ClientConfig `yaml:"client"`
}

type AuthConfig struct {
	Mode        string `yaml:"mode"`
	JWTSecret   string `yaml:"jwt_secret"`
	SupabaseURL string `yaml:"supabase_url"`
	SupabaseKey string `yaml:"supabase_key"`
}

type FeedConfig struct {
	Buffer       int           `yaml:"buffer"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type ClientConfig struct {
	Server       string        `yaml:"server"`
	Token        string        `yaml:"token"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
}

func Default() Config {
	return Config{
		DB:       "marksync.db",
		Host:     "localhost",
		Port:     8080,
		LogLevel: "info",
		Auth: AuthConfig{
			Mode: AuthJWT,
		},
		Feed: FeedConfig{
			Buffer:       core.DefaultFeedBuffer,
			PingInterval: core.DefaultPingInterval,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Client: ClientConfig{
			Server:       "http://localhost:8080",
			StoreTimeout: core.DefaultStoreTimeout,
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	str("DB", &c.DB)
	str("HOST", &c.Host)
	str("LOG_LEVEL", &c.LogLevel)
	str("AUTH_MODE", &c.Auth.Mode)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("SUPABASE_URL", &c.Auth.SupabaseURL)
	str("SUPABASE_KEY", &c.Auth.SupabaseKey)
	str("SERVER", &c.Client.Server)
	str("TOKEN", &c.Client.Token)

	if v, ok := lookup(envPrefix + "PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		c.Port = port
	}
	if v, ok := lookup(envPrefix + "FEED_BUFFER"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sFEED_BUFFER: %w", envPrefix, err)
		}
		c.Feed.Buffer = n
	}
	if v, ok := lookup(envPrefix + "CORS_ORIGINS"); ok {
		c.CORS.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate checks the settings the server needs.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	switch c.Auth.Mode {
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("auth.jwt_secret is required for jwt mode"))
		}
	case AuthSupabase:
		if c.Auth.SupabaseURL == "" || c.Auth.SupabaseKey == "" {
			errs = append(errs, errors.New("auth.supabase_url and auth.supabase_key are required for supabase mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
