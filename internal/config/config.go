package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	AuthModeOAuth = "oauth"
	AuthModeLocal = "local"
)

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	Mode string `mapstructure:"mode"`
}

type GitLabConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURL  string        `mapstructure:"redirect_url"`
	Scope        string        `mapstructure:"scope"`
	OIDC         bool          `mapstructure:"oidc"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	Store        string        `mapstructure:"store"`
	TTL          time.Duration `mapstructure:"ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	LogMode bool   `mapstructure:"log_mode"`
}

type SnippetsConfig struct {
	Store         string `mapstructure:"store"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	GitLab   GitLabConfig   `mapstructure:"gitlab"`
	Session  SessionConfig  `mapstructure:"session"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Snippets SnippetsConfig `mapstructure:"snippets"`
	Log      LogConfig      `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.mode", AuthModeOAuth)

	v.SetDefault("gitlab.base_url", "https://gitlab.com")
	v.SetDefault("gitlab.client_id", "")
	v.SetDefault("gitlab.client_secret", "")
	v.SetDefault("gitlab.redirect_url", "")
	v.SetDefault("gitlab.scope", "read_user read_api")
	v.SetDefault("gitlab.oidc", false)
	v.SetDefault("gitlab.timeout", 15*time.Second)

	v.SetDefault("session.store", "redis")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cookie_secure", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/portal.db")
	v.SetDefault("database.log_mode", false)

	v.SetDefault("snippets.store", "sql")
	v.SetDefault("snippets.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("snippets.mongo_database", "portal")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from path (optional), then the environment.
// Every key can be overridden with PORTAL_<SECTION>_<KEY>, e.g. PORTAL_SERVER_PORT.
// The GitLab application settings also honour GITLAB_APP_ID, GITLAB_APP_SECRET,
// GITLAB_REDIRECT_URI and GITLAB_SCOPE.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("gitlab.client_id", "PORTAL_GITLAB_CLIENT_ID", "GITLAB_APP_ID")
	_ = v.BindEnv("gitlab.client_secret", "PORTAL_GITLAB_CLIENT_SECRET", "GITLAB_APP_SECRET")
	_ = v.BindEnv("gitlab.redirect_url", "PORTAL_GITLAB_REDIRECT_URL", "GITLAB_REDIRECT_URI")
	_ = v.BindEnv("gitlab.scope", "PORTAL_GITLAB_SCOPE", "GITLAB_SCOPE")
	_ = v.BindEnv("server.port", "PORTAL_SERVER_PORT", "PORT")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if _, err := os.Stat("config.yaml"); err == nil {
		v.SetConfigFile("config.yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &c, nil
}

// Validate checks that the settings required by the selected auth mode
// and backends are present.
func (c *Config) Validate() error {
	var errs []error

	switch c.Auth.Mode {
	case AuthModeOAuth:
		if c.GitLab.ClientID == "" || c.GitLab.ClientSecret == "" || c.GitLab.RedirectURL == "" {
			errs = append(errs, errors.New("gitlab client_id, client_secret and redirect_url are required in oauth mode"))
		}
		if c.GitLab.BaseURL == "" {
			errs = append(errs, errors.New("gitlab base_url is required in oauth mode"))
		}
	case AuthModeLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}

	switch c.Session.Store {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.Session.Store))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	switch c.Snippets.Store {
	case "sql":
	case "mongo":
		if c.Snippets.MongoURI == "" {
			errs = append(errs, errors.New("snippets mongo_uri is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown snippets store %q", c.Snippets.Store))
	}

	return errors.Join(errs...)
}
