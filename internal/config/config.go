package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host      string `mapstructure:"host" json:"host"`
	Port      int    `mapstructure:"port" json:"port"`
	Subpath   string `mapstructure:"subpath" json:"subpath"`
	JWTSecret string `mapstructure:"jwt_secret" json:"-"`

	// Browser origins allowed to call the API cross-site. Same-origin needs none.
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" json:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn" json:"-"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db" json:"db"`
}

// LLMConfig selects the generative-text provider and the models used by the agents.
type LLMConfig struct {
	Provider               string  `mapstructure:"provider" json:"provider"`
	APIKey                 string  `mapstructure:"api_key" json:"-"`
	Model                  string  `mapstructure:"model" json:"model"`
	FallbackModel          string  `mapstructure:"fallback_model" json:"fallback_model"`
	AuditorModel           string  `mapstructure:"auditor_model" json:"auditor_model"`
	Temperature            float64 `mapstructure:"temperature" json:"temperature"`
	TimeoutSeconds         int     `mapstructure:"timeout_seconds" json:"timeout_seconds"`
	BreakerThreshold       int     `mapstructure:"breaker_threshold" json:"breaker_threshold"`
	BreakerCooldownSeconds int     `mapstructure:"breaker_cooldown_seconds" json:"breaker_cooldown_seconds"`
}

type WikipediaConfig struct {
	APIURL          string `mapstructure:"api_url" json:"api_url"`
	PageURL         string `mapstructure:"page_url" json:"page_url"`
	UserAgent       string `mapstructure:"user_agent" json:"user_agent"`
	MaxLinks        int    `mapstructure:"max_links" json:"max_links"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes" json:"cache_ttl_minutes"`
	CacheMaxEntries int    `mapstructure:"cache_max_entries" json:"cache_max_entries"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

type GameConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`
	TopLinks            int     `mapstructure:"top_links" json:"top_links"`
	MaxSections         int     `mapstructure:"max_sections" json:"max_sections"`
	DebugMode           bool    `mapstructure:"debug_mode" json:"debug_mode"`
	SessionTTLMinutes   int     `mapstructure:"session_ttl_minutes" json:"session_ttl_minutes"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
	Redis     RedisConfig     `mapstructure:"redis" json:"redis"`
	LLM       LLMConfig       `mapstructure:"llm" json:"llm"`
	Wikipedia WikipediaConfig `mapstructure:"wikipedia" json:"wikipedia"`
	Game      GameConfig      `mapstructure:"game" json:"game"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig builds the config from defaults, the JSON file at path (if any) and
// WIKIQUIZ_* environment overrides (singleton).
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		v := viper.New()
		setDefaults(v)
		v.SetEnvPrefix("WIKIQUIZ")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if path != "" {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				cfgErr = fmt.Errorf("failed to read config file: %w", err)
				return
			}
		}

		var c Config
		if err := v.Unmarshal(&c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		c.LLM.APIKey = resolveAPIKey(c.LLM)

		if err := c.Validate(); err != nil {
			cfgErr = err
			return
		}
		cfg = &c
	})
	return cfg, cfgErr
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.subpath", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "wikiquiz.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.fallback_model", "gemini-2.5-flash-lite")
	v.SetDefault("llm.auditor_model", "gemini-2.5-pro")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.breaker_threshold", 5)
	v.SetDefault("llm.breaker_cooldown_seconds", 60)

	v.SetDefault("wikipedia.api_url", "https://en.wikipedia.org/w/api.php")
	v.SetDefault("wikipedia.page_url", "https://en.wikipedia.org/wiki/")
	v.SetDefault("wikipedia.user_agent", "wikiquiz/1.0 (https://github.com/wikiquiz/wikiquiz)")
	v.SetDefault("wikipedia.max_links", 50)
	v.SetDefault("wikipedia.cache_ttl_minutes", 60)
	v.SetDefault("wikipedia.cache_max_entries", 1000)
	v.SetDefault("wikipedia.timeout_seconds", 20)

	v.SetDefault("game.confidence_threshold", 0.8)
	v.SetDefault("game.top_links", 3)
	v.SetDefault("game.max_sections", 3)
	v.SetDefault("game.debug_mode", false)
	v.SetDefault("game.session_ttl_minutes", 120)
}

// resolveAPIKey falls back to the provider's conventional environment variables.
// GEMINI_API_KEY wins over GOOGLE_API_KEY for the gemini provider.
func resolveAPIKey(c LLMConfig) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	var keys []string
	switch c.Provider {
	case "gemini":
		keys = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "openai":
		keys = []string{"OPENAI_API_KEY"}
	case "anthropic":
		keys = []string{"ANTHROPIC_API_KEY"}
	}
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks the fields the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret must be set in config")
	}
	switch c.LLM.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Game.ConfidenceThreshold < 0 || c.Game.ConfidenceThreshold > 1 {
		return fmt.Errorf("game.confidence_threshold must be within [0,1], got %v", c.Game.ConfidenceThreshold)
	}
	return nil
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func (c *Config) WikipediaTimeout() time.Duration {
	return time.Duration(c.Wikipedia.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Wikipedia.CacheTTLMinutes) * time.Minute
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Game.SessionTTLMinutes) * time.Minute
}
