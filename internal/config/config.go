package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/viper"
)

// Config represents the GeoCat configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Languages maps supported 2-letter language codes to display names.
	Languages map[string]string `mapstructure:"languages"`
	// DefaultLanguage is the fallback language code.
	DefaultLanguage string `mapstructure:"default_language"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// CacheConfig selects and tunes the cache backend shared by the schema and
// thesaurus label caches.
type CacheConfig struct {
	Backend  string `mapstructure:"backend"` // "memory" or "redis"
	Capacity int    `mapstructure:"capacity"`
	Redis    struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
}

// MetadataConfig drives the schema composition and indexing subsystem.
type MetadataConfig struct {
	// Handlers is the ordered list of handler ids to register. Order is part
	// of the contract: later handlers may build on earlier handlers' output.
	Handlers []string `mapstructure:"handlers"`
	// Indexes maps a search index name to the instance fields it covers.
	Indexes map[string][]string `mapstructure:"indexes"`
	// MultilangFields lists base fields that get one generated sub-field per
	// supported language.
	MultilangFields []string `mapstructure:"multilang_fields"`
	// PostgresLangs maps a 2-letter language code to the PostgreSQL text
	// search configuration used for its tsvector rows.
	PostgresLangs map[string]string `mapstructure:"postgres_langs"`
}

// DefaultHandlers is the handler registration order used when the config
// file does not override it.
var DefaultHandlers = []string{
	"core",
	"contact",
	"region",
	"doi",
	"linkedresource",
	"hkeyword",
	"thesaurus",
	"group",
	"sparse",
	"multilang",
}

// Load loads the configuration from geocat.yml or geocat.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.capacity", 128)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("default_language", "en")
	v.SetDefault("languages", map[string]string{"en": "English"})
	v.SetDefault("metadata.handlers", DefaultHandlers)
	v.SetDefault("metadata.indexes", map[string][]string{
		"default": {"title", "abstract", "purpose"},
	})
	v.SetDefault("metadata.multilang_fields", []string{"title", "abstract"})
	v.SetDefault("metadata.postgres_langs", map[string]string{"en": "english"})

	// Set config name and paths
	v.SetConfigName("geocat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/geocat")

	// Enable environment variable support
	v.SetEnvPrefix("geocat")
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.DefaultLanguage == "" {
		return fmt.Errorf("default_language must not be empty")
	}
	if _, ok := cfg.Languages[cfg.DefaultLanguage]; !ok {
		return fmt.Errorf("default_language %q is not in languages", cfg.DefaultLanguage)
	}
	if cfg.Cache.Backend != "memory" && cfg.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be %q or %q, got %q", "memory", "redis", cfg.Cache.Backend)
	}
	for name, fields := range cfg.Metadata.Indexes {
		if len(fields) == 0 {
			return fmt.Errorf("metadata index %q has no fields", name)
		}
	}
	for lang := range cfg.Metadata.PostgresLangs {
		if _, ok := cfg.Languages[lang]; !ok {
			return fmt.Errorf("metadata.postgres_langs references unsupported language %q", lang)
		}
	}
	return nil
}

// LanguageCodes returns the supported language codes in a stable order, with
// the default language first.
func (c *Config) LanguageCodes() []string {
	codes := make([]string, 0, len(c.Languages))
	for code := range c.Languages {
		if code == c.DefaultLanguage {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return append([]string{c.DefaultLanguage}, codes...)
}

// GetDatabaseURL returns the database URL from the environment or config.
func GetDatabaseURL(cfg *Config) string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Database.URL
	}
	return ""
}
