package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the resolved client configuration
type Config struct {
	// APIBase is the orchestrator backend (auth, conversations, admin)
	APIBase string `mapstructure:"api_base"`
	// DocqaBase is the document ingestion/search backend
	DocqaBase string `mapstructure:"docqa_base"`
	// AnalyticsBase is the analytics/AI backend. Defaults to DocqaBase
	// since both live in the same service in the default deployment.
	AnalyticsBase string `mapstructure:"analytics_base"`
	// DataDir holds the token, the meta cache and the conversation cache
	DataDir string `mapstructure:"data_dir"`
	// SLOP90 is the latency SLO target in seconds used by dashboards
	SLOP90 float64 `mapstructure:"slo_p90"`
}

// LoadConfig resolves configuration from (highest precedence first)
// environment variables (CHATCTL_*), an optional config file and defaults.
// cfgFile may be empty, in which case ~/.config/chatctl/config.yaml is
// used when present.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api_base", "http://localhost:8080")
	v.SetDefault("docqa_base", "http://localhost:5000")
	v.SetDefault("analytics_base", "")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("slo_p90", 0.8)

	v.SetEnvPrefix("CHATCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "chatctl"))
		}
		// A missing default config file is fine
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.DocqaBase = strings.TrimRight(cfg.DocqaBase, "/")
	if cfg.AnalyticsBase == "" {
		cfg.AnalyticsBase = cfg.DocqaBase
	}
	cfg.AnalyticsBase = strings.TrimRight(cfg.AnalyticsBase, "/")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, &CacheError{Path: cfg.DataDir, Op: "open", Err: err}
	}

	return &cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatctl"
	}
	return filepath.Join(home, ".chatctl")
}

// TokenPath returns the credential file location
func (c *Config) TokenPath() string {
	return filepath.Join(c.DataDir, "token")
}

// MetaDBPath returns the message-meta cache database location
func (c *Config) MetaDBPath() string {
	return filepath.Join(c.DataDir, "meta.db")
}

// ConvCacheDir returns the conversation cache directory
func (c *Config) ConvCacheDir() string {
	return filepath.Join(c.DataDir, "conversations")
}
