package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SharedTrack seeds the shared album.
type SharedTrack struct {
	Name     string `mapstructure:"name"`
	Locator  string `mapstructure:"locator"`
	Category string `mapstructure:"category"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	DBPath       string        `mapstructure:"db_path"`
	GracePeriod  time.Duration `mapstructure:"grace_period"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	ICEServers   []string      `mapstructure:"ice_servers"`

	ActionRateLimit  int           `mapstructure:"action_rate_limit"`
	ActionRateWindow time.Duration `mapstructure:"action_rate_window"`

	SharedTracks []SharedTrack `mapstructure:"shared_tracks"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFrom(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFrom reads the given file. A missing file is not an error.
func LoadFrom(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("VOICEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "voicebox-dev-secret")
	v.SetDefault("db_path", "voicebox.db")
	v.SetDefault("grace_period", "60s")
	v.SetDefault("probe_timeout", "10s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("action_rate_limit", 5)
	v.SetDefault("action_rate_window", "2s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.GracePeriod <= 0 {
		return nil, fmt.Errorf("grace_period must be positive, got %s", cfg.GracePeriod)
	}
	if cfg.ActionRateLimit <= 0 {
		return nil, fmt.Errorf("action_rate_limit must be positive, got %d", cfg.ActionRateLimit)
	}
	if cfg.ActionRateWindow <= 0 {
		return nil, fmt.Errorf("action_rate_window must be positive, got %s", cfg.ActionRateWindow)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Static: %s | DB: %s\n", cfg.Mode, cfg.Port, cfg.StaticPath, cfg.DBPath)
	return &cfg, nil
}
