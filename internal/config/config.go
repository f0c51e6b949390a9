// Package config holds the CLI-level daemon configuration (§6.1) wired
// through spf13/viper, plus the hand-written parser for the screens/
// aliases/links/options config-file grammar (§6.3).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/barriernet/barriernet/internal/logging"
)

var log = logging.L("config")

// Config is the CLI-level configuration shared by both daemons, plus the
// server-only and client-only fields (§6.1 "authoritative" flag set).
type Config struct {
	Foreground  bool   `mapstructure:"foreground"`
	NoTray      bool   `mapstructure:"no_tray"`
	Debug       string `mapstructure:"debug"`
	Name        string `mapstructure:"name"`
	IPC         bool   `mapstructure:"ipc"`
	DisableCrypto bool `mapstructure:"disable_crypto"`
	LogFile     string `mapstructure:"log"`
	ProfileDir  string `mapstructure:"profile_dir"`
	StopOnDeskSwitch bool `mapstructure:"stop_on_desk_switch"`
	EnableDragDrop   bool `mapstructure:"enable_drag_drop"`

	// Server-specific.
	ConfigFile                 string `mapstructure:"config_file"`
	Address                    string `mapstructure:"address"`
	DisableClientCertChecking  bool   `mapstructure:"disable_client_cert_checking"`

	// Client-specific.
	ServerAddress string `mapstructure:"server_address"`

	KeepAliveRate         time.Duration `mapstructure:"keep_alive_rate"`
	KeepAlivesUntilDeath  int           `mapstructure:"keep_alives_until_death"`
	ClipboardSharingSize  int           `mapstructure:"clipboard_sharing_size"`
}

// Default returns the configuration's zero-value baseline, matching the
// protocol defaults named in spec §4.4 and §4.7.
func Default() *Config {
	return &Config{
		Debug:                "NOTE",
		Address:              ":24800",
		KeepAliveRate:        3 * time.Second,
		KeepAlivesUntilDeath: 3,
		ClipboardSharingSize: 100 * 1024 * 1024,
	}
}

// Load builds a Config from defaults, an optional file, and environment
// overrides (prefix BARRIERNET), following the teacher's viper wiring
// (env vars take precedence over file values, which take precedence over
// defaults).
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("barriernet")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("BARRIERNET")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Error("config validation failed", "error", err)
		return nil, err
	}
	return cfg, nil
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "Barrier")
	case "darwin":
		return "/Library/Application Support/Barrier"
	default:
		return "/etc/barriernet"
	}
}
