package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config is the agent configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	State     StateConfig     `mapstructure:"state"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Autostart AutostartConfig `mapstructure:"autostart"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig holds the remote inventory API endpoints
type APIConfig struct {
	SubmitURL          string        `mapstructure:"submit_url"`
	PlacesURL          string        `mapstructure:"places_url"`
	EquipmentURL       string        `mapstructure:"equipment_url"`
	UsersURL           string        `mapstructure:"users_url"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	SubmitTimeout      time.Duration `mapstructure:"submit_timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// StateConfig locates the local state files
type StateConfig struct {
	Dir           string `mapstructure:"dir"`
	SelectionFile string `mapstructure:"selection_file"`
	MarkerFile    string `mapstructure:"marker_file"`
}

// SelectionPath returns the absolute path of the selection cache
func (s StateConfig) SelectionPath() string {
	return resolve(s.Dir, s.SelectionFile)
}

// MarkerPath returns the absolute path of the last-submission marker
func (s StateConfig) MarkerPath() string {
	return resolve(s.Dir, s.MarkerFile)
}

// ProbeConfig controls the native hardware-query tools
type ProbeConfig struct {
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// AutostartConfig names the OS autostart registration
type AutostartConfig struct {
	Name        string `mapstructure:"name"`
	DisplayName string `mapstructure:"display_name"`
	Description string `mapstructure:"description"`
}

// DaemonConfig controls the background resubmission loop
type DaemonConfig struct {
	CheckInterval   time.Duration `mapstructure:"check_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls the zap logger and file rotation
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

const (
	defaultAPIBase = "https://intranet.farmacia.ufmg.br/wp-json/intranet/v1"
	envPrefix      = "HWINV"
)

// Load reads configuration from the given file (optional), the environment
// and defaults. An explicitly named file must exist; without one the usual
// locations are searched and a missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("hwinventory")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetPlatformDefaults().StateDir)
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Dir(GetDefaultConfigPath()))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.submit_url", defaultAPIBase+"/submission")
	v.SetDefault("api.places_url", defaultAPIBase+"/submissions/object/place")
	v.SetDefault("api.equipment_url", defaultAPIBase+"/submissions/equipaments/?client=x9h&type=computador,netbook,notebook")
	v.SetDefault("api.users_url", defaultAPIBase+"/users/")
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.submit_timeout", 30*time.Second)
	v.SetDefault("api.insecure_skip_verify", true)

	v.SetDefault("state.selection_file", "user_data.json")
	v.SetDefault("state.marker_file", "ultimo_envio.txt")

	v.SetDefault("probe.command_timeout", 20*time.Second)

	v.SetDefault("autostart.name", "HardwareMonitorUFMGSTI")
	v.SetDefault("autostart.display_name", "Hardware Inventory Agent")
	v.SetDefault("autostart.description", "Registers workstation hardware with the inventory API.")

	v.SetDefault("daemon.check_interval", time.Hour)
	v.SetDefault("daemon.shutdown_timeout", time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)

	UpdateConfigDefaults(v)
}

func validate(cfg *Config) error {
	endpoints := map[string]string{
		"api.submit_url":    cfg.API.SubmitURL,
		"api.places_url":    cfg.API.PlacesURL,
		"api.equipment_url": cfg.API.EquipmentURL,
		"api.users_url":     cfg.API.UsersURL,
	}
	for key, raw := range endpoints {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if cfg.API.ReadTimeout <= 0 {
		return fmt.Errorf("api.read_timeout must be positive")
	}
	if cfg.API.SubmitTimeout <= 0 {
		return fmt.Errorf("api.submit_timeout must be positive")
	}

	if cfg.State.Dir == "" {
		return fmt.Errorf("state.dir is required")
	}
	if cfg.State.SelectionFile == "" || cfg.State.MarkerFile == "" {
		return fmt.Errorf("state.selection_file and state.marker_file are required")
	}

	if cfg.Probe.CommandTimeout <= 0 {
		return fmt.Errorf("probe.command_timeout must be positive")
	}

	if cfg.Autostart.Name == "" {
		return fmt.Errorf("autostart.name is required")
	}
	if strings.ContainsAny(cfg.Autostart.Name, `/\ `) {
		return fmt.Errorf("autostart.name must not contain spaces or path separators")
	}

	if cfg.Daemon.CheckInterval < time.Minute {
		return fmt.Errorf("daemon.check_interval must be at least 1 minute")
	}
	if cfg.Daemon.ShutdownTimeout <= 0 {
		return fmt.Errorf("daemon.shutdown_timeout must be positive")
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if cfg.Logging.File == "" {
		return fmt.Errorf("logging.file is required")
	}

	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
