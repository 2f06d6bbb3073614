package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// PlatformDefaults returns platform-specific default values
type PlatformDefaults struct {
	StateDir   string
	LogFile    string
	ConfigPath string
}

// GetPlatformDefaults returns platform-specific defaults based on runtime.GOOS.
// State and log files live next to the executable so the agent keeps working
// when it is copied onto a workstation without an installer.
func GetPlatformDefaults() PlatformDefaults {
	stateDir := executableDir()
	defaults := PlatformDefaults{
		StateDir: stateDir,
		LogFile:  filepath.Join(stateDir, "hwinventory.log"),
	}

	switch runtime.GOOS {
	case "windows":
		defaults.ConfigPath = `C:\ProgramData\HwInventory\config.yaml`
	case "darwin":
		defaults.ConfigPath = "/Library/Application Support/HwInventory/config.yaml"
	case "freebsd":
		defaults.ConfigPath = "/usr/local/etc/hwinventory/config.yaml"
	default:
		defaults.ConfigPath = "/etc/hwinventory/config.yaml"
	}

	return defaults
}

// GetDefaultConfigPath returns the platform-specific default config path
func GetDefaultConfigPath() string {
	return GetPlatformDefaults().ConfigPath
}

// UpdateConfigDefaults updates viper defaults with platform-specific values
func UpdateConfigDefaults(v interface{}) {
	type viper interface {
		SetDefault(key string, value interface{})
	}

	if viperInstance, ok := v.(viper); ok {
		defaults := GetPlatformDefaults()

		viperInstance.SetDefault("state.dir", defaults.StateDir)
		viperInstance.SetDefault("logging.file", defaults.LogFile)
	}
}

// executableDir returns the directory holding the running binary, falling
// back to the working directory
func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
