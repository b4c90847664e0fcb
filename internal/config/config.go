package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	LibvirtURI          string
	TemplateDir         string
	LogLevel            string
	LogFormat           string
	TelemetryEnabled    bool
	FirmwareLoaderPath  string
	TmpDir              string
	QemuRunDir          string
	NetworkStateDir     string
	SysconfigNetworkDir string
}

// Load reads defaults, an optional config file and MKCLOUD_* environment
// variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("libvirt_uri", "qemu:///system")
	v.SetDefault("template_dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("telemetry_enabled", false)
	v.SetDefault("firmware_loader_path", "/usr/share/qemu/aavmf-aarch64-code.bin")
	v.SetDefault("tmp_dir", "/tmp")
	v.SetDefault("qemu_run_dir", "/var/run/libvirt/qemu")
	v.SetDefault("network_state_dir", "/var/lib/libvirt/network")
	v.SetDefault("sysconfig_network_dir", "/etc/sysconfig/network")

	v.SetEnvPrefix("mkcloud")
	v.AutomaticEnv()

	if configFile == "" {
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	cfg := &Config{
		LibvirtURI:          v.GetString("libvirt_uri"),
		TemplateDir:         v.GetString("template_dir"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		TelemetryEnabled:    v.GetBool("telemetry_enabled"),
		FirmwareLoaderPath:  v.GetString("firmware_loader_path"),
		TmpDir:              v.GetString("tmp_dir"),
		QemuRunDir:          v.GetString("qemu_run_dir"),
		NetworkStateDir:     v.GetString("network_state_dir"),
		SysconfigNetworkDir: v.GetString("sysconfig_network_dir"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.LibvirtURI == "" {
		return fmt.Errorf("libvirt uri must not be empty")
	}

	if c.TemplateDir != "" {
		if err := validateDirExists(c.TemplateDir); err != nil {
			return fmt.Errorf("template directory: %w", err)
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.LogFormat)
	}

	return nil
}

func validateDirExists(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", path)
	} else if err != nil {
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}
