// Package config loads and watches the application configuration.
//
// Configuration is read from a YAML file via viper, with environment
// variables (prefix FILEDEPOT_) taking precedence. Each section is
// independently overridable.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	loggerCfg "github.com/filedepot/filedepot/logging/logger/config"
)

var (
	config *Config
	mu     sync.Mutex
	v      *viper.Viper
)

// Config represents the application configuration.
type Config struct {
	AppName  string
	RunMode  string
	Host     string
	Port     int
	Logger   *loggerCfg.Config
	Data     *Data
	Storage  *Storage
	Pipeline *Pipeline
	Viper    *viper.Viper
}

func init() {
	v = viper.New()
}

// LoadConfig loads the configuration from the file.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		ex, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		v.SetConfigName("config")
		v.AddConfigPath("/etc/filedepot")
		v.AddConfigPath("$HOME/.filedepot")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Dir(ex))
	}

	v.SetEnvPrefix("filedepot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{
		AppName:  getStringOrDefault(v, "app_name", "filedepot"),
		RunMode:  getStringOrDefault(v, "run_mode", "release"),
		Host:     getStringOrDefault(v, "server.host", "0.0.0.0"),
		Port:     getIntOrDefault(v, "server.port", 8000),
		Logger:   loggerCfg.GetConfig(v),
		Data:     getDataConfig(v),
		Storage:  getStorageConfig(v),
		Pipeline: getPipelineConfig(v),
		Viper:    v,
	}

	mu.Lock()
	config = cfg
	mu.Unlock()
	return cfg, nil
}

// GetConfig returns the loaded configuration.
func GetConfig() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	if config == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return config, nil
}

// Reload reloads the configuration from the file.
func Reload() error {
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	_, err := LoadConfig(v.ConfigFileUsed())
	return err
}

// Watch watches the configuration file and reloads it when it changes.
func Watch(callback func(*Config)) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := Reload(); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
			return
		}
		mu.Lock()
		cfg := config
		mu.Unlock()
		callback(cfg)
	})
}
