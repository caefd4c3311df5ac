// Package config loads issuesync configuration from the project's
// .issuesync/config.yaml, with ISSUESYNC_* environment variables taking
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigDirName is the per-project configuration directory, discovered by
// walking up from the working directory (same discovery rule as git).
const ConfigDirName = ".issuesync"

// ConfigFileName is the YAML file inside ConfigDirName.
const ConfigFileName = "config.yaml"

// Storage backend names accepted for storage.backend.
const (
	BackendMemory = "memory"
	BackendMySQL  = "mysql"
)

// Config is the resolved runtime configuration.
type Config struct {
	// GitHub API access.
	GitHubToken   string
	GitHubBaseURL string

	// Default repository for bare "#123" refs; "owner/repo".
	GitHubRepo string

	// Actor recorded on audit events; defaults to $USER.
	Actor string

	// LifecycleSpec is the path to a custom lifecycle YAML document.
	// Empty means the embedded default.
	LifecycleSpec string

	// Storage backend selection.
	StorageBackend string
	StorageDSN     string
}

// Load discovers and reads the project config. A missing config file is
// not an error; environment variables and defaults still apply.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}
	return LoadFrom(wd)
}

// LoadFrom loads configuration, discovering the config file by walking up
// from the given directory.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ISSUESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("github.base_url", "")
	v.SetDefault("actor", os.Getenv("USER"))

	if path, ok := findConfigFile(dir); ok {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	cfg := &Config{
		GitHubToken:    v.GetString("github.token"),
		GitHubBaseURL:  v.GetString("github.base_url"),
		GitHubRepo:     v.GetString("github.repo"),
		Actor:          v.GetString("actor"),
		LifecycleSpec:  v.GetString("lifecycle.spec"),
		StorageBackend: v.GetString("storage.backend"),
		StorageDSN:     v.GetString("storage.dsn"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory:
	case BackendMySQL:
		if c.StorageDSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.backend is %q", BackendMySQL)
		}
	default:
		return fmt.Errorf("storage.backend: %q is invalid (valid values: %s, %s)",
			c.StorageBackend, BackendMemory, BackendMySQL)
	}

	if c.GitHubRepo != "" && !strings.Contains(c.GitHubRepo, "/") {
		return fmt.Errorf("github.repo: %q is invalid (want owner/repo)", c.GitHubRepo)
	}
	return nil
}

// findConfigFile walks up from dir looking for .issuesync/config.yaml.
func findConfigFile(dir string) (string, bool) {
	for {
		candidate := filepath.Join(dir, ConfigDirName, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
