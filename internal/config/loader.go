// internal/config/loader.go
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// maxConfigFileSize rejects runaway config files before parsing.
	maxConfigFileSize = 1 << 20

	envPrefix = "STEWARD_"
)

// LoadWithFile builds a Config from a YAML file and the environment.
//
// Precedence, highest first:
//  1. Environment variables (STEWARD_LLM_BASE_URL, STEWARD_PIPELINE_STATE_DIR, ...)
//  2. The YAML file (~/.config/steward/config.yaml when configPath is empty)
//  3. Defaults
//
// A missing file is not an error; defaults and environment cover it.
// Files must live under ~/.config/steward/ or /etc/steward/, carry
// 0600 or 0400 permissions, and stay under 1 MiB.
//
// Environment keys map onto YAML paths by stripping the prefix,
// lowercasing, and splitting on the first underscore:
//
//	STEWARD_LLM_BASE_URL         -> llm.base_url
//	STEWARD_SUPERVISION_NATS_URL -> supervision.nats_url
//	STEWARD_PIPELINE_STATE_DIR   -> pipeline.state_dir
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := defaultConfigPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	k := koanf.New(".")
	if err := loadConfigFile(k, configPath); err != nil {
		return nil, err
	}
	if err := loadEnvOverrides(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone,
// touching neither the filesystem nor the environment. Embedders that
// configure steward programmatically start here.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// loadConfigFile merges the YAML file into k. The file is opened once
// and checked through its descriptor so the permission and size
// checks cannot race a swap of the underlying file.
func loadConfigFile(k *koanf.Koanf, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := checkFileProperties(info); err != nil {
		return fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// loadEnvOverrides merges STEWARD_* variables over the file values.
func loadEnvOverrides(k *koanf.Koanf) error {
	if err := k.Load(env.Provider(envPrefix, ".", envKeyToPath), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

// envKeyToPath maps STEWARD_LLM_BASE_URL to llm.base_url. Splitting
// once keeps everything after the first underscore a single field
// name, which is how the section structs are laid out.
func envKeyToPath(key string) string {
	lower := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	return section + "." + field
}

// stewardConfigDir returns the per-user config directory.
func stewardConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "steward"), nil
}

func defaultConfigPath() (string, error) {
	dir, err := stewardConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureConfigDir creates the per-user config directory, owner-only.
func EnsureConfigDir() error {
	dir, err := stewardConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath restricts loading to the steward config
// directories. Symlinks are resolved first so a link placed inside an
// allowed directory cannot point the loader somewhere else; paths
// that do not exist yet validate on their absolute form.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolved = absPath
	}

	userDir, err := stewardConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, "/etc/steward"} {
		if strings.HasPrefix(resolved, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/steward/ or /etc/steward/")
}

// checkFileProperties enforces the permission and size requirements.
// It takes the FileInfo of an already-open descriptor, never a fresh
// Stat.
func checkFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
