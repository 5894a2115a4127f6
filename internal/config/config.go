package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	OutputDir string `toml:"output_dir"`
}

// Color is an RGB background colour passed through to the transform service.
type Color struct {
	R int `toml:"r" json:"r"`
	G int `toml:"g" json:"g"`
	B int `toml:"b" json:"b"`
}

// Transform contains configuration for the remote transform endpoint.
type Transform struct {
	Endpoint        string `toml:"endpoint"`
	Quality         string `toml:"quality"`
	BackgroundColor Color  `toml:"background_color"`
	RequestTimeout  int    `toml:"request_timeout"` // seconds; 0 disables the client timeout
}

// Decoder contains configuration for the PPDF frame decoder.
type Decoder struct {
	InitialBufferBytes int    `toml:"initial_buffer_bytes"`
	MaxFrameBytes      int64  `toml:"max_frame_bytes"` // 0 means unbounded
	ChunkBytes         int    `toml:"chunk_bytes"`
	Truncation         string `toml:"truncation"` // "error" or "discard"
}

// Correlation contains configuration for the request correlation caches.
type Correlation struct {
	Capacity          int    `toml:"capacity"`
	Backend           string `toml:"backend"` // "sqlite", "file" or "memory"
	Path              string `toml:"path"`    // Default: <data_dir>/correlation.db (or .json)
	RequestNamespace  string `toml:"request_namespace"`
	DisabledNamespace string `toml:"disabled_namespace"`
	WriteQueue        int    `toml:"write_queue"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for purpleify.
//
// Configuration sections by subsystem:
//   - Paths: data, log and decoded output directories
//   - Transform: endpoint and pass-through render parameters
//   - Decoder: buffer sizing, frame bounds and truncation policy
//   - Correlation: ring capacity, persistence backend and namespaces
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Transform   Transform   `toml:"transform"`
	Decoder     Decoder     `toml:"decoder"`
	Correlation Correlation `toml:"correlation"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/purpleify/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("purpleify.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories. The output
// directory is created lazily by commands that write decoded pages.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Correlation.Backend != BackendMemory && strings.TrimSpace(c.Correlation.Path) != "" {
		if err := os.MkdirAll(filepath.Dir(c.Correlation.Path), 0o755); err != nil {
			return fmt.Errorf("create correlation store directory: %w", err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
