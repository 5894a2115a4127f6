package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTransform()
	c.normalizeDecoder()
	if err := c.normalizeCorrelation(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTransform() {
	if value, ok := os.LookupEnv("PURPLEIFY_ENDPOINT"); ok && strings.TrimSpace(value) != "" {
		c.Transform.Endpoint = value
	}
	c.Transform.Endpoint = strings.TrimSpace(c.Transform.Endpoint)
	if c.Transform.Endpoint == "" {
		c.Transform.Endpoint = defaultEndpoint
	}
	c.Transform.Quality = strings.TrimSpace(c.Transform.Quality)
	if c.Transform.Quality == "" {
		c.Transform.Quality = defaultQuality
	}
	if c.Transform.RequestTimeout < 0 {
		c.Transform.RequestTimeout = 0
	}
}

func (c *Config) normalizeDecoder() {
	if c.Decoder.InitialBufferBytes <= 0 {
		c.Decoder.InitialBufferBytes = defaultInitialBufferBytes
	}
	if c.Decoder.ChunkBytes <= 0 {
		c.Decoder.ChunkBytes = defaultChunkBytes
	}
	if c.Decoder.MaxFrameBytes < 0 {
		c.Decoder.MaxFrameBytes = 0
	}
	c.Decoder.Truncation = strings.ToLower(strings.TrimSpace(c.Decoder.Truncation))
	if c.Decoder.Truncation == "" {
		c.Decoder.Truncation = defaultTruncation
	}
}

func (c *Config) normalizeCorrelation() error {
	c.Correlation.Backend = strings.ToLower(strings.TrimSpace(c.Correlation.Backend))
	if c.Correlation.Backend == "" {
		c.Correlation.Backend = defaultBackend
	}
	if c.Correlation.Capacity == 0 {
		c.Correlation.Capacity = defaultCapacity
	}
	if c.Correlation.WriteQueue <= 0 {
		c.Correlation.WriteQueue = defaultWriteQueue
	}
	c.Correlation.RequestNamespace = strings.TrimSpace(c.Correlation.RequestNamespace)
	if c.Correlation.RequestNamespace == "" {
		c.Correlation.RequestNamespace = defaultRequestNamespace
	}
	c.Correlation.DisabledNamespace = strings.TrimSpace(c.Correlation.DisabledNamespace)
	if c.Correlation.DisabledNamespace == "" {
		c.Correlation.DisabledNamespace = defaultDisabledNamespace
	}

	if strings.TrimSpace(c.Correlation.Path) == "" {
		switch c.Correlation.Backend {
		case BackendSQLite:
			c.Correlation.Path = filepath.Join(c.Paths.DataDir, "correlation.db")
		case BackendFile:
			c.Correlation.Path = filepath.Join(c.Paths.DataDir, "correlation.json")
		}
	}
	var err error
	if c.Correlation.Path, err = expandPath(c.Correlation.Path); err != nil {
		return fmt.Errorf("correlation.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
