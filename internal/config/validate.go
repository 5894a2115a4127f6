package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTransform(); err != nil {
		return err
	}
	if err := c.validateDecoder(); err != nil {
		return err
	}
	if err := c.validateCorrelation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTransform() error {
	parsed, err := url.Parse(c.Transform.Endpoint)
	if err != nil {
		return fmt.Errorf("transform.endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("transform.endpoint must be an http(s) URL, got %q", c.Transform.Endpoint)
	}
	switch strings.ToLower(c.Transform.Quality) {
	case "extreme", "high", "normal", "low", "extralow":
	default:
		return fmt.Errorf("transform.quality: unsupported value %q", c.Transform.Quality)
	}
	for name, value := range map[string]int{
		"transform.background_color.r": c.Transform.BackgroundColor.R,
		"transform.background_color.g": c.Transform.BackgroundColor.G,
		"transform.background_color.b": c.Transform.BackgroundColor.B,
	} {
		if value < 0 || value > 255 {
			return fmt.Errorf("%s must be between 0 and 255", name)
		}
	}
	return nil
}

func (c *Config) validateDecoder() error {
	switch c.Decoder.Truncation {
	case TruncationError, TruncationDiscard:
	default:
		return fmt.Errorf("decoder.truncation must be %q or %q, got %q", TruncationError, TruncationDiscard, c.Decoder.Truncation)
	}
	if c.Decoder.MaxFrameBytes < 0 {
		return errors.New("decoder.max_frame_bytes cannot be negative")
	}
	if c.Decoder.MaxFrameBytes > 1<<32-1 {
		return errors.New("decoder.max_frame_bytes cannot exceed the 32-bit frame offset range")
	}
	return nil
}

func (c *Config) validateCorrelation() error {
	if c.Correlation.Capacity <= 0 {
		return errors.New("correlation.capacity must be positive")
	}
	switch c.Correlation.Backend {
	case BackendSQLite, BackendFile:
		if strings.TrimSpace(c.Correlation.Path) == "" {
			return fmt.Errorf("correlation.path must be set for the %s backend", c.Correlation.Backend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("correlation.backend: unsupported value %q", c.Correlation.Backend)
	}
	req, dis := c.Correlation.RequestNamespace, c.Correlation.DisabledNamespace
	if req == dis {
		return errors.New("correlation.request_namespace and correlation.disabled_namespace must differ")
	}
	if strings.HasPrefix(req, dis+"-") || strings.HasPrefix(dis, req+"-") {
		return fmt.Errorf("correlation namespaces %q and %q overlap; neither may start with the other followed by \"-\"", req, dis)
	}
	return nil
}
