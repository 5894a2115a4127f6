package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"purpleify/internal/config"
	"purpleify/internal/correlation"
	"purpleify/internal/decoder"
	"purpleify/internal/kvstore"
	"purpleify/internal/logging"
	"purpleify/internal/transform"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// JSONMode reports whether --json was given.
func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) loggerFor() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, _ := c.ensureConfig()
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) decoderOptions(cfg *config.Config) (decoder.Options, error) {
	truncation, err := decoder.ParseTruncation(cfg.Decoder.Truncation)
	if err != nil {
		return decoder.Options{}, err
	}
	return decoder.Options{
		InitialBufferSize: cfg.Decoder.InitialBufferBytes,
		MaxFrameSize:      uint32(cfg.Decoder.MaxFrameBytes),
		Truncation:        truncation,
		Logger:            c.loggerFor(),
	}, nil
}

// session holds the persisted correlation caches for one command run.
type session struct {
	store    kvstore.Store
	requests *correlation.Cache[string, transform.RequestData]
	disabled *correlation.Cache[int, bool]
	tracker  *transform.Tracker
}

func (c *commandContext) openSession(ctx context.Context) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger := c.loggerFor()

	store, err := kvstore.Open(ctx, cfg.Correlation.Backend, cfg.Correlation.Path)
	if err != nil {
		return nil, fmt.Errorf("open correlation store: %w", err)
	}
	requests, err := correlation.New[string, transform.RequestData](ctx, correlation.Options{
		Capacity:  cfg.Correlation.Capacity,
		Store:     store,
		Namespace: cfg.Correlation.RequestNamespace,
		QueueSize: cfg.Correlation.WriteQueue,
		Logger:    logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	disabled, err := correlation.New[int, bool](ctx, correlation.Options{
		Capacity:  cfg.Correlation.Capacity,
		Store:     store,
		Namespace: cfg.Correlation.DisabledNamespace,
		QueueSize: cfg.Correlation.WriteQueue,
		Logger:    logger,
	})
	if err != nil {
		_ = requests.Close()
		_ = store.Close()
		return nil, err
	}
	return &session{
		store:    store,
		requests: requests,
		disabled: disabled,
		tracker:  transform.NewTracker(requests, disabled, viewerURL, logger),
	}, nil
}

// Close flushes both caches before closing the store they write to.
func (s *session) Close() error {
	return errors.Join(s.requests.Close(), s.disabled.Close(), s.store.Close())
}

func (c *commandContext) newClient(ctx context.Context, s *session) (*transform.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	uid, err := transform.ClientUID(ctx, s.store)
	if err != nil {
		return nil, err
	}
	decOpts, err := c.decoderOptions(cfg)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{}
	if cfg.Transform.RequestTimeout > 0 {
		httpClient.Timeout = time.Duration(cfg.Transform.RequestTimeout) * time.Second
	}
	return transform.NewClient(s.requests, transform.ClientOptions{
		Endpoint:   cfg.Transform.Endpoint,
		ClientUID:  uid,
		HTTPClient: httpClient,
		Decoder:    decOpts,
		ChunkSize:  cfg.Decoder.ChunkBytes,
		Logger:     c.loggerFor(),
	}), nil
}

func transformParams(cfg *config.Config) (transform.Params, error) {
	quality, err := transform.ParseQuality(cfg.Transform.Quality)
	if err != nil {
		return transform.Params{}, err
	}
	bg := cfg.Transform.BackgroundColor
	return transform.Params{
		Quality:         quality,
		BackgroundColor: transform.Color{R: uint8(bg.R), G: uint8(bg.G), B: uint8(bg.B)},
	}, nil
}

// viewerURL is the redirect base recorded decisions point at.
const viewerURL = "purpleify://viewer/index.html"

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func formatError(err error) string {
	var terr *transform.Error
	if !errors.As(err, &terr) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(terr.Title())
	for _, hint := range terr.Hints() {
		b.WriteString("\n  ")
		b.WriteString(hint)
	}
	if terr.Err != nil {
		b.WriteString("\nCaused by: ")
		b.WriteString(terr.Err.Error())
	}
	return b.String()
}
