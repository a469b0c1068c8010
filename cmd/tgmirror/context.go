package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tgmirror/internal/config"
	"tgmirror/internal/logging"
	"tgmirror/internal/services/openai"
	"tgmirror/internal/source"
	"tgmirror/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// withStore opens the store, runs fn, and releases the database and its
// lock file regardless of the outcome.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Warn("close store", "error", closeErr)
		}
	}()
	return fn(cfg, st, logger)
}

func (c *commandContext) newSource(cfg *config.Config) (source.Client, error) {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, fmt.Errorf("telegram.token is not configured; run `tgmirror config init` and edit the file")
	}
	if cfg.Telegram.ChatID == 0 {
		return nil, fmt.Errorf("telegram.chat_id is not configured")
	}
	return source.NewTelegramClient(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.APIEndpoint)
}

func (c *commandContext) newClassifier(cfg *config.Config) (*openai.Client, error) {
	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return nil, fmt.Errorf("openai.api_key is not configured; run `tgmirror config init` and edit the file")
	}
	opts := []openai.Option{
		openai.WithModel(cfg.OpenAI.Model),
		openai.WithPollInterval(time.Duration(cfg.OpenAI.PollIntervalSeconds) * time.Second),
		openai.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.OpenAI.RequestTimeout) * time.Second}),
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	return openai.NewClient(cfg.OpenAI.APIKey, opts...), nil
}
