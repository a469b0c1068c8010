package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks configuration invariants that do not depend on which
// command runs. Credentials are checked by the commands that need them.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("config: paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		return fmt.Errorf("config: paths.export_dir must not be empty")
	}
	if c.Download.Concurrency < 1 {
		return fmt.Errorf("config: download.concurrency must be at least 1, got %d", c.Download.Concurrency)
	}
	if c.Tagging.BatchSize < 1 {
		return fmt.Errorf("config: tagging.batch_size must be at least 1, got %d", c.Tagging.BatchSize)
	}
	if c.OpenAI.RequestTimeout < 1 {
		return fmt.Errorf("config: openai.request_timeout must be at least 1 second, got %d", c.OpenAI.RequestTimeout)
	}
	if c.OpenAI.PollIntervalSeconds < 1 {
		return fmt.Errorf("config: openai.poll_interval_seconds must be at least 1, got %d", c.OpenAI.PollIntervalSeconds)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Export.OutputFile == "" {
		return fmt.Errorf("config: export.output_file must not be empty")
	}
	if _, err := time.LoadLocation(c.Export.Timezone); err != nil {
		return fmt.Errorf("config: export.timezone: %w", err)
	}
	return nil
}
