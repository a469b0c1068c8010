package config

const (
	defaultDataDir             = "~/.local/share/tgmirror"
	defaultExportDir           = "~/telegram_export"
	defaultTelegramAPIEndpoint = "" // empty means the library default
	defaultOpenAIBaseURL       = "https://api.openai.com/v1"
	defaultOpenAIModel         = "gpt-4o-mini"
	defaultOpenAITimeout       = 60
	defaultOpenAIPollInterval  = 2
	defaultTagBatchSize        = 50
	defaultDownloadConcurrency = 5
	defaultExportTimezone      = "Europe/Madrid"
	defaultExportOutputFile    = "saved_messages.md"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			ExportDir: defaultExportDir,
		},
		Telegram: Telegram{
			APIEndpoint: defaultTelegramAPIEndpoint,
		},
		OpenAI: OpenAI{
			BaseURL:             defaultOpenAIBaseURL,
			Model:               defaultOpenAIModel,
			RequestTimeout:      defaultOpenAITimeout,
			PollIntervalSeconds: defaultOpenAIPollInterval,
		},
		Tagging: Tagging{
			BatchSize: defaultTagBatchSize,
		},
		Download: Download{
			Concurrency: defaultDownloadConcurrency,
		},
		Export: Export{
			Timezone:   defaultExportTimezone,
			OutputFile: defaultExportOutputFile,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
