// Package config loads and validates the tgmirror TOML configuration.
//
// Configuration resolves from an explicit --config path, then
// ~/.config/tgmirror/config.toml, then ./tgmirror.toml, falling back to
// built-in defaults when no file exists. Paths are expanded (~) and
// normalized to absolute form before validation.
package config
