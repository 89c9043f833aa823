package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed filter.yaml
var defaultFilterYAML []byte

var ErrUnknownStrictness = errors.New("unknown strictness level")

// FilterConfig holds the content filter rules. Word lists are matched as
// case-insensitive substrings; pattern lists are regular expressions.
type FilterConfig struct {
	Strictness           string `yaml:"strictness"`
	MaxMessagesPerMinute int    `yaml:"max_messages_per_minute"`

	EnableBadWords       bool `yaml:"enable_bad_words_check"`
	EnableOffensiveWords bool `yaml:"enable_offensive_words_check"`
	EnableLinks          bool `yaml:"enable_links_check"`
	EnableSpamPatterns   bool `yaml:"enable_spam_check"`
	EnableRateLimit      bool `yaml:"enable_rate_limit"`

	BadWords       []string `yaml:"bad_words"`
	OffensiveWords []string `yaml:"offensive_words"`
	ExceptionWords []string `yaml:"exception_words"`
	LinkPatterns   []string `yaml:"link_patterns"`
	SpamPatterns   []string `yaml:"spam_patterns"`

	Presets map[string]StrictnessPreset `yaml:"presets"`
}

// StrictnessPreset bulk-overrides the offensive and spam toggles and the
// rate threshold.
type StrictnessPreset struct {
	MaxMessagesPerMinute int  `yaml:"max_messages_per_minute"`
	EnableOffensiveWords bool `yaml:"enable_offensive_words_check"`
	EnableSpamPatterns   bool `yaml:"enable_spam_check"`
}

// DefaultFilterConfig returns the embedded rule set with its own strictness
// preset applied.
func DefaultFilterConfig() FilterConfig {
	var cfg FilterConfig
	if err := yaml.Unmarshal(defaultFilterYAML, &cfg); err != nil {
		panic(fmt.Sprintf("embedded filter.yaml: %v", err))
	}
	if err := cfg.ApplyStrictness(cfg.Strictness); err != nil {
		panic(fmt.Sprintf("embedded filter.yaml: %v", err))
	}
	return cfg
}

// LoadFilterConfig reads a YAML override on top of the defaults. An empty
// path returns the defaults. A non-empty strictness argument wins over the
// file's own strictness key.
func LoadFilterConfig(path, strictness string) (FilterConfig, error) {
	cfg := DefaultFilterConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return FilterConfig{}, fmt.Errorf("read filter config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return FilterConfig{}, fmt.Errorf("parse filter config %s: %w", path, err)
		}
	}
	if strictness == "" {
		strictness = cfg.Strictness
	}
	if err := cfg.ApplyStrictness(strictness); err != nil {
		return FilterConfig{}, err
	}
	return cfg, nil
}

// ApplyStrictness overrides the toggles and rate threshold with the named
// preset. An empty level keeps the current values.
func (c *FilterConfig) ApplyStrictness(level string) error {
	if level == "" {
		return nil
	}
	preset, ok := c.Presets[level]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStrictness, level)
	}
	c.Strictness = level
	c.MaxMessagesPerMinute = preset.MaxMessagesPerMinute
	c.EnableOffensiveWords = preset.EnableOffensiveWords
	c.EnableSpamPatterns = preset.EnableSpamPatterns
	if c.MaxMessagesPerMinute <= 0 {
		c.MaxMessagesPerMinute = DefaultMaxMessagesPerMinute
	}
	return nil
}
