package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"supportbot/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFilterConfig(t *testing.T) {
	cfg := config.DefaultFilterConfig()

	assert.Equal(t, "medium", cfg.Strictness)
	assert.Equal(t, config.DefaultMaxMessagesPerMinute, cfg.MaxMessagesPerMinute)
	assert.True(t, cfg.EnableBadWords)
	assert.True(t, cfg.EnableOffensiveWords)
	assert.True(t, cfg.EnableLinks)
	assert.True(t, cfg.EnableSpamPatterns)
	assert.True(t, cfg.EnableRateLimit)
	assert.Contains(t, cfg.ExceptionWords, "thanks")
	assert.Contains(t, cfg.BadWords, "fuck")
	assert.NotEmpty(t, cfg.LinkPatterns)
	assert.Len(t, cfg.Presets, 3)
}

func TestApplyStrictness(t *testing.T) {
	tests := []struct {
		level         string
		wantMax       int
		wantOffensive bool
		wantSpam      bool
	}{
		{"low", 10, false, false},
		{"medium", 5, true, true},
		{"high", 3, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := config.DefaultFilterConfig()
			require.NoError(t, cfg.ApplyStrictness(tt.level))

			assert.Equal(t, tt.wantMax, cfg.MaxMessagesPerMinute)
			assert.Equal(t, tt.wantOffensive, cfg.EnableOffensiveWords)
			assert.Equal(t, tt.wantSpam, cfg.EnableSpamPatterns)
			assert.True(t, cfg.EnableBadWords, "presets never touch the profanity toggle")
		})
	}

	cfg := config.DefaultFilterConfig()
	assert.ErrorIs(t, cfg.ApplyStrictness("paranoid"), config.ErrUnknownStrictness)
}

func TestLoadFilterConfig_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.yaml")
	override := []byte("strictness: high\nbad_words: [heck]\nenable_links_check: false\n")
	require.NoError(t, os.WriteFile(path, override, 0o600))

	cfg, err := config.LoadFilterConfig(path, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"heck"}, cfg.BadWords)
	assert.False(t, cfg.EnableLinks)
	assert.Equal(t, 3, cfg.MaxMessagesPerMinute)
	assert.NotEmpty(t, cfg.OffensiveWords, "lists absent from the override keep their defaults")

	cfg, err = config.LoadFilterConfig(path, "low")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxMessagesPerMinute, "explicit strictness wins over the file")
}

func TestLoadFilterConfig_MissingFile(t *testing.T) {
	_, err := config.LoadFilterConfig(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := config.SetupLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "user", 7)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"user":7`)

	_, err = config.SetupLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = config.SetupLogger(&buf, "info", "xml")
	assert.Error(t, err)
}
