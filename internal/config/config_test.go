package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "SpeechBS2019", cfg.Azure.SpeechResource)
	assert.Equal(t, "SpeakerBS2019", cfg.Azure.IdentificationResource)
	assert.Equal(t, 30*time.Second, cfg.Azure.OperationCheckInterval)
	assert.Equal(t, 20, cfg.Azure.RequestsPerMinute)
	assert.Equal(t, 5, cfg.Challenge.Words)
	assert.Equal(t, StoreMemory, cfg.Challenge.Store)
	assert.Equal(t, "Normal", cfg.Identification.MinConfidence)
	assert.Equal(t, filepath.Join("data", "words.txt"), cfg.Path(cfg.Data.WordsFile))
	assert.Equal(t, 5*time.Minute, cfg.MaxDuration())
}

func TestLoad_Durations(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
azure:
  operation_check_interval: 5s
challenge:
  ttl: 90s
  store: redis
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Azure.OperationCheckInterval)
	assert.Equal(t, 90*time.Second, cfg.Challenge.TTL)
	assert.Equal(t, StoreRedis, cfg.Challenge.Store)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"single word challenge", "challenge:\n  words: 1\n"},
		{"unknown store", "challenge:\n  store: etcd\n"},
		{"bad confidence", "identification:\n  min_confidence: Medium\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"drive without credentials", "google_drive:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPath_Absolute(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/etc/hillmyna/words.txt", cfg.Path("/etc/hillmyna/words.txt"))
}
