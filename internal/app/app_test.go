package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/hillmyna/internal/challenge"
	"github.com/codebuildervaibhav/hillmyna/internal/config"
	"github.com/codebuildervaibhav/hillmyna/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "credentials.csv"), []byte(
		"resource,key,endpoint\n"+
			"SpeechBS2019,speech-key,https://westus.stt.speech.microsoft.com\n"+
			"SpeakerBS2019,speaker-key,https://westus.api.cognitive.microsoft.com/spid/v1.0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "words.txt"), []byte("apple\nriver\nyellow\ngarden\nsilver\n"), 0o644))

	cfg := config.Default()
	cfg.Data.Directory = dataDir
	cfg.Storage.SamplesDir = filepath.Join(dir, "samples")
	cfg.Storage.Database = filepath.Join(dir, "hillmyna.db")
	return cfg
}

func TestNewWire_Memory(t *testing.T) {
	cfg := testConfig(t)
	w, err := NewWire(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, 5, w.Words.Len())
	assert.IsType(t, &challenge.MemoryStore{}, w.Challenges)
	assert.Nil(t, w.Drive)
	assert.DirExists(t, cfg.Storage.SamplesDir)
	assert.NotEmpty(t, w.EnrollmentText, "falls back to the default text")

	ch, err := w.Service.IssueChallenge(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, ch.Words, cfg.Challenge.Words)
	assert.Equal(t, 0, w.SweepChallenges())

	checks := w.ReadyChecks()
	require.Contains(t, checks, "database")
	assert.NotContains(t, checks, "redis")
	assert.NoError(t, checks["database"](context.Background()))
}

func TestNewWire_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Challenge.Store = config.StoreRedis
	cfg.Challenge.TTL = time.Minute
	cfg.Redis.Addr = mr.Addr()

	w, err := NewWire(context.Background(), cfg, logging.Discard(), nil)
	require.NoError(t, err)
	defer w.Close()

	assert.IsType(t, &challenge.RedisStore{}, w.Challenges)
	ch, err := w.Service.IssueChallenge(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)
	assert.Contains(t, mr.Keys()[0], ch.ID)

	checks := w.ReadyChecks()
	require.Contains(t, checks, "redis")
	assert.NoError(t, checks["redis"](context.Background()))
}

func TestNewWire_ImportUsers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.UsersImportFile = "users.json"
	require.NoError(t, os.WriteFile(cfg.Path("users.json"), []byte(
		`[{"azure_id": "11111111-2222-3333-4444-555555555555", "username": "alice", "name": "Alice", "surname": "Liddell"}]`), 0o644))

	w, err := NewWire(context.Background(), cfg, logging.Discard(), nil)
	require.NoError(t, err)
	defer w.Close()

	u, err := w.DB.UserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", u.AzureID)
}

func TestNewWire_Errors(t *testing.T) {
	t.Run("missing resource", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Azure.SpeechResource = "Unknown"
		_, err := NewWire(context.Background(), cfg, logging.Discard(), nil)
		assert.Error(t, err)
	})

	t.Run("missing words", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Data.WordsFile = "nope.txt"
		_, err := NewWire(context.Background(), cfg, logging.Discard(), nil)
		assert.Error(t, err)
	})

	t.Run("redis down", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		cfg := testConfig(t)
		cfg.Challenge.Store = config.StoreRedis
		cfg.Redis.Addr = mr.Addr()
		mr.Close()

		_, err = NewWire(context.Background(), cfg, logging.Discard(), nil)
		assert.Error(t, err)
	})
}
