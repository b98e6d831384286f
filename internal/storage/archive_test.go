package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/hillmyna/internal/logging"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

type fakeUploader struct {
	baseName string
	meta     []byte
	err      error
}

func (f *fakeUploader) Upload(_ context.Context, baseName string, _ []byte, meta []byte) (string, error) {
	f.baseName = baseName
	f.meta = meta
	if f.err != nil {
		return "", f.err
	}
	return "https://drive.example/" + baseName, nil
}

func TestLocalStorage_SaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	up := &fakeUploader{}
	ls := NewLocalStorage(dir, up, logging.Discard())
	ls.now = func() time.Time { return time.Date(2026, 1, 23, 14, 30, 22, 5e6, time.UTC) }

	meta := &types.SampleMeta{Kind: types.SampleLogin, Name: "alice/../x", Passed: true}
	rel, err := ls.SaveSample(context.Background(), meta, []byte("RIFFdata"))
	require.NoError(t, err)
	assert.Equal(t, "2026/01/23/20260123_143022_005_login_alice____x.wav", rel)
	assert.Equal(t, rel, meta.LocalPath)
	assert.Equal(t, "https://drive.example/20260123_143022_005_login_alice____x", meta.GDriveURL)

	raw, err := os.ReadFile(filepath.Join(dir, "2026", "01", "23", "20260123_143022_005_login_alice____x_meta.json"))
	require.NoError(t, err)
	var stored types.SampleMeta
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.True(t, stored.Passed)
	assert.Equal(t, meta.GDriveURL, stored.GDriveURL)

	f, err := ls.OpenSample(rel)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(data))
}

func TestLocalStorage_UploadFailureKeepsLocalCopy(t *testing.T) {
	ls := NewLocalStorage(t.TempDir(), &fakeUploader{err: errors.New("offline")}, logging.Discard())

	meta := &types.SampleMeta{Kind: types.SampleEnroll, Name: "bob"}
	rel, err := ls.SaveSample(context.Background(), meta, []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, meta.GDriveURL)

	f, err := ls.OpenSample(rel)
	require.NoError(t, err)
	f.Close()
}

func TestLocalStorage_OpenSampleConfined(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "samples")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2026"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("secret"), 0644))

	ls := NewLocalStorage(dir, nil, logging.Discard())

	for _, rel := range []string{"../secret.txt", "/../secret.txt", "missing.wav", "2026"} {
		_, err := ls.OpenSample(rel)
		assert.ErrorIs(t, err, ErrSampleNotFound, rel)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_file-1", sanitizeFilename("my file-1"))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
	assert.Len(t, sanitizeFilename(string(make([]byte, 300))), 100)
}
