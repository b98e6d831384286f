package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

// ErrSampleNotFound is returned when a sample is missing or outside the archive.
var ErrSampleNotFound = errors.New("sample not found")

// Uploader copies an archived sample somewhere else, returning a link to it.
type Uploader interface {
	Upload(ctx context.Context, baseName string, wav []byte, meta []byte) (string, error)
}

// LocalStorage archives login and enrollment samples on the local filesystem
type LocalStorage struct {
	samplesDir string
	uploader   Uploader
	log        *logrus.Entry
	now        func() time.Time
}

// NewLocalStorage creates a new sample archive rooted at samplesDir. The
// uploader is optional.
func NewLocalStorage(samplesDir string, uploader Uploader, log *logrus.Entry) *LocalStorage {
	return &LocalStorage{
		samplesDir: samplesDir,
		uploader:   uploader,
		log:        log,
		now:        time.Now,
	}
}

// SaveSample writes the audio and its metadata to a dated directory
// (samples/2026/01/23/) and returns the sample path relative to the archive
// root, using forward slashes.
func (ls *LocalStorage) SaveSample(ctx context.Context, meta *types.SampleMeta, wav []byte) (string, error) {
	now := ls.now()
	dateDir := path.Join(
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(filepath.Join(ls.samplesDir, filepath.FromSlash(dateDir)), 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	// 20260123_143022_123_login_alice
	baseName := fmt.Sprintf("%s_%03d_%s_%s",
		now.Format("20060102_150405"), now.Nanosecond()/int(time.Millisecond),
		sanitizeFilename(meta.Kind), sanitizeFilename(meta.Name))
	rel := path.Join(dateDir, baseName+".wav")

	if err := os.WriteFile(filepath.Join(ls.samplesDir, filepath.FromSlash(rel)), wav, 0644); err != nil {
		return "", fmt.Errorf("failed to save sample: %w", err)
	}

	meta.LocalPath = rel
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now.UTC()
	}

	if ls.uploader != nil {
		metaJSON, err := json.MarshalIndent(meta, "", "  ")
		if err == nil {
			url, err := ls.uploader.Upload(ctx, baseName, wav, metaJSON)
			if err != nil {
				ls.log.WithError(err).Warn("Failed to upload sample")
			} else {
				meta.GDriveURL = url
			}
		}
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metaPath := filepath.Join(ls.samplesDir, filepath.FromSlash(dateDir), baseName+"_meta.json")
	if err := os.WriteFile(metaPath, metaJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save metadata: %w", err)
	}

	return rel, nil
}

// OpenSample opens an archived sample for playback. Paths escaping the
// archive root are rejected.
func (ls *LocalStorage) OpenSample(rel string) (*os.File, error) {
	root, err := os.OpenRoot(ls.samplesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer root.Close()

	f, err := root.Open(filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, rel)
	}

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, rel)
	}
	return f, nil
}

// sanitizeFilename keeps letters, digits, '-' and '_' and caps the length.
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
	if result == "" {
		result = "unnamed"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
