package audio

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Azure expects 16 kHz mono 16-bit PCM WAV for both speech-to-text and
// speaker recognition.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

var supportedFormats = []string{".mp3", ".wav", ".m4a", ".ogg", ".flac", ".webm", ".aac", ".wma"}

// Normalize converts an audio file to 16kHz mono WAV in tempDir.
// Files that already have that format are returned unchanged.
func Normalize(ctx context.Context, inputPath, tempDir string) (string, error) {
	if format, err := ParseWAVFile(inputPath); err == nil && format.IsAzureReady() {
		return inputPath, nil
	}

	outputPath := filepath.Join(tempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y",
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}

// ValidateFormat checks if the file extension is a supported audio format
func ValidateFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// Detect sniffs the content of a file. It returns the MIME type and whether
// it is an audio container.
func Detect(path string) (string, bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", false, err
	}
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return mtype.String(), true, nil
		}
	}
	// webm recordings from browsers are sniffed as video/webm
	return mtype.String(), mtype.Is("video/webm"), nil
}
