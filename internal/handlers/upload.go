package handlers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/audio"
)

// uploader saves multipart audio uploads into the temp directory
type uploader struct {
	tempDir   string
	maxSizeMB int
	log       *logrus.Entry
}

// save stores the "file" form field and returns its path. On failure the
// error response has already been written and the returned error is the
// result of writing it.
func (u *uploader) save(c *fiber.Ctx) (string, bool, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return "", false, apiError(c, fiber.StatusBadRequest, "No file uploaded", "ERR_NO_FILE")
	}

	// Validate file size
	maxSize := int64(u.maxSizeMB) * 1024 * 1024
	if u.maxSizeMB > 0 && file.Size > maxSize {
		return "", false, apiError(c, fiber.StatusBadRequest,
			fmt.Sprintf("File too large (max %dMB)", u.maxSizeMB), "ERR_FILE_TOO_LARGE")
	}

	// Validate file format
	if !audio.ValidateFormat(file.Filename) {
		return "", false, apiError(c, fiber.StatusBadRequest, "Unsupported audio format", "ERR_INVALID_FORMAT")
	}

	tempPath := filepath.Join(u.tempDir, uuid.New().String()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tempPath); err != nil {
		u.log.Errorf("Failed to save uploaded file: %v", err)
		return "", false, apiError(c, fiber.StatusInternalServerError, "Failed to save file", "ERR_SAVE_FAILED")
	}

	// The extension may lie; check the content too
	mime, ok, err := audio.Detect(tempPath)
	if err != nil || !ok {
		u.log.Debugf("Rejected upload %s sniffed as %q", file.Filename, mime)
		u.remove(tempPath)
		return "", false, apiError(c, fiber.StatusBadRequest, "Uploaded file is not audio", "ERR_INVALID_FORMAT")
	}
	u.log.Debugf("Saved upload %s (%s, %d bytes)", file.Filename, mime, file.Size)

	return tempPath, true, nil
}

func (u *uploader) remove(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			u.log.Warnf("Failed to cleanup temp file %s: %v", p, err)
		}
	}
}
