package handlers

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/hillmyna/internal/logging"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

// Version is reported by /health.
const Version = "1.0.0"

// WordSampler draws challenge words.
type WordSampler interface {
	Sample(n int) ([]string, error)
}

// AttemptLister lists recorded logins.
type AttemptLister interface {
	ListAttempts(ctx context.Context, limit int) ([]*types.Attempt, error)
}

// SampleOpener opens archived samples.
type SampleOpener interface {
	OpenSample(rel string) (*os.File, error)
}

// ReadyCheck reports whether a dependency can serve requests.
type ReadyCheck func(ctx context.Context) error

// InfoHandler serves the read-only endpoints
type InfoHandler struct {
	words          WordSampler
	defaultWords   int
	enrollmentText string
	attempts       AttemptLister
	samples        SampleOpener
	logs           *logging.Buffer
	checks         map[string]ReadyCheck
}

// NewInfoHandler creates a new info handler
func NewInfoHandler(
	words WordSampler,
	defaultWords int,
	enrollmentText string,
	attempts AttemptLister,
	samples SampleOpener,
	logs *logging.Buffer,
	checks map[string]ReadyCheck,
) *InfoHandler {
	return &InfoHandler{
		words:          words,
		defaultWords:   defaultWords,
		enrollmentText: enrollmentText,
		attempts:       attempts,
		samples:        samples,
		logs:           logs,
		checks:         checks,
	}
}

// Health handles GET /health
func (h *InfoHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"version": Version,
	})
}

// Ready handles GET /ready
func (h *InfoHandler) Ready(c *fiber.Ctx) error {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := fiber.Map{}
	for _, name := range names {
		if err := h.checks[name](c.UserContext()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"checks": failed,
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// Words handles GET /words?n=
func (h *InfoHandler) Words(c *fiber.Ctx) error {
	list, err := h.words.Sample(c.QueryInt("n", h.defaultWords))
	if err != nil {
		return fromError(c, err)
	}
	return c.JSON(fiber.Map{"words": list})
}

// EnrollmentText handles GET /enrollment-text
func (h *InfoHandler) EnrollmentText(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"text": h.enrollmentText})
}

// Attempts handles GET /attempts?limit=
func (h *InfoHandler) Attempts(c *fiber.Ctx) error {
	attempts, err := h.attempts.ListAttempts(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return fromError(c, err)
	}
	return c.JSON(fiber.Map{"attempts": attempts})
}

// Sample handles GET /samples/*, streaming an archived recording back
func (h *InfoHandler) Sample(c *fiber.Ctx) error {
	rel := c.Params("*")
	f, err := h.samples.OpenSample(rel)
	if err != nil {
		return fromError(c, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fromError(c, err)
	}

	c.Type(strings.TrimPrefix(filepath.Ext(rel), "."))
	return c.SendStream(f, int(info.Size()))
}

// Logs handles GET /logs
func (h *InfoHandler) Logs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"logs": h.logs.Lines(),
	})
}
