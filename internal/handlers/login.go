package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/auth"
	"github.com/codebuildervaibhav/hillmyna/internal/challenge"
	"github.com/codebuildervaibhav/hillmyna/internal/queue"
)

// LoginService issues challenges and checks answers.
type LoginService interface {
	IssueChallenge(ctx context.Context, username string) (*challenge.Challenge, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error)
}

// LoginHandler handles challenge issuing and audio logins
type LoginHandler struct {
	service   LoginService
	normalize queue.NormalizeFunc
	uploads   *uploader
	log       *logrus.Entry
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(service LoginService, normalize queue.NormalizeFunc, tempDir string, maxSizeMB int, log *logrus.Entry) *LoginHandler {
	return &LoginHandler{
		service:   service,
		normalize: normalize,
		uploads:   &uploader{tempDir: tempDir, maxSizeMB: maxSizeMB, log: log},
		log:       log,
	}
}

type challengeRequest struct {
	Username string `json:"username"`
}

// IssueChallenge handles POST /challenges
func (h *LoginHandler) IssueChallenge(c *fiber.Ctx) error {
	var req challengeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apiError(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
		}
	}

	ch, err := h.service.IssueChallenge(c.UserContext(), req.Username)
	if err != nil {
		return fromError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ch)
}

// Login handles POST /login: a multipart form with challenge_id, an
// optional username and the recorded file.
func (h *LoginHandler) Login(c *fiber.Ctx) error {
	challengeID := c.FormValue("challenge_id")
	if challengeID == "" {
		return apiError(c, fiber.StatusBadRequest, "challenge_id is required", "ERR_NO_CHALLENGE")
	}

	tempPath, ok, err := h.uploads.save(c)
	if !ok {
		return err
	}

	normalizedPath, err := h.normalize(c.UserContext(), tempPath, h.uploads.tempDir)
	if err != nil {
		h.uploads.remove(tempPath)
		h.log.Errorf("Audio normalization failed: %v", err)
		return apiError(c, fiber.StatusBadRequest, "Could not decode the recording", "ERR_INVALID_AUDIO")
	}
	defer h.uploads.remove(tempPath, normalizedPath)

	res, err := h.service.Login(c.UserContext(), auth.LoginRequest{
		ChallengeID: challengeID,
		Username:    c.FormValue("username"),
		AudioPath:   normalizedPath,
	})
	if err != nil {
		return fromError(c, err)
	}
	return writeLoginResult(c, res)
}

func writeLoginResult(c *fiber.Ctx, res *auth.LoginResult) error {
	if !res.Passed {
		return c.Status(fiber.StatusUnauthorized).JSON(res)
	}
	return c.JSON(res)
}
