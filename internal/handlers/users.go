package handlers

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/auth"
	"github.com/codebuildervaibhav/hillmyna/internal/queue"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

// UserService manages users and their voice profiles.
type UserService interface {
	CreateUser(ctx context.Context, nu auth.NewUser) (*types.User, error)
	DeleteUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]*types.User, error)
	User(ctx context.Context, username string) (*types.User, error)
	UserStatus(ctx context.Context, username string) (*auth.UserStatus, error)
	ResetEnrollments(ctx context.Context, username string) error
	SetUserEnabled(ctx context.Context, username string, enabled bool) error
}

// JobQueue runs enrollment jobs in the background.
type JobQueue interface {
	Enqueue(job *queue.EnrollJob) error
	Get(id string) (queue.EnrollJob, bool)
}

// UserHandler handles user management and enrollment
type UserHandler struct {
	service UserService
	jobs    JobQueue
	uploads *uploader
	log     *logrus.Entry
}

// NewUserHandler creates a new user handler
func NewUserHandler(service UserService, jobs JobQueue, tempDir string, maxSizeMB int, log *logrus.Entry) *UserHandler {
	return &UserHandler{
		service: service,
		jobs:    jobs,
		uploads: &uploader{tempDir: tempDir, maxSizeMB: maxSizeMB, log: log},
		log:     log,
	}
}

// Create handles POST /users
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req auth.NewUser
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "Invalid request body", "ERR_INVALID_BODY")
	}

	u, err := h.service.CreateUser(c.UserContext(), req)
	if err != nil {
		return fromError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(u)
}

// List handles GET /users
func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.service.ListUsers(c.UserContext())
	if err != nil {
		return fromError(c, err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// Status handles GET /users/:username
func (h *UserHandler) Status(c *fiber.Ctx) error {
	st, err := h.service.UserStatus(c.UserContext(), c.Params("username"))
	if err != nil {
		return fromError(c, err)
	}
	return c.JSON(st)
}

type updateRequest struct {
	Enabled *bool `json:"enabled"`
}

// Update handles PATCH /users/:username
func (h *UserHandler) Update(c *fiber.Ctx) error {
	var req updateRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return apiError(c, fiber.StatusBadRequest, "Body must contain \"enabled\"", "ERR_INVALID_BODY")
	}

	username := c.Params("username")
	if err := h.service.SetUserEnabled(c.UserContext(), username, *req.Enabled); err != nil {
		return fromError(c, err)
	}
	return c.JSON(fiber.Map{"username": username, "enabled": *req.Enabled})
}

// Delete handles DELETE /users/:username
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeleteUser(c.UserContext(), c.Params("username")); err != nil {
		return fromError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Reset handles POST /users/:username/reset
func (h *UserHandler) Reset(c *fiber.Ctx) error {
	if err := h.service.ResetEnrollments(c.UserContext(), c.Params("username")); err != nil {
		return fromError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Enrollments reset"})
}

// Enroll handles POST /users/:username/enroll. The sample is processed in
// the background; the returned job id can be polled on /jobs/:id.
func (h *UserHandler) Enroll(c *fiber.Ctx) error {
	username := c.Params("username")
	// fail fast on unknown users before accepting the upload
	if _, err := h.service.User(c.UserContext(), username); err != nil {
		return fromError(c, err)
	}

	tempPath, ok, err := h.uploads.save(c)
	if !ok {
		return err
	}

	job := queue.NewEnrollJob(uuid.New().String(), username, tempPath)
	if err := h.jobs.Enqueue(job); err != nil {
		h.uploads.remove(tempPath)
		return fromError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": fmt.Sprintf("Enrollment sample for %s queued", username),
	})
}

// Job handles GET /jobs/:id
func (h *UserHandler) Job(c *fiber.Ctx) error {
	job, ok := h.jobs.Get(c.Params("id"))
	if !ok {
		return apiError(c, fiber.StatusNotFound, "Job not found", "ERR_JOB_NOT_FOUND")
	}
	return c.JSON(job)
}
