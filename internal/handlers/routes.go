package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Register mounts every endpoint on app
func Register(app fiber.Router, info *InfoHandler, login *LoginHandler, users *UserHandler, stream *StreamHandler) {
	app.Get("/health", info.Health)
	app.Get("/ready", info.Ready)
	app.Get("/words", info.Words)
	app.Get("/enrollment-text", info.EnrollmentText)
	app.Get("/attempts", info.Attempts)
	app.Get("/samples/*", info.Sample)
	app.Get("/logs", info.Logs)

	app.Post("/challenges", login.IssueChallenge)
	app.Post("/login", login.Login)

	app.Post("/users", users.Create)
	app.Get("/users", users.List)
	app.Get("/users/:username", users.Status)
	app.Patch("/users/:username", users.Update)
	app.Delete("/users/:username", users.Delete)
	app.Post("/users/:username/enroll", users.Enroll)
	app.Post("/users/:username/reset", users.Reset)
	app.Get("/jobs/:id", users.Job)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/login", websocket.New(stream.Handle))
}
