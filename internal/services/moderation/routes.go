package moderation

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/rewear-api/internal/middleware"
)

// SetupRoutes настраивает маршруты модераторов
func (s *ModerationService) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	api := app.Group("/api/moderator", authMiddleware, middleware.RequireStaff())

	api.Get("/items", s.ListItems)
	api.Patch("/items/:id/approve", s.ApproveItem)
	api.Patch("/items/:id/reject", s.RejectItem)
	api.Patch("/items/:id/pending", s.ResetItem)
	api.Patch("/items/:id/featured", s.SetFeatured)
	api.Delete("/items/:id", s.DeleteItem)
}
