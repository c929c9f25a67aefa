package exchange

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API обменов. createLimiter
// ограничивает частоту создания запросов.
func (s *ExchangeService) SetupRoutes(app *fiber.App, authMiddleware, createLimiter fiber.Handler) {
	api := app.Group("/api/swaps", authMiddleware)

	api.Post("/", createLimiter, s.CreateSwap)
	api.Get("/", s.GetMySwaps)
	api.Patch("/:id/approve", s.ApproveSwap)
	api.Patch("/:id/disapprove", s.DisapproveSwap)

	app.Get("/api/my-item-swaps", authMiddleware, s.GetMyItemSwaps)
}
