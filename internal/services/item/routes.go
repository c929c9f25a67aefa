package item

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API вещей
func (s *ItemService) SetupRoutes(app *fiber.App, authMiddleware fiber.Handler) {
	api := app.Group("/api/items", authMiddleware)

	api.Post("/", s.CreateItem)
	api.Get("/", s.ListItems)

	// До /:id, иначе "featured" разберётся как ID
	api.Get("/featured", s.FeaturedItems)

	api.Get("/:id", s.GetItem)
	api.Put("/:id", s.UpdateItem)
	api.Delete("/:id", s.DeleteItem)
}
