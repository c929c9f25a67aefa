package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

const actorKey = "actor"

// UserReader - источник пользователей для проверки токена
type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthMiddleware создаёт middleware для проверки JWT. Роль пользователя
// читается из хранилища на каждый запрос, токен хранит только ID.
func AuthMiddleware(jwtService *utils.JWTService, users UserReader, log *logrus.Entry) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization header",
			})
		}

		// Проверяем Bearer токен
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid authorization header format",
			})
		}

		userID, err := jwtService.ExtractUserID(parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		ctx, cancel := utils.GetContext()
		defer cancel()

		user, err := users.GetUser(ctx, userID)
		if errors.Is(err, ledger.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "User not found",
			})
		}
		if err != nil {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка при загрузке пользователя")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to load user",
			})
		}

		SetActor(c, models.ActorOf(user))
		return c.Next()
	}
}

// ActorFrom возвращает аутентифицированного пользователя запроса
func ActorFrom(c fiber.Ctx) (models.Actor, bool) {
	actor, ok := c.Locals(actorKey).(models.Actor)
	return actor, ok
}

// SetActor кладёт пользователя в контекст запроса
func SetActor(c fiber.Ctx, actor models.Actor) {
	c.Locals(actorKey, actor)
}

// RequireStaff пропускает только модераторов. Ставится после AuthMiddleware.
func RequireStaff() fiber.Handler {
	return func(c fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Пользователь не авторизован",
			})
		}
		if !actor.IsStaff {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Действие доступно только модераторам",
			})
		}
		return c.Next()
	}
}
