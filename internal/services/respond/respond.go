// Package respond переводит ошибки операций в JSON-ответы fiber.
package respond

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/apperr"
	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/middleware"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

// Error отправляет ошибку клиенту. Ошибки бизнес-операций уходят с их
// сообщением и кодом, остальные логируются и скрываются за 500.
func Error(c fiber.Ctx, log *logrus.Entry, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	if errors.Is(err, ledger.ErrNotFound) {
		err = apperr.New(apperr.NotFound, "Не найдено")
	}

	kind := apperr.KindOf(err)
	if kind == "" {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("Ошибка обработки запроса")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Внутренняя ошибка сервера"})
	}
	return c.Status(apperr.Status(err)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  kind,
	})
}

// Actor возвращает пользователя запроса; без AuthMiddleware это 401
func Actor(c fiber.Ctx) (models.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return models.Actor{}, fiber.NewError(fiber.StatusUnauthorized, "Пользователь не авторизован")
	}
	return actor, nil
}

// ParamID разбирает UUID из параметра маршрута
func ParamID(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.BadRequest, "Неверный формат ID")
	}
	return id, nil
}

// ParseID разбирает UUID из тела запроса
func ParseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.BadRequest, "Неверный формат "+field)
	}
	return id, nil
}
