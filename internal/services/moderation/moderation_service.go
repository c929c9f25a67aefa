package moderation

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/apperr"
	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/moderation"
	"github.com/rajivgeraev/rewear-api/internal/services/respond"
	"github.com/rajivgeraev/rewear-api/internal/utils"
)

// ModerationService - эндпоинты модераторов
type ModerationService struct {
	ledger ledger.Ledger
	gate   *moderation.Gate
	engine *exchange.Engine
	log    *logrus.Entry
}

// NewModerationService создает новый экземпляр ModerationService
func NewModerationService(l ledger.Ledger, gate *moderation.Gate, engine *exchange.Engine, log *logrus.Entry) *ModerationService {
	return &ModerationService{ledger: l, gate: gate, engine: engine, log: log}
}

// ListItems возвращает все вещи независимо от статуса, новые первыми
func (s *ModerationService) ListItems(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	var status models.ModerationStatus
	if raw := c.Query("status"); raw != "" {
		status = models.ModerationStatus(raw)
		if !status.Valid() {
			return respond.Error(c, s.log, apperr.New(apperr.BadRequest, "Недопустимый статус модерации"))
		}
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	items := []models.Item{}
	for it, err := range s.gate.VisibleItems(ctx, &actor) {
		if err != nil {
			return respond.Error(c, s.log, err)
		}
		if status != "" && it.ModerationStatus != status {
			continue
		}
		items = append(items, it)
	}
	return c.JSON(fiber.Map{"items": items})
}

// ApproveItem одобряет вещь
func (s *ModerationService) ApproveItem(c fiber.Ctx) error {
	return s.setStatus(c, models.ModerationApproved)
}

// RejectItem отклоняет вещь; она снимается с обмена
func (s *ModerationService) RejectItem(c fiber.Ctx) error {
	return s.setStatus(c, models.ModerationRejected)
}

// ResetItem возвращает вещь на модерацию
func (s *ModerationService) ResetItem(c fiber.Ctx) error {
	return s.setStatus(c, models.ModerationPending)
}

func (s *ModerationService) setStatus(c fiber.Ctx, status models.ModerationStatus) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	id, err := respond.ParamID(c, "id")
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	it, err := s.gate.SetModerationStatus(ctx, actor, id, status)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	return c.JSON(it)
}

// SetFeatured отмечает вещь как избранную или снимает отметку
func (s *ModerationService) SetFeatured(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	if !moderation.CanFeature(actor) {
		return respond.Error(c, s.log, apperr.New(apperr.Forbidden, "Действие доступно только модераторам"))
	}
	id, err := respond.ParamID(c, "id")
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	var body struct {
		Featured bool `json:"featured"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	current, err := s.ledger.GetItem(ctx, id)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	updated, err := s.ledger.UpdateItem(ctx, id, models.ItemUpdate{
		Title:       current.Title,
		Description: current.Description,
		ImageURL:    current.ImageURL,
		PointValue:  current.PointValue,
		Featured:    &body.Featured,
	})
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	s.log.WithFields(logrus.Fields{"item_id": id, "moderator_id": actor.UserID, "featured": body.Featured}).Info("Отметка избранного изменена")
	return c.JSON(updated)
}

// DeleteItem удаляет любую вещь
func (s *ModerationService) DeleteItem(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	id, err := respond.ParamID(c, "id")
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	if err := s.engine.DeleteItem(ctx, actor, id); err != nil {
		return respond.Error(c, s.log, err)
	}
	return c.JSON(fiber.Map{"message": "Вещь удалена"})
}
