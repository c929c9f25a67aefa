package item

import (
	"strings"

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

// ItemService представляет сервис для работы с вещами
type ItemService struct {
	ledger ledger.Ledger
	gate   *moderation.Gate
	engine *exchange.Engine
	log    *logrus.Entry
}

// NewItemService создает новый экземпляр ItemService
func NewItemService(l ledger.Ledger, gate *moderation.Gate, engine *exchange.Engine, log *logrus.Entry) *ItemService {
	return &ItemService{ledger: l, gate: gate, engine: engine, log: log}
}

// itemRequest - тело запроса создания и обновления вещи
type itemRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    *string `json:"image_url"`
	PointValue  *int    `json:"point_value"`
	Featured    *bool   `json:"featured"`
}

func (r *itemRequest) validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return apperr.New(apperr.BadRequest, "Название обязательно")
	}
	if r.PointValue != nil && *r.PointValue < 0 {
		return apperr.New(apperr.BadRequest, "Стоимость в баллах не может быть отрицательной")
	}
	return nil
}

// CreateItem обрабатывает создание новой вещи. Вещь попадает на модерацию.
func (s *ItemService) CreateItem(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	var body itemRequest
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	if err := body.validate(); err != nil {
		return respond.Error(c, s.log, err)
	}
	if body.Featured != nil && *body.Featured && !moderation.CanFeature(actor) {
		return respond.Error(c, s.log, apperr.New(apperr.Forbidden, "Отмечать вещи как избранные могут только модераторы"))
	}

	it := &models.Item{
		OwnerID:          actor.UserID,
		Title:            body.Title,
		Description:      body.Description,
		ImageURL:         body.ImageURL,
		PointValue:       body.PointValue,
		Featured:         body.Featured != nil && *body.Featured,
		Available:        true,
		ModerationStatus: models.ModerationPending,
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	if err := s.ledger.CreateItem(ctx, it); err != nil {
		return respond.Error(c, s.log, err)
	}

	s.log.WithFields(logrus.Fields{"item_id": it.ID, "owner_id": it.OwnerID}).Info("Вещь создана")
	return c.Status(fiber.StatusCreated).JSON(it)
}

// ListItems возвращает вещи, видимые пользователю, новые первыми
func (s *ItemService) ListItems(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	items, err := ledger.Collect(s.gate.VisibleItems(ctx, &actor))
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	return c.JSON(fiber.Map{"items": nonNil(items)})
}

// FeaturedItems возвращает избранные вещи для главной страницы
func (s *ItemService) FeaturedItems(c fiber.Ctx) error {
	ctx, cancel := utils.GetContext()
	defer cancel()

	items, err := ledger.Collect(s.gate.FeaturedItems(ctx))
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	return c.JSON(fiber.Map{"items": nonNil(items)})
}

// GetItem возвращает вещь вместе с владельцем
func (s *ItemService) GetItem(c fiber.Ctx) error {
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

	it, err := s.gate.Item(ctx, &actor, id)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	owner, err := s.ledger.GetUser(ctx, it.OwnerID)
	if err == nil {
		it.Owner = owner
	}
	return c.JSON(it)
}

// UpdateItem заменяет редактируемые поля вещи. Менять их может только
// владелец, флаг featured - только модератор. Доступность и статус модерации
// этим запросом не меняются.
func (s *ItemService) UpdateItem(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	id, err := respond.ParamID(c, "id")
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	var body itemRequest
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}
	if err := body.validate(); err != nil {
		return respond.Error(c, s.log, err)
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	current, err := s.ledger.GetItem(ctx, id)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	if !moderation.CanEditItem(actor, current) {
		return respond.Error(c, s.log, apperr.New(apperr.Forbidden, "Редактировать вещь может только её владелец"))
	}
	if body.Featured != nil && *body.Featured != current.Featured && !moderation.CanFeature(actor) {
		return respond.Error(c, s.log, apperr.New(apperr.Forbidden, "Отмечать вещи как избранные могут только модераторы"))
	}

	updated, err := s.ledger.UpdateItem(ctx, id, models.ItemUpdate{
		Title:       body.Title,
		Description: body.Description,
		ImageURL:    body.ImageURL,
		PointValue:  body.PointValue,
		Featured:    body.Featured,
	})
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	s.log.WithFields(logrus.Fields{"item_id": id, "owner_id": actor.UserID}).Info("Вещь обновлена")
	return c.JSON(updated)
}

// DeleteItem удаляет вещь; ожидающие запросы на неё отменяются с возвратом резерва
func (s *ItemService) DeleteItem(c fiber.Ctx) error {
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

func nonNil(items []models.Item) []models.Item {
	if items == nil {
		return []models.Item{}
	}
	return items
}
