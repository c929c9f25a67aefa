package exchange

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/exchange"
	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/services/respond"
	"github.com/rajivgeraev/rewear-api/internal/utils"
	"github.com/rajivgeraev/rewear-api/internal/websocket"
)

// Notifier доставляет события пользователям в реальном времени
type Notifier interface {
	SendToUser(userID uuid.UUID, event websocket.Event)
}

// ExchangeService представляет сервис для работы с обменами
type ExchangeService struct {
	engine   *exchange.Engine
	ledger   ledger.Ledger
	notifier Notifier
	log      *logrus.Entry
}

// NewExchangeService создает новый экземпляр ExchangeService
func NewExchangeService(engine *exchange.Engine, l ledger.Ledger, notifier Notifier, log *logrus.Entry) *ExchangeService {
	return &ExchangeService{engine: engine, ledger: l, notifier: notifier, log: log}
}

// CreateSwap создает запрос на вещь: обмен, если указан offered_item_id, иначе за баллы
func (s *ExchangeService) CreateSwap(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	var body struct {
		ItemID        string  `json:"item_id"`
		OfferedItemID *string `json:"offered_item_id"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Неверный формат данных"})
	}

	itemID, err := respond.ParseID(body.ItemID, "item_id")
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	var offeredItemID *uuid.UUID
	if body.OfferedItemID != nil && *body.OfferedItemID != "" {
		id, err := respond.ParseID(*body.OfferedItemID, "offered_item_id")
		if err != nil {
			return respond.Error(c, s.log, err)
		}
		offeredItemID = &id
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	req, err := s.engine.CreateRequest(ctx, actor, itemID, offeredItemID)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	s.enrich(ctx, []*models.ExchangeRequest{req})
	if req.Item != nil {
		s.notifier.SendToUser(req.Item.OwnerID, websocket.ExchangeEvent(websocket.EventExchangeRequested, req))
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetMySwaps возвращает запросы, созданные пользователем
func (s *ExchangeService) GetMySwaps(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	reqs, err := s.engine.ListRequestsByRequester(ctx, actor)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	return c.JSON(fiber.Map{"swaps": s.enrichAll(ctx, reqs)})
}

// GetMyItemSwaps возвращает запросы на вещи пользователя
func (s *ExchangeService) GetMyItemSwaps(c fiber.Ctx) error {
	actor, err := respond.Actor(c)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	ctx, cancel := utils.GetContext()
	defer cancel()

	reqs, err := s.engine.ListRequestsForMyItems(ctx, actor)
	if err != nil {
		return respond.Error(c, s.log, err)
	}
	return c.JSON(fiber.Map{"swaps": s.enrichAll(ctx, reqs)})
}

// ApproveSwap одобряет запрос на вещь пользователя
func (s *ExchangeService) ApproveSwap(c fiber.Ctx) error {
	return s.decide(c, s.engine.ApproveRequest, websocket.EventExchangeApproved)
}

// DisapproveSwap отклоняет запрос на вещь пользователя
func (s *ExchangeService) DisapproveSwap(c fiber.Ctx) error {
	return s.decide(c, s.engine.DisapproveRequest, websocket.EventExchangeRejected)
}

type decision func(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.ExchangeRequest, error)

func (s *ExchangeService) decide(c fiber.Ctx, decide decision, event websocket.EventType) error {
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

	req, err := decide(ctx, actor, id)
	if err != nil {
		return respond.Error(c, s.log, err)
	}

	s.enrich(ctx, []*models.ExchangeRequest{req})
	s.notifier.SendToUser(req.RequesterID, websocket.ExchangeEvent(event, req))
	return c.JSON(req)
}

func (s *ExchangeService) enrichAll(ctx context.Context, reqs []models.ExchangeRequest) []models.ExchangeRequest {
	ptrs := make([]*models.ExchangeRequest, len(reqs))
	for i := range reqs {
		ptrs[i] = &reqs[i]
	}
	s.enrich(ctx, ptrs)
	if reqs == nil {
		return []models.ExchangeRequest{}
	}
	return reqs
}

// enrich добавляет к запросам вещи и запрашивающего. Ошибки чтения не
// прерывают ответ: запрос отдаётся без вложенных данных.
func (s *ExchangeService) enrich(ctx context.Context, reqs []*models.ExchangeRequest) {
	items := make(map[uuid.UUID]*models.Item)
	users := make(map[uuid.UUID]*models.User)

	getItem := func(id uuid.UUID) *models.Item {
		if it, ok := items[id]; ok {
			return it
		}
		it, err := s.ledger.GetItem(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("item_id", id).Debug("Не удалось загрузить вещь")
		}
		items[id] = it
		return it
	}
	getUser := func(id uuid.UUID) *models.User {
		if u, ok := users[id]; ok {
			return u
		}
		u, err := s.ledger.GetUser(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("user_id", id).Debug("Не удалось загрузить пользователя")
		}
		users[id] = u
		return u
	}

	for _, req := range reqs {
		req.Item = getItem(req.ItemID)
		if req.OfferedItemID != nil {
			req.OfferedItem = getItem(*req.OfferedItemID)
		}
		req.Requester = getUser(req.RequesterID)
	}
}
