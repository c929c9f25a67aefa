// Package exchange реализует движок обменов: создание, одобрение и отклонение
// запросов на вещи с резервированием вещей и баллов.
//
// Резерв делается сразу при создании запроса: предложенная вещь становится
// недоступной, баллы списываются с запрашивающего. Одобрение завершает
// передачу, отклонение возвращает резерв. Каждая операция выполняется в одной
// транзакции хранилища, так что при ошибке резерв откатывается вместе с ней.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/apperr"
	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/metrics"
	"github.com/rajivgeraev/rewear-api/internal/models"
	"github.com/rajivgeraev/rewear-api/internal/moderation"
)

// PointsForGivingItem - награда владельцу за вещь, отданную в обмен на другую вещь
const PointsForGivingItem = 10

// Config - настройки движка
type Config struct {
	PointsForGivingItem int
}

// Engine - движок обменов
type Engine struct {
	ledger          ledger.Ledger
	log             *logrus.Entry
	pointsForGiving int
}

// NewEngine создаёт движок обменов
func NewEngine(l ledger.Ledger, log *logrus.Entry, cfg Config) *Engine {
	if cfg.PointsForGivingItem <= 0 {
		cfg.PointsForGivingItem = PointsForGivingItem
	}
	return &Engine{
		ledger:          l,
		log:             log,
		pointsForGiving: cfg.PointsForGivingItem,
	}
}

// CreateRequest создаёт запрос на вещь itemID. Если offeredItemID задан,
// это обмен на свою вещь, иначе покупка за баллы.
func (e *Engine) CreateRequest(ctx context.Context, actor models.Actor, itemID uuid.UUID, offeredItemID *uuid.UUID) (req *models.ExchangeRequest, err error) {
	defer e.observe("create", time.Now(), &err)

	err = e.ledger.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		ids := []uuid.UUID{itemID}
		if offeredItemID != nil {
			ids = append(ids, *offeredItemID)
		}
		items, err := tx.LockItems(ctx, ids...)
		if err != nil {
			return fmt.Errorf("lock items: %w", err)
		}

		item := items[itemID]
		if !moderation.Eligible(item) {
			return apperr.New(apperr.NotFound, "Запрошенная вещь не найдена или недоступна")
		}
		if item.OwnerID == actor.UserID {
			return apperr.New(apperr.SelfRequestForbidden, "Нельзя запросить собственную вещь")
		}

		if offeredItemID != nil {
			req, err = e.createTrade(ctx, tx, actor, item, items[*offeredItemID])
		} else {
			req, err = e.createRedemption(ctx, tx, actor, item)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"request_id":      req.ID,
		"requester_id":    req.RequesterID,
		"item_id":         req.ItemID,
		"offered_item_id": req.OfferedItemID,
		"points_reserved": req.PointsReserved,
	}).Info("Запрос на обмен создан")

	return req, nil
}

// createTrade резервирует предложенную вещь и создаёт запрос на обмен
func (e *Engine) createTrade(ctx context.Context, tx ledger.Tx, actor models.Actor, item, offered *models.Item) (*models.ExchangeRequest, error) {
	if offered == nil || offered.OwnerID != actor.UserID {
		return nil, apperr.New(apperr.InvalidOffer, "Предложенная вещь не найдена, недоступна или принадлежит другому пользователю")
	}
	if offered.ID == item.ID {
		return nil, apperr.New(apperr.SelfOfferForbidden, "Нельзя предложить ту же вещь, которую вы запрашиваете")
	}
	if !offered.Available {
		// Повтор того же запроса: вещь уже зарезервирована под него
		exists, err := tx.RequestExists(ctx, actor.UserID, item.ID, &offered.ID)
		if err != nil {
			return nil, fmt.Errorf("check existing request: %w", err)
		}
		if exists {
			return nil, duplicateErr(true)
		}
		return nil, apperr.New(apperr.InvalidOffer, "Предложенная вещь не найдена, недоступна или принадлежит другому пользователю")
	}

	if err := tx.SetItemAvailable(ctx, offered.ID, false); err != nil {
		return nil, fmt.Errorf("reserve offered item: %w", err)
	}

	req := &models.ExchangeRequest{
		RequesterID:   actor.UserID,
		ItemID:        item.ID,
		OfferedItemID: &offered.ID,
		Status:        models.RequestPending,
	}
	if err := tx.InsertRequest(ctx, req); err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil, duplicateErr(true)
		}
		return nil, fmt.Errorf("insert request: %w", err)
	}
	return req, nil
}

// createRedemption списывает баллы и создаёт запрос на покупку за баллы
func (e *Engine) createRedemption(ctx context.Context, tx ledger.Tx, actor models.Actor, item *models.Item) (*models.ExchangeRequest, error) {
	if !item.Redeemable() {
		return nil, apperr.New(apperr.NotRedeemable, "Эту вещь нельзя получить за баллы, только обменять")
	}
	price := *item.PointValue

	requester, err := tx.LockUser(ctx, actor.UserID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "Пользователь не найден")
	}
	if err != nil {
		return nil, fmt.Errorf("lock requester: %w", err)
	}
	if requester.Points < price {
		return nil, insufficientErr(price)
	}

	if _, err := tx.AddPoints(ctx, requester.ID, -price); err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return nil, insufficientErr(price)
		}
		return nil, fmt.Errorf("reserve points: %w", err)
	}

	req := &models.ExchangeRequest{
		RequesterID:    actor.UserID,
		ItemID:         item.ID,
		Status:         models.RequestPending,
		PointsReserved: price,
	}
	if err := tx.InsertRequest(ctx, req); err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return nil, duplicateErr(false)
		}
		return nil, fmt.Errorf("insert request: %w", err)
	}
	return req, nil
}

// ApproveRequest одобряет ожидающий запрос: вещи уходят из каталога,
// владелец получает баллы. За обмен вещами начисляется PointsForGivingItem,
// за покупку - сумма, списанная при создании запроса (PointsReserved), даже
// если цену вещи с тех пор изменили. Если цену убрали совсем, начисление
// пропускается с предупреждением в логе.
//
// Если цель или предложенная вещь уже ушла по другому одобренному запросу,
// возвращается InvalidState: такой запрос можно только отклонить.
func (e *Engine) ApproveRequest(ctx context.Context, actor models.Actor, requestID uuid.UUID) (req *models.ExchangeRequest, err error) {
	defer e.observe("approve", time.Now(), &err)

	err = e.ledger.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		locked, item, offered, err := e.lockDecision(ctx, tx, actor, requestID)
		if err != nil {
			return err
		}
		req = locked
		entry := e.log.WithFields(logrus.Fields{"request_id": req.ID, "item_id": item.ID, "owner_id": item.OwnerID})

		if err := ensureNotGivenAway(ctx, tx, req); err != nil {
			return err
		}

		if err := tx.SetItemAvailable(ctx, item.ID, false); err != nil {
			return fmt.Errorf("set item unavailable: %w", err)
		}

		if req.IsTrade() {
			if offered != nil {
				if err := tx.SetItemAvailable(ctx, offered.ID, false); err != nil {
					return fmt.Errorf("set offered item unavailable: %w", err)
				}
			}
			if _, err := tx.AddPoints(ctx, item.OwnerID, e.pointsForGiving); err != nil {
				return fmt.Errorf("credit owner: %w", err)
			}
		} else if item.PointValue == nil {
			// Цену убрали после создания запроса. Запрашивающий уже заплатил,
			// владелец не получает ничего; фиксируем для разбора.
			entry.WithField("points_reserved", req.PointsReserved).
				Warn("Вещь одобрена за баллы, но цена не задана: начисление владельцу пропущено")
			metrics.RecordAnomaly("missing_point_value")
		} else {
			if _, err := tx.AddPoints(ctx, item.OwnerID, req.PointsReserved); err != nil {
				return fmt.Errorf("credit owner: %w", err)
			}
		}

		if err := tx.SetRequestStatus(ctx, req.ID, models.RequestApproved); err != nil {
			return fmt.Errorf("set request status: %w", err)
		}
		req.Status = models.RequestApproved
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"request_id": req.ID, "actor_id": actor.UserID}).Info("Запрос на обмен одобрен")
	return req, nil
}

// DisapproveRequest отклоняет ожидающий запрос и возвращает резерв:
// предложенную вещь или списанные баллы. Запрошенная вещь не меняется.
func (e *Engine) DisapproveRequest(ctx context.Context, actor models.Actor, requestID uuid.UUID) (req *models.ExchangeRequest, err error) {
	defer e.observe("disapprove", time.Now(), &err)

	err = e.ledger.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		locked, _, _, err := e.lockDecision(ctx, tx, actor, requestID)
		if err != nil {
			return err
		}
		req = locked

		if err := releaseReservation(ctx, tx, req); err != nil {
			return err
		}

		if err := tx.SetRequestStatus(ctx, req.ID, models.RequestRejected); err != nil {
			return fmt.Errorf("set request status: %w", err)
		}
		req.Status = models.RequestRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"request_id": req.ID, "actor_id": actor.UserID}).Info("Запрос на обмен отклонён")
	return req, nil
}

// lockDecision блокирует запрос и его вещи и проверяет, что actor может
// принять решение по ожидающему запросу
func (e *Engine) lockDecision(ctx context.Context, tx ledger.Tx, actor models.Actor, requestID uuid.UUID) (*models.ExchangeRequest, *models.Item, *models.Item, error) {
	req, err := tx.LockRequest(ctx, requestID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil, nil, apperr.New(apperr.NotFound, "Запрос на обмен не найден")
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("lock request: %w", err)
	}

	ids := []uuid.UUID{req.ItemID}
	if req.OfferedItemID != nil {
		ids = append(ids, *req.OfferedItemID)
	}
	items, err := tx.LockItems(ctx, ids...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("lock items: %w", err)
	}
	item := items[req.ItemID]
	if item == nil {
		return nil, nil, nil, apperr.New(apperr.NotFound, "Запрос на обмен не найден")
	}

	if !moderation.CanDecideRequest(actor, item) {
		return nil, nil, nil, apperr.New(apperr.Forbidden, "Решение по запросу может принять только владелец вещи")
	}
	if req.Status != models.RequestPending {
		return nil, nil, nil, apperr.New(apperr.InvalidState, fmt.Sprintf("Запрос уже в статусе %s", req.Status))
	}

	var offered *models.Item
	if req.OfferedItemID != nil {
		offered = items[*req.OfferedItemID]
	}
	return req, item, offered, nil
}

// ensureNotGivenAway проверяет, что вещи запроса не ушли по другому одобренному запросу
func ensureNotGivenAway(ctx context.Context, tx ledger.Tx, req *models.ExchangeRequest) error {
	ids := []uuid.UUID{req.ItemID}
	if req.OfferedItemID != nil {
		ids = append(ids, *req.OfferedItemID)
	}
	for _, id := range ids {
		given, err := tx.ItemGivenAway(ctx, id)
		if err != nil {
			return fmt.Errorf("check item %s: %w", id, err)
		}
		if given {
			return apperr.New(apperr.InvalidState, "Вещь уже передана по другому обмену, запрос можно только отклонить")
		}
	}
	return nil
}

// releaseReservation возвращает то, что было зарезервировано при создании запроса.
// Предложенная вещь, которая тем временем ушла по одобренному запросу, остаётся
// недоступной.
func releaseReservation(ctx context.Context, tx ledger.Tx, req *models.ExchangeRequest) error {
	if req.IsTrade() {
		given, err := tx.ItemGivenAway(ctx, *req.OfferedItemID)
		if err != nil {
			return fmt.Errorf("check offered item: %w", err)
		}
		if given {
			return nil
		}
		if err := tx.SetItemAvailable(ctx, *req.OfferedItemID, true); err != nil {
			return fmt.Errorf("release offered item: %w", err)
		}
		return nil
	}
	if req.PointsReserved > 0 {
		if _, err := tx.AddPoints(ctx, req.RequesterID, req.PointsReserved); err != nil {
			return fmt.Errorf("refund points: %w", err)
		}
	}
	return nil
}

// ListRequestsByRequester возвращает запросы, созданные actor, новые первыми
func (e *Engine) ListRequestsByRequester(ctx context.Context, actor models.Actor) ([]models.ExchangeRequest, error) {
	reqs, err := e.ledger.RequestsByRequester(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list requests by requester: %w", err)
	}
	return reqs, nil
}

// ListRequestsForMyItems возвращает запросы на вещи actor, новые первыми
func (e *Engine) ListRequestsForMyItems(ctx context.Context, actor models.Actor) ([]models.ExchangeRequest, error) {
	reqs, err := e.ledger.RequestsForOwner(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list requests for owner: %w", err)
	}
	return reqs, nil
}

// DeleteItem удаляет вещь вместе с запросами на неё. Резервы ожидающих
// запросов на эту вещь возвращаются запрашивающим до удаления.
func (e *Engine) DeleteItem(ctx context.Context, actor models.Actor, itemID uuid.UUID) (err error) {
	defer e.observe("delete_item", time.Now(), &err)

	released := 0
	err = e.ledger.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		pending, err := tx.LockPendingRequestsTouching(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock pending requests: %w", err)
		}
		items, err := tx.LockItems(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock item: %w", err)
		}
		item := items[itemID]
		if item == nil {
			return apperr.New(apperr.NotFound, "Вещь не найдена")
		}
		if !moderation.CanDeleteItem(actor, item) {
			return apperr.New(apperr.Forbidden, "Удалить вещь может только её владелец или модератор")
		}

		for i := range pending {
			req := &pending[i]
			// Если вещь была предложена взамен, запрос исчезает вместе с ней
			if req.ItemID != itemID {
				continue
			}
			if err := releaseReservation(ctx, tx, req); err != nil {
				return err
			}
			released++
		}

		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"item_id":           itemID,
		"actor_id":          actor.UserID,
		"released_requests": released,
	}).Info("Вещь удалена")
	return nil
}

func (e *Engine) observe(operation string, started time.Time, errp *error) {
	outcome := "ok"
	if err := *errp; err != nil {
		outcome = string(apperr.KindOf(err))
		if outcome == "" {
			outcome = "error"
			e.log.WithError(err).WithField("operation", operation).Error("Ошибка операции обмена")
		}
	}
	metrics.RecordExchange(operation, outcome, time.Since(started))
}

func duplicateErr(trade bool) error {
	if trade {
		return apperr.New(apperr.DuplicateRequest, "Вы уже запрашивали эту вещь с тем же предложением")
	}
	return apperr.New(apperr.DuplicateRequest, "Вы уже запрашивали эту вещь")
}

func insufficientErr(price int) error {
	return apperr.New(apperr.InsufficientPoints, fmt.Sprintf("Недостаточно баллов: для получения вещи нужно %d", price))
}
