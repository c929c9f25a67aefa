// Package moderation определяет, какие вещи видны и доступны пользователям,
// и управляет статусами модерации.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/rewear-api/internal/apperr"
	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/metrics"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

// FeaturedLimit - сколько избранных вещей отдаётся на главную
const FeaturedLimit = 10

// Gate - фильтр видимости вещей
type Gate struct {
	ledger ledger.Ledger
	log    *logrus.Entry
}

// NewGate создаёт Gate
func NewGate(l ledger.Ledger, log *logrus.Entry) *Gate {
	return &Gate{ledger: l, log: log}
}

// Eligible - можно ли вообще запросить вещь: она одобрена и доступна.
// Проверка не зависит от роли: запросы на неодобренные вещи не создаются
// даже модераторами.
func Eligible(item *models.Item) bool {
	return item != nil && item.Listed()
}

// IsAcquirable сообщает, видна ли вещь зрителю и может ли он с ней работать.
// viewer == nil означает анонимного пользователя.
func IsAcquirable(item *models.Item, viewer *models.Actor) bool {
	if item == nil {
		return false
	}
	if isStaff(viewer) {
		return true
	}
	return item.Listed()
}

// VisibleItems лениво перечисляет вещи, видимые зрителю, новые первыми
func (g *Gate) VisibleItems(ctx context.Context, viewer *models.Actor) iter.Seq2[models.Item, error] {
	return g.ledger.Items(ctx, models.ItemFilter{OnlyListed: !isStaff(viewer)})
}

// FeaturedItems возвращает избранные вещи, доступные обычным пользователям
func (g *Gate) FeaturedItems(ctx context.Context) iter.Seq2[models.Item, error] {
	return g.ledger.Items(ctx, models.ItemFilter{OnlyListed: true, OnlyFeatured: true, Limit: FeaturedLimit})
}

// Item возвращает вещь, если она видна зрителю, иначе ошибку NotFound
func (g *Gate) Item(ctx context.Context, viewer *models.Actor, id uuid.UUID) (*models.Item, error) {
	item, err := g.ledger.GetItem(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "Вещь не найдена")
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	if !IsAcquirable(item, viewer) {
		return nil, apperr.New(apperr.NotFound, "Вещь не найдена")
	}
	return item, nil
}

// SetModerationStatus меняет статус модерации вещи. Отклонённая вещь
// становится недоступной; другие переходы доступность не меняют.
func (g *Gate) SetModerationStatus(ctx context.Context, actor models.Actor, itemID uuid.UUID, status models.ModerationStatus) (*models.Item, error) {
	if !CanModerate(actor) {
		return nil, apperr.New(apperr.Forbidden, "Действие доступно только модераторам")
	}
	if !status.Valid() {
		return nil, apperr.New(apperr.BadRequest, fmt.Sprintf("Недопустимый статус модерации: %q", status))
	}

	var item *models.Item
	err := g.ledger.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		items, err := tx.LockItems(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock item: %w", err)
		}
		item = items[itemID]
		if item == nil {
			return apperr.New(apperr.NotFound, "Вещь не найдена")
		}

		if err := tx.SetModerationStatus(ctx, itemID, status); err != nil {
			return fmt.Errorf("set moderation status: %w", err)
		}
		item.ModerationStatus = status

		if status == models.ModerationRejected && item.Available {
			if err := tx.SetItemAvailable(ctx, itemID, false); err != nil {
				return fmt.Errorf("set item unavailable: %w", err)
			}
			item.Available = false
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordModeration(string(status))
	g.log.WithFields(logrus.Fields{
		"item_id":      itemID,
		"moderator_id": actor.UserID,
		"status":       status,
	}).Info("Статус модерации изменён")

	return item, nil
}

func isStaff(viewer *models.Actor) bool {
	return viewer != nil && viewer.IsStaff
}
