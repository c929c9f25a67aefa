// Package ledger описывает хранилище пользователей, вещей и запросов на обмен.
//
// Балансы и доступность вещей меняются только внутри транзакции Tx, которую
// открывает движок обменов. Реализации: internal/db (PostgreSQL) и
// internal/memstore (память, для разработки и тестов).
package ledger

import (
	"context"
	"errors"
	"iter"

	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

var (
	// ErrNotFound - запись не найдена
	ErrNotFound = errors.New("ledger: record not found")
	// ErrDuplicate - нарушено ограничение уникальности
	ErrDuplicate = errors.New("ledger: duplicate record")
	// ErrInsufficientBalance - операция увела бы баланс в минус
	ErrInsufficientBalance = errors.New("ledger: balance would become negative")
)

// Ledger - хранилище платформы
type Ledger interface {
	// InTx выполняет fn в одной изолированной транзакции. Если fn вернула
	// ошибку, ни одно изменение не становится видимым.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile, startingPoints int) (*models.User, error)

	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	UpdateItem(ctx context.Context, id uuid.UUID, upd models.ItemUpdate) (*models.Item, error)
	// Items лениво перечисляет вещи, новые первыми
	Items(ctx context.Context, filter models.ItemFilter) iter.Seq2[models.Item, error]

	// RequestsByRequester возвращает запросы пользователя, новые первыми
	RequestsByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.ExchangeRequest, error)
	// RequestsForOwner возвращает запросы на вещи владельца, новые первыми
	RequestsForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ExchangeRequest, error)
}

// Tx - операции внутри транзакции. Lock* блокируют прочитанные строки до
// конца транзакции.
type Tx interface {
	LockUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	// LockItems блокирует вещи в порядке возрастания id. Отсутствующие id
	// просто не попадают в результат.
	LockItems(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Item, error)
	LockRequest(ctx context.Context, id uuid.UUID) (*models.ExchangeRequest, error)
	// LockPendingRequestsTouching блокирует ожидающие запросы, где вещь
	// является целью или предложена взамен
	LockPendingRequestsTouching(ctx context.Context, itemID uuid.UUID) ([]models.ExchangeRequest, error)

	RequestExists(ctx context.Context, requesterID, itemID uuid.UUID, offeredItemID *uuid.UUID) (bool, error)
	// ItemGivenAway сообщает, что вещь уже ушла по одобренному запросу:
	// как цель или как предложенная взамен
	ItemGivenAway(ctx context.Context, itemID uuid.UUID) (bool, error)
	// InsertRequest возвращает ErrDuplicate, если тройка
	// (requester, item, offered item) уже существует
	InsertRequest(ctx context.Context, req *models.ExchangeRequest) error
	SetRequestStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) error

	SetItemAvailable(ctx context.Context, id uuid.UUID, available bool) error
	SetModerationStatus(ctx context.Context, id uuid.UUID, status models.ModerationStatus) error
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// AddPoints меняет баланс на delta и возвращает новый баланс.
	// ErrInsufficientBalance, если баланс стал бы отрицательным.
	AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error)
}

// Collect собирает ленивую последовательность в срез
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
