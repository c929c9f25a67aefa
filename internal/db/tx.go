package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

// pgTx - операции движка внутри транзакции pgx
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, fmt.Errorf("lock user %s: %w", id, err)
	}
	return u, nil
}

// LockItems блокирует строки в порядке id, чтобы встречные транзакции не
// ждали друг друга по кругу
func (t *pgTx) LockItems(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := t.tx.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`, keys)
	if err != nil {
		return nil, fmt.Errorf("lock items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]*models.Item, len(ids))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("lock items: %w", err)
		}
		out[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock items: %w", err)
	}
	return out, nil
}

func (t *pgTx) LockRequest(ctx context.Context, id uuid.UUID) (*models.ExchangeRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx, `
		SELECT `+requestColumns+` FROM exchange_requests r WHERE r.id = $1 FOR UPDATE
	`, id))
	if err != nil {
		return nil, fmt.Errorf("lock request %s: %w", id, err)
	}
	return r, nil
}

func (t *pgTx) LockPendingRequestsTouching(ctx context.Context, itemID uuid.UUID) ([]models.ExchangeRequest, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+requestColumns+`
		FROM exchange_requests r
		WHERE r.status = 'pending' AND (r.item_id = $1 OR r.offered_item_id = $1)
		ORDER BY r.id
		FOR UPDATE
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("lock pending requests: %w", err)
	}
	reqs, err := collectRequests(rows)
	if err != nil {
		return nil, fmt.Errorf("lock pending requests: %w", err)
	}
	return reqs, nil
}

func (t *pgTx) RequestExists(ctx context.Context, requesterID, itemID uuid.UUID, offeredItemID *uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM exchange_requests
			WHERE requester_id = $1 AND item_id = $2 AND offered_item_id IS NOT DISTINCT FROM $3::uuid
		)
	`, requesterID, itemID, offeredItemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check request: %w", err)
	}
	return exists, nil
}

func (t *pgTx) ItemGivenAway(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var given bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM exchange_requests
			WHERE status = 'approved' AND (item_id = $1 OR offered_item_id = $1)
		)
	`, itemID).Scan(&given)
	if err != nil {
		return false, fmt.Errorf("check item given away: %w", err)
	}
	return given, nil
}

func (t *pgTx) InsertRequest(ctx context.Context, req *models.ExchangeRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	err := t.tx.QueryRow(ctx, `
		INSERT INTO exchange_requests (id, requester_id, item_id, offered_item_id, status, points_reserved)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, req.ID, req.RequesterID, req.ItemID, req.OfferedItemID, req.Status, req.PointsReserved).Scan(&req.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert request: %w", mapError(err))
	}
	return nil
}

func (t *pgTx) SetRequestStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) error {
	return t.execOne(ctx, `UPDATE exchange_requests SET status = $2 WHERE id = $1`, id, status)
}

func (t *pgTx) SetItemAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	return t.execOne(ctx, `UPDATE items SET available = $2 WHERE id = $1`, id, available)
}

func (t *pgTx) SetModerationStatus(ctx context.Context, id uuid.UUID, status models.ModerationStatus) error {
	return t.execOne(ctx, `UPDATE items SET moderation_status = $2 WHERE id = $1`, id, status)
}

// DeleteItem удаляет вещь; запросы, где она цель или предложение, удаляются каскадно
func (t *pgTx) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return t.execOne(ctx, `DELETE FROM items WHERE id = $1`, id)
}

func (t *pgTx) AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	var balance int
	err := t.tx.QueryRow(ctx, `
		UPDATE users SET points = points + $2 WHERE id = $1 RETURNING points
	`, userID, delta).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("add points: %w", mapError(err))
	}
	return balance, nil
}

// execOne выполняет изменение одной строки; ledger.ErrNotFound, если строки нет
func (t *pgTx) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
