package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

const requestColumns = `r.id, r.requester_id, r.item_id, r.offered_item_id, r.status, r.points_reserved, r.created_at`

func scanRequest(row pgx.Row) (*models.ExchangeRequest, error) {
	var r models.ExchangeRequest
	err := row.Scan(&r.ID, &r.RequesterID, &r.ItemID, &r.OfferedItemID, &r.Status, &r.PointsReserved, &r.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &r, nil
}

func collectRequests(rows pgx.Rows) ([]models.ExchangeRequest, error) {
	defer rows.Close()

	var out []models.ExchangeRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) RequestsByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.ExchangeRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM exchange_requests r
		WHERE r.requester_id = $1
		ORDER BY r.created_at DESC, r.id
	`, requesterID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении запросов пользователя: %w", err)
	}
	reqs, err := collectRequests(rows)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении запросов пользователя: %w", err)
	}
	return reqs, nil
}

func (s *Store) RequestsForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ExchangeRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM exchange_requests r
		JOIN items i ON i.id = r.item_id
		WHERE i.owner_id = $1
		ORDER BY r.created_at DESC, r.id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении запросов на вещи владельца: %w", err)
	}
	reqs, err := collectRequests(rows)
	if err != nil {
		return nil, fmt.Errorf("ошибка при чтении запросов на вещи владельца: %w", err)
	}
	return reqs, nil
}
