package db

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

const itemColumns = `id, owner_id, title, description, image_url, featured, available,
	point_value, moderation_status, created_at`

func scanItem(row pgx.Row) (*models.Item, error) {
	var it models.Item
	err := row.Scan(
		&it.ID, &it.OwnerID, &it.Title, &it.Description, &it.ImageURL, &it.Featured,
		&it.Available, &it.PointValue, &it.ModerationStatus, &it.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &it, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.ModerationStatus == "" {
		item.ModerationStatus = models.ModerationPending
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO items (id, owner_id, title, description, image_url, featured, available, point_value, moderation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, item.ID, item.OwnerID, item.Title, item.Description, item.ImageURL, item.Featured,
		item.Available, item.PointValue, item.ModerationStatus).Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка при создании вещи: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении вещи: %w", err)
	}
	return it, nil
}

// UpdateItem меняет поля, которые редактирует владелец. featured меняется,
// только если upd.Featured задан.
func (s *Store) UpdateItem(ctx context.Context, id uuid.UUID, upd models.ItemUpdate) (*models.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `
		UPDATE items
		SET title = $2, description = $3, image_url = $4, point_value = $5,
			featured = COALESCE($6, featured)
		WHERE id = $1
		RETURNING `+itemColumns,
		id, upd.Title, upd.Description, upd.ImageURL, upd.PointValue, upd.Featured))
	if err != nil {
		return nil, fmt.Errorf("ошибка при обновлении вещи: %w", err)
	}
	return it, nil
}

// Items читает вещи по мере перебора; соединение освобождается, когда
// перебор закончен или прерван
func (s *Store) Items(ctx context.Context, filter models.ItemFilter) iter.Seq2[models.Item, error] {
	var (
		where []string
		args  []any
	)
	if filter.OnlyListed {
		where = append(where, `available AND moderation_status = 'approved'`)
	}
	if filter.OnlyFeatured {
		where = append(where, `featured`)
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	return func(yield func(models.Item, error) bool) {
		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			yield(models.Item{}, fmt.Errorf("ошибка при получении вещей: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			it, err := scanItem(rows)
			if err != nil {
				yield(models.Item{}, fmt.Errorf("ошибка при чтении вещи: %w", err))
				return
			}
			if !yield(*it, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.Item{}, fmt.Errorf("ошибка при получении вещей: %w", err))
		}
	}
}
