package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/rewear-api/internal/models"
)

const userColumns = `id, email, display_name, telegram_id, points, is_staff, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.TelegramID, &u.Points, &u.IsStaff, &u.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// CreateUser создаёт пользователя. ID и CreatedAt заполняются, если не заданы.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, display_name, telegram_id, points, is_staff)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, user.ID, user.Email, user.DisplayName, user.TelegramID, user.Points, user.IsStaff).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка при создании пользователя: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}
	return u, nil
}

// UpsertTelegramUser находит пользователя по Telegram ID или создаёт нового
// со стартовым балансом. У существующего обновляется только отображаемое имя.
func (s *Store) UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile, startingPoints int) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (id, display_name, telegram_id, points)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING `+userColumns,
		uuid.New(), profile.DisplayName(), profile.TelegramID, startingPoints))
	if err != nil {
		return nil, fmt.Errorf("ошибка при сохранении Telegram пользователя: %w", err)
	}
	return u, nil
}
