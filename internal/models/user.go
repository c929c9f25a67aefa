package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultStartingPoints - баланс нового пользователя
const DefaultStartingPoints = 50

// User представляет пользователя платформы
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       *string   `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	TelegramID  *int64    `json:"-"`
	Points      int       `json:"points"`
	IsStaff     bool      `json:"is_staff"`
	CreatedAt   time.Time `json:"created_at"`
}

// Actor - аутентифицированный пользователь, от имени которого выполняется операция
type Actor struct {
	UserID  uuid.UUID
	IsStaff bool
}

// ActorOf строит Actor по пользователю
func ActorOf(u *User) Actor {
	return Actor{UserID: u.ID, IsStaff: u.IsStaff}
}

// TelegramProfile - данные пользователя из Telegram initData
type TelegramProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	PhotoURL   string
}

// DisplayName формирует отображаемое имя из профиля Telegram
func (p TelegramProfile) DisplayName() string {
	name := p.FirstName
	if p.LastName != "" {
		if name != "" {
			name += " "
		}
		name += p.LastName
	}
	if name == "" {
		name = p.Username
	}
	return name
}
