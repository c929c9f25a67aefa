package models

import (
	"time"

	"github.com/google/uuid"
)

// ModerationStatus - статус модерации вещи
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Valid проверяет, что статус модерации допустим
func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationPending, ModerationApproved, ModerationRejected:
		return true
	}
	return false
}

// Item представляет вещь, выставленную пользователем для обмена
type Item struct {
	ID               uuid.UUID        `json:"id"`
	OwnerID          uuid.UUID        `json:"owner_id"`
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	ImageURL         *string          `json:"image_url,omitempty"`
	Featured         bool             `json:"featured"`
	Available        bool             `json:"available"`
	PointValue       *int             `json:"point_value"` // nil - вещь доступна только для обмена
	ModerationStatus ModerationStatus `json:"moderation_status"`
	CreatedAt        time.Time        `json:"created_at"`

	// Дополнительные поля для API
	Owner *User `json:"owner,omitempty"`
}

// Redeemable сообщает, можно ли получить вещь за баллы
func (i *Item) Redeemable() bool {
	return i.PointValue != nil
}

// Listed - вещь одобрена модератором и доступна для запроса
func (i *Item) Listed() bool {
	return i.Available && i.ModerationStatus == ModerationApproved
}

// ItemUpdate содержит изменяемые владельцем поля вещи
type ItemUpdate struct {
	Title       string
	Description string
	ImageURL    *string
	PointValue  *int
	Featured    *bool // nil - не менять
}

// ItemFilter задаёт выборку вещей из хранилища
type ItemFilter struct {
	OnlyListed   bool // available = true AND moderation_status = 'approved'
	OnlyFeatured bool
	Limit        int // 0 - без ограничения
}
