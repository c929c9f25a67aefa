package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus - статус запроса на обмен
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
)

// ExchangeRequest представляет запрос пользователя на чужую вещь:
// обмен на свою вещь (OfferedItemID задан) или покупку за баллы
type ExchangeRequest struct {
	ID             uuid.UUID     `json:"id"`
	RequesterID    uuid.UUID     `json:"requester_id"`
	ItemID         uuid.UUID     `json:"item_id"`
	OfferedItemID  *uuid.UUID    `json:"offered_item_id,omitempty"`
	Status         RequestStatus `json:"status"`
	PointsReserved int           `json:"points_reserved"`
	CreatedAt      time.Time     `json:"created_at"`

	// Дополнительные поля для API
	Requester   *User `json:"requester,omitempty"`
	Item        *Item `json:"item,omitempty"`
	OfferedItem *Item `json:"offered_item,omitempty"`
}

// IsTrade - запрос предлагает вещь взамен, а не баллы
func (r *ExchangeRequest) IsTrade() bool {
	return r.OfferedItemID != nil
}
