package moderation

import "github.com/rajivgeraev/rewear-api/internal/models"

// CanEditItem - редактировать вещь может только её владелец
func CanEditItem(actor models.Actor, item *models.Item) bool {
	return item != nil && item.OwnerID == actor.UserID
}

// CanDeleteItem - удалить вещь может владелец или модератор
func CanDeleteItem(actor models.Actor, item *models.Item) bool {
	return item != nil && (item.OwnerID == actor.UserID || actor.IsStaff)
}

// CanFeature - отмечать вещи как избранные могут только модераторы
func CanFeature(actor models.Actor) bool {
	return actor.IsStaff
}

// CanModerate - менять статус модерации могут только модераторы
func CanModerate(actor models.Actor) bool {
	return actor.IsStaff
}

// CanDecideRequest - одобрить или отклонить запрос может только владелец запрошенной вещи.
// Права модератора здесь не действуют.
func CanDecideRequest(actor models.Actor, item *models.Item) bool {
	return item != nil && item.OwnerID == actor.UserID
}
