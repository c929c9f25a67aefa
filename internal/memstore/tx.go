package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

// tx работает с копией состояния; блокировки не нужны, так как Store.InTx
// держит мьютекс всю транзакцию
type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) LockUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row, ok := t.st.users[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	u := row.User
	return &u, nil
}

func (t *tx) LockItems(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	out := make(map[uuid.UUID]*models.Item, len(ids))
	for _, id := range ids {
		row, ok := t.st.items[id]
		if !ok {
			continue
		}
		it := row.Item
		out[id] = &it
	}
	return out, nil
}

func (t *tx) LockRequest(ctx context.Context, id uuid.UUID) (*models.ExchangeRequest, error) {
	row, ok := t.st.requests[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	r := row.ExchangeRequest
	return &r, nil
}

func (t *tx) LockPendingRequestsTouching(ctx context.Context, itemID uuid.UUID) ([]models.ExchangeRequest, error) {
	var rows []requestRow
	for _, r := range t.st.requests {
		if r.Status != models.RequestPending {
			continue
		}
		if r.ItemID == itemID || (r.OfferedItemID != nil && *r.OfferedItemID == itemID) {
			rows = append(rows, r)
		}
	}
	slices.SortFunc(rows, func(a, b requestRow) int { return int(a.seq - b.seq) })

	out := make([]models.ExchangeRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ExchangeRequest)
	}
	return out, nil
}

func (t *tx) RequestExists(ctx context.Context, requesterID, itemID uuid.UUID, offeredItemID *uuid.UUID) (bool, error) {
	for _, r := range t.st.requests {
		if sameTriple(r.ExchangeRequest, requesterID, itemID, offeredItemID) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ItemGivenAway(ctx context.Context, itemID uuid.UUID) (bool, error) {
	for _, r := range t.st.requests {
		if r.Status != models.RequestApproved {
			continue
		}
		if r.ItemID == itemID || (r.OfferedItemID != nil && *r.OfferedItemID == itemID) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertRequest(ctx context.Context, req *models.ExchangeRequest) error {
	if exists, _ := t.RequestExists(ctx, req.RequesterID, req.ItemID, req.OfferedItemID); exists {
		return ledger.ErrDuplicate
	}
	if _, ok := t.st.users[req.RequesterID]; !ok {
		return ledger.ErrNotFound
	}
	if _, ok := t.st.items[req.ItemID]; !ok {
		return ledger.ErrNotFound
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = t.now()
	}
	t.st.requests[req.ID] = requestRow{ExchangeRequest: *req, seq: t.st.next()}
	return nil
}

func (t *tx) SetRequestStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) error {
	row, ok := t.st.requests[id]
	if !ok {
		return ledger.ErrNotFound
	}
	row.Status = status
	t.st.requests[id] = row
	return nil
}

func (t *tx) SetItemAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	row, ok := t.st.items[id]
	if !ok {
		return ledger.ErrNotFound
	}
	row.Available = available
	t.st.items[id] = row
	return nil
}

func (t *tx) SetModerationStatus(ctx context.Context, id uuid.UUID, status models.ModerationStatus) error {
	row, ok := t.st.items[id]
	if !ok {
		return ledger.ErrNotFound
	}
	row.ModerationStatus = status
	t.st.items[id] = row
	return nil
}

// DeleteItem удаляет вещь вместе со всеми запросами, где она цель или предложение
func (t *tx) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.items[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(t.st.items, id)
	for rid, r := range t.st.requests {
		if r.ItemID == id || (r.OfferedItemID != nil && *r.OfferedItemID == id) {
			delete(t.st.requests, rid)
		}
	}
	return nil
}

func (t *tx) AddPoints(ctx context.Context, userID uuid.UUID, delta int) (int, error) {
	row, ok := t.st.users[userID]
	if !ok {
		return 0, ledger.ErrNotFound
	}
	if row.Points+delta < 0 {
		return row.Points, ledger.ErrInsufficientBalance
	}
	row.Points += delta
	t.st.users[userID] = row
	return row.Points, nil
}

func sameTriple(r models.ExchangeRequest, requesterID, itemID uuid.UUID, offeredItemID *uuid.UUID) bool {
	if r.RequesterID != requesterID || r.ItemID != itemID {
		return false
	}
	if r.OfferedItemID == nil || offeredItemID == nil {
		return r.OfferedItemID == nil && offeredItemID == nil
	}
	return *r.OfferedItemID == *offeredItemID
}
