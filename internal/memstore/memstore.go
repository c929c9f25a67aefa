// Package memstore - хранилище ledger.Ledger в памяти процесса.
//
// Транзакции сериализуются одним мьютексом и работают с копией состояния,
// которая подменяет основное только при успешном завершении.
package memstore

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

type userRow struct {
	models.User
	seq int64
}

type itemRow struct {
	models.Item
	seq int64
}

type requestRow struct {
	models.ExchangeRequest
	seq int64
}

type state struct {
	users    map[uuid.UUID]userRow
	items    map[uuid.UUID]itemRow
	requests map[uuid.UUID]requestRow
	seq      int64
}

func (s *state) clone() *state {
	return &state{
		users:    maps.Clone(s.users),
		items:    maps.Clone(s.items),
		requests: maps.Clone(s.requests),
		seq:      s.seq,
	}
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store - хранилище в памяти
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ ledger.Ledger = (*Store)(nil)

// New создаёт пустое хранилище
func New() *Store {
	return &Store{
		st: &state{
			users:    make(map[uuid.UUID]userRow),
			items:    make(map[uuid.UUID]itemRow),
			requests: make(map[uuid.UUID]requestRow),
		},
		now: time.Now,
	}
}

// InTx не реентерабелен: вызов InTx или других методов Store из fn приведёт к взаимоблокировке.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email != nil {
		for _, u := range s.st.users {
			if u.Email != nil && *u.Email == *user.Email {
				return ledger.ErrDuplicate
			}
		}
	}
	if user.Points < 0 {
		return ledger.ErrInsufficientBalance
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if _, exists := s.st.users[user.ID]; exists {
		return ledger.ErrDuplicate
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.st.users[user.ID] = userRow{User: *user, seq: s.st.next()}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.st.users[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	u := row.User
	return &u, nil
}

func (s *Store) UpsertTelegramUser(ctx context.Context, profile models.TelegramProfile, startingPoints int) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, row := range s.st.users {
		if row.TelegramID != nil && *row.TelegramID == profile.TelegramID {
			row.DisplayName = profile.DisplayName()
			s.st.users[id] = row
			u := row.User
			return &u, nil
		}
	}

	tgID := profile.TelegramID
	u := models.User{
		ID:          uuid.New(),
		DisplayName: profile.DisplayName(),
		TelegramID:  &tgID,
		Points:      startingPoints,
		CreatedAt:   s.now(),
	}
	s.st.users[u.ID] = userRow{User: u, seq: s.st.next()}
	return &u, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[item.OwnerID]; !ok {
		return ledger.ErrNotFound
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	if item.ModerationStatus == "" {
		item.ModerationStatus = models.ModerationPending
	}
	s.st.items[item.ID] = itemRow{Item: *item, seq: s.st.next()}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.st.items[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	it := row.Item
	return &it, nil
}

func (s *Store) UpdateItem(ctx context.Context, id uuid.UUID, upd models.ItemUpdate) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.st.items[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	row.Title = upd.Title
	row.Description = upd.Description
	row.ImageURL = upd.ImageURL
	row.PointValue = upd.PointValue
	if upd.Featured != nil {
		row.Featured = *upd.Featured
	}
	s.st.items[id] = row
	it := row.Item
	return &it, nil
}

func (s *Store) Items(ctx context.Context, filter models.ItemFilter) iter.Seq2[models.Item, error] {
	s.mu.Lock()
	rows := slices.Collect(maps.Values(s.st.items))
	s.mu.Unlock()

	slices.SortFunc(rows, func(a, b itemRow) int { return int(b.seq - a.seq) })

	return func(yield func(models.Item, error) bool) {
		n := 0
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				yield(models.Item{}, err)
				return
			}
			if filter.OnlyListed && !row.Listed() {
				continue
			}
			if filter.OnlyFeatured && !row.Featured {
				continue
			}
			if filter.Limit > 0 && n >= filter.Limit {
				return
			}
			n++
			if !yield(row.Item, nil) {
				return
			}
		}
	}
}

func (s *Store) RequestsByRequester(ctx context.Context, requesterID uuid.UUID) ([]models.ExchangeRequest, error) {
	return s.requests(func(r requestRow) bool { return r.RequesterID == requesterID }), nil
}

func (s *Store) RequestsForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.ExchangeRequest, error) {
	s.mu.Lock()
	owned := make(map[uuid.UUID]bool)
	for id, it := range s.st.items {
		if it.OwnerID == ownerID {
			owned[id] = true
		}
	}
	s.mu.Unlock()

	return s.requests(func(r requestRow) bool { return owned[r.ItemID] }), nil
}

func (s *Store) requests(match func(requestRow) bool) []models.ExchangeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []requestRow
	for _, r := range s.st.requests {
		if match(r) {
			rows = append(rows, r)
		}
	}
	slices.SortFunc(rows, func(a, b requestRow) int { return int(b.seq - a.seq) })

	out := make([]models.ExchangeRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ExchangeRequest)
	}
	return out
}
