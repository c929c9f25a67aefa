package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/rewear-api/internal/ledger"
	"github.com/rajivgeraev/rewear-api/internal/models"
)

func seed(t *testing.T, s *Store) (*models.User, *models.Item) {
	t.Helper()
	ctx := context.Background()

	u := &models.User{DisplayName: "owner", Points: 50}
	require.NoError(t, s.CreateUser(ctx, u))
	it := &models.Item{OwnerID: u.ID, Title: "jacket", Available: true}
	require.NoError(t, s.CreateItem(ctx, it))
	return u, it
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, it := seed(t, s)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.AddPoints(ctx, u.ID, -20)
		require.NoError(t, err)
		require.NoError(t, tx.SetItemAvailable(ctx, it.ID, false))
		return boom
	})
	require.ErrorIs(t, err, boom)

	gotUser, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, gotUser.Points)

	gotItem, err := s.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, gotItem.Available)
}

func TestAddPointsRejectsNegativeBalance(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _ := seed(t, s)

	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.AddPoints(ctx, u.ID, -51)
		return err
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
}

func TestInsertRequestEnforcesTripleUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner, target := seed(t, s)
	_ = owner

	requester := &models.User{DisplayName: "requester", Points: 50}
	require.NoError(t, s.CreateUser(ctx, requester))
	offerA := &models.Item{OwnerID: requester.ID, Title: "a", Available: true}
	offerB := &models.Item{OwnerID: requester.ID, Title: "b", Available: true}
	require.NoError(t, s.CreateItem(ctx, offerA))
	require.NoError(t, s.CreateItem(ctx, offerB))

	insert := func(offered *uuid.UUID) error {
		return s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return tx.InsertRequest(ctx, &models.ExchangeRequest{
				RequesterID:   requester.ID,
				ItemID:        target.ID,
				OfferedItemID: offered,
				Status:        models.RequestPending,
			})
		})
	}

	require.NoError(t, insert(&offerA.ID))
	require.NoError(t, insert(&offerB.ID))
	require.NoError(t, insert(nil))

	assert.ErrorIs(t, insert(&offerA.ID), ledger.ErrDuplicate)
	assert.ErrorIs(t, insert(nil), ledger.ErrDuplicate)

	reqs, err := s.RequestsByRequester(ctx, requester.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 3)
	assert.Nil(t, reqs[0].OfferedItemID, "newest first")
}

func TestDeleteItemCascadesRequests(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner, target := seed(t, s)

	requester := &models.User{DisplayName: "requester", Points: 50}
	require.NoError(t, s.CreateUser(ctx, requester))
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertRequest(ctx, &models.ExchangeRequest{RequesterID: requester.ID, ItemID: target.ID, Status: models.RequestPending})
	}))

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.DeleteItem(ctx, target.ID)
	}))

	reqs, err := s.RequestsForOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	_, err = s.GetItem(ctx, target.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestItemsFilterAndLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	u, _ := seed(t, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateItem(ctx, &models.Item{
			OwnerID:          u.ID,
			Title:            "listed",
			Available:        true,
			Featured:         true,
			ModerationStatus: models.ModerationApproved,
		}))
	}

	listed, err := ledger.Collect(s.Items(ctx, models.ItemFilter{OnlyListed: true}))
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	all, err := ledger.Collect(s.Items(ctx, models.ItemFilter{}))
	require.NoError(t, err)
	assert.Len(t, all, 4)

	limited, err := ledger.Collect(s.Items(ctx, models.ItemFilter{OnlyFeatured: true, Limit: 2}))
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()
	email := "a@example.com"

	require.NoError(t, s.CreateUser(ctx, &models.User{Email: &email, Points: 50}))
	err := s.CreateUser(ctx, &models.User{Email: &email, Points: 50})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)
}
