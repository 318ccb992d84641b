package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/api"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/session"
)

func TestPaymentService_Upgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("verified payment grants premium", func(t *testing.T) {
		f := newAuthFixture()
		checkout := &fakeCheckout{}
		pay := NewPaymentService(f.api, checkout, f.sessions, f.store, nil)
		_, err := f.svc.Login(ctx, "asha@example.com", "secret")
		require.NoError(t, err)

		_, err = f.store.Query(ctx, leaderboardKey, []cache.Tag{cache.T(TagLeaderboard)},
			func(context.Context) (any, error) { return []core.LeaderboardEntry{}, nil })
		require.NoError(t, err)

		require.NoError(t, pay.Upgrade(ctx))
		assert.True(t, f.sessions.Current().IsPremium)
		assert.Equal(t, 1, f.api.count("verify"))
		require.Len(t, checkout.orders, 1)
		assert.Equal(t, PremiumPriceMinor, checkout.orders[0].Amount)
		assert.Equal(t, PremiumCurrency, checkout.orders[0].Currency)

		snap, ok := f.store.Snapshot(leaderboardKey)
		require.True(t, ok)
		assert.True(t, snap.Stale)

		assert.ErrorIs(t, pay.Upgrade(ctx), ErrAlreadyPremium)
	})

	t.Run("canceled checkout never verifies", func(t *testing.T) {
		f := newAuthFixture()
		pay := NewPaymentService(f.api, &fakeCheckout{err: ErrCheckoutCanceled}, f.sessions, f.store, nil)
		_, err := f.svc.Login(ctx, "asha@example.com", "secret")
		require.NoError(t, err)

		err = pay.Upgrade(ctx)
		assert.ErrorIs(t, err, ErrCheckoutCanceled)
		assert.Zero(t, f.api.count("verify"))
		assert.False(t, f.sessions.Current().IsPremium)
	})

	t.Run("rejected signature stays free", func(t *testing.T) {
		f := newAuthFixture()
		pay := NewPaymentService(f.api, &fakeCheckout{}, f.sessions, f.store, nil)
		_, err := f.svc.Login(ctx, "asha@example.com", "secret")
		require.NoError(t, err)

		pay.api = failingVerify{fakeAPI: f.api}
		err = pay.Upgrade(ctx)
		assert.Equal(t, 400, api.StatusCode(err))
		assert.False(t, f.sessions.Current().IsPremium)
	})

	t.Run("requires a session", func(t *testing.T) {
		f := newAuthFixture()
		pay := NewPaymentService(f.api, &fakeCheckout{}, f.sessions, f.store, nil)
		assert.ErrorIs(t, pay.Upgrade(ctx), session.ErrInvalidSession)
		assert.Zero(t, f.api.count("order"))
	})
}

type failingVerify struct {
	*fakeAPI
}

func (failingVerify) VerifyPayment(context.Context, api.VerifyPaymentRequest) (api.MessageResponse, error) {
	return api.MessageResponse{}, &api.APIError{StatusCode: 400, Message: "Invalid signature"}
}
