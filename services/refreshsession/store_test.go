package refreshsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/condoaccess/testutils"
)

func TestGormStore_ActiveSemantics(t *testing.T) {
	store := NewGormStore(testutils.SetupTestDB(t, &RefreshSession{}))
	ctx := context.Background()
	now := testutils.BaseTime

	mk := func(id string, created, expires time.Time) {
		require.NoError(t, store.Create(ctx, &RefreshSession{
			ID: id, UserID: 9, TokenHash: HashToken(id), CreatedAt: created, ExpiresAt: expires,
		}))
	}
	mk("a", now.Add(-3*time.Hour), now.Add(time.Hour))
	mk("b", now.Add(-2*time.Hour), now)
	mk("c", now.Add(-time.Hour), now.Add(time.Hour))

	active, err := store.ListActive(ctx, 9, now)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "c", active[0].ID)
	assert.Equal(t, "a", active[1].ID)

	changed, err := store.RevokeActive(ctx, "b", ReasonRevoked, now)
	require.NoError(t, err)
	assert.False(t, changed, "expiresAt == now is already inactive")

	changed, err = store.RevokeActive(ctx, "a", ReasonRevoked, now)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.RevokeActive(ctx, "a", ReasonRevoked, now)
	require.NoError(t, err)
	assert.False(t, changed)

	n, err := store.RevokeIDs(ctx, nil, ReasonEvicted, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = store.FindByHash(ctx, HashToken("missing"))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	found, err := store.FindByHash(ctx, HashToken("c"))
	require.NoError(t, err)
	assert.True(t, found.IsActive(now))
}

func TestWithTx_RollsBack(t *testing.T) {
	store := NewGormStore(testutils.SetupTestDB(t, &RefreshSession{}))
	ctx := context.Background()
	now := testutils.BaseTime

	err := store.WithTx(ctx, func(tx Store) error {
		require.NoError(t, tx.Create(ctx, &RefreshSession{ID: "x", UserID: 1, TokenHash: "h", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}))
		return errRotationLost
	})
	assert.ErrorIs(t, err, errRotationLost)

	_, err = store.FindByID(ctx, "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDeviceLabel(t *testing.T) {
	assert.Equal(t, "Unknown device", DeviceLabel(""))
	assert.Equal(t, "Firefox on Linux", DeviceLabel(firefoxUA))
	assert.Contains(t, DeviceLabel("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"), "(mobile)")
}
