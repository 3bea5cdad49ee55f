package tile_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jaennil/guide_helper/tilesource/internal/tile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTile(t *testing.T, c tile.Coordinate) *tile.Tile {
	t.Helper()
	tl, err := tile.New(c)
	require.NoError(t, err)
	return tl
}

func TestNewRejectsInvalidCoordinate(t *testing.T) {
	for _, c := range []tile.Coordinate{{Z: 1, X: 2, Y: 0}, {Z: 3, X: 0, Y: 8}, {Z: 32}} {
		tl, err := tile.New(c)
		assert.ErrorIs(t, err, tile.ErrInvalidCoordinate, "%v", c)
		assert.Nil(t, tl)
	}
}

func TestTileLifecycle(t *testing.T) {
	tl := newTile(t, tile.Coordinate{Z: 4, X: 2, Y: 3})
	assert.Equal(t, tile.StateUnloaded, tl.State())
	id, err := tl.Coord.ID()
	require.NoError(t, err)
	assert.Equal(t, id, tl.UID)

	var calls []error
	req, err := tl.Begin(func(err error) { calls = append(calls, err) })
	require.NoError(t, err)
	assert.Equal(t, tile.StateLoading, tl.State())
	assert.Same(t, req, tl.Outstanding())
	require.NoError(t, tl.CheckInvariants())

	_, err = tl.Begin(nil)
	assert.ErrorIs(t, err, tile.ErrInvalidTransition, "second request while loading")

	cb, err := tl.Settle(req, tile.ResultLoaded)
	require.NoError(t, err)
	cb(nil)
	assert.Equal(t, tile.StateLoaded, tl.State())
	assert.Nil(t, tl.Outstanding())
	assert.Len(t, calls, 1)
	require.NoError(t, tl.CheckInvariants())

	_, err = tl.Settle(req, tile.ResultLoaded)
	assert.ErrorIs(t, err, tile.ErrInvalidTransition, "settling twice")

	require.NoError(t, tl.Expire())
	assert.Equal(t, tile.StateExpired, tl.State())

	req2, err := tl.Begin(nil)
	require.NoError(t, err)
	assert.Greater(t, req2.Seq(), req.Seq())

	assert.ErrorIs(t, tl.Unload(), tile.ErrInvalidTransition, "unload while loading")

	_, err = tl.Settle(req2, tile.ResultErrored)
	require.NoError(t, err)
	assert.Equal(t, tile.StateErrored, tl.State())

	require.NoError(t, tl.Unload())
	assert.Equal(t, tile.StateUnloaded, tl.State())
	assert.ErrorIs(t, tl.Expire(), tile.ErrInvalidTransition)
}

func TestTileAbort(t *testing.T) {
	tl := newTile(t, tile.Coordinate{Z: 1, X: 1, Y: 0})
	assert.False(t, tl.Abort(), "nothing to abort")

	req, err := tl.Begin(nil)
	require.NoError(t, err)

	var hooks int
	req.OnAbort(func() { hooks++ })

	assert.True(t, tl.Abort())
	assert.False(t, tl.Abort(), "abort is idempotent")
	assert.True(t, tl.Aborted())
	assert.Equal(t, 1, hooks)
	assert.Equal(t, tile.StateLoading, tl.State(), "abort leaves the state alone")

	req.OnAbort(func() { hooks++ })
	assert.Equal(t, 2, hooks, "hooks added after abort run at once")

	_, err = tl.Settle(req, tile.ResultAborted)
	require.NoError(t, err)
	assert.Equal(t, tile.StateUnloaded, tl.State())
	assert.Nil(t, tl.Outstanding())
	assert.False(t, tl.Aborted())
}

func TestTileDefer(t *testing.T) {
	tl := newTile(t, tile.Coordinate{})
	_, err := tl.Begin(nil)
	require.NoError(t, err)

	first := func(error) {}
	assert.Nil(t, tl.Defer(first))
	assert.True(t, tl.HasPendingReload())

	replaced := tl.Defer(func(error) {})
	assert.NotNil(t, replaced)

	assert.NotNil(t, tl.TakePendingReload())
	assert.False(t, tl.HasPendingReload())
	assert.Nil(t, tl.TakePendingReload())
}

func TestTileSettleRejectsForeignRequest(t *testing.T) {
	a := newTile(t, tile.Coordinate{Z: 1})
	b := newTile(t, tile.Coordinate{Z: 2})

	reqA, err := a.Begin(nil)
	require.NoError(t, err)
	_, err = b.Begin(nil)
	require.NoError(t, err)

	_, err = b.Settle(reqA, tile.ResultLoaded)
	assert.ErrorIs(t, err, tile.ErrInvalidTransition)
	_, err = b.Settle(nil, tile.ResultLoaded)
	assert.ErrorIs(t, err, tile.ErrInvalidTransition)
	assert.Equal(t, tile.StateLoading, b.State())
}

// Random sequences of operations never leave more than one request
// outstanding or a request without the loading state.
func TestTileInvariantsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	results := []tile.Result{tile.ResultLoaded, tile.ResultErrored, tile.ResultAborted}

	for run := 0; run < 200; run++ {
		tl := newTile(t, tile.Coordinate{Z: 3, X: 1, Y: 1})
		for step := 0; step < 50; step++ {
			switch rng.Intn(6) {
			case 0:
				_, err := tl.Begin(nil)
				if tl.State() != tile.StateLoading && err == nil {
					t.Fatalf("Begin succeeded without entering loading")
				}
			case 1:
				if tl.State() == tile.StateLoading {
					tl.Defer(func(error) {})
				}
			case 2:
				tl.Abort()
			case 3:
				if req := tl.Outstanding(); req != nil {
					res := results[rng.Intn(len(results))]
					if req.Aborted() {
						res = tile.ResultAborted
					}
					if _, err := tl.Settle(req, res); err != nil {
						t.Fatalf("Settle: %v", err)
					}
					tl.TakePendingReload()
				}
			case 4:
				err := tl.Expire()
				if err != nil && !errors.Is(err, tile.ErrInvalidTransition) {
					t.Fatalf("Expire: %v", err)
				}
			case 5:
				err := tl.Unload()
				if err != nil && !errors.Is(err, tile.ErrInvalidTransition) {
					t.Fatalf("Unload: %v", err)
				}
			}
			if err := tl.CheckInvariants(); err != nil {
				t.Fatalf("run %d step %d: %v", run, step, err)
			}
		}
	}
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tl := newTile(t, tile.Coordinate{})

	tl.SetExpiry("public, max-age=60", "Fri, 01 Mar 2024 13:00:00 GMT", now)
	require.NotNil(t, tl.Expiry)
	assert.Equal(t, now.Add(time.Minute), tl.Expiry.ExpiresAt, "max-age wins over Expires")
	assert.False(t, tl.Expired(now.Add(59*time.Second)))
	assert.True(t, tl.Expired(now.Add(time.Minute)))

	tl.SetExpiry("", "Fri, 01 Mar 2024 13:00:00 GMT", now)
	require.NotNil(t, tl.Expiry)
	assert.Equal(t, now.Add(time.Hour), tl.Expiry.ExpiresAt.UTC())

	tl.SetExpiry("no-cache", "", now)
	require.NotNil(t, tl.Expiry)
	assert.False(t, tl.Expired(now.Add(24*time.Hour)), "no freshness lifetime never expires")

	tl.SetExpiry("", "", now)
	assert.Nil(t, tl.Expiry)
	assert.False(t, tl.Expired(now))
}

func TestExpiryClampsMaxAge(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limit := now.Add((1 << 31) * time.Second)

	for _, cc := range []string{"max-age=2147483648", "max-age=9300000000", "max-age=99999999999999999999"} {
		tl := newTile(t, tile.Coordinate{})
		tl.SetExpiry(cc, "", now)
		require.NotNil(t, tl.Expiry, cc)
		assert.Equal(t, limit, tl.Expiry.ExpiresAt, cc)
		assert.False(t, tl.Expired(now.Add(24*time.Hour)), cc)
	}
}
