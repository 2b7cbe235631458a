package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
	"github.com/erazemk/oprema/internal/store/jsonfile"
	"github.com/erazemk/oprema/internal/store/sqlite"
)

const me = int64(4)

// backends returns a freshly seeded instance of every backend.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	js, err := jsonfile.Open(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)

	sq := sqlite.New(db.NewTestDB(t))

	out := map[string]store.Store{"json": js, "sqlite": sq}
	for name, s := range out {
		seeded, err := s.Seed(context.Background(), store.SampleUsers(), store.SampleAssets())
		require.NoError(t, err, name)
		require.True(t, seeded, name)
	}
	return out
}

func TestSeedOnlyFillsEmptyCollections(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seeded, err := s.Seed(context.Background(), store.SampleUsers(), store.SampleAssets())
			require.NoError(t, err)
			assert.False(t, seeded)

			users, err := s.ListUsers(context.Background())
			require.NoError(t, err)
			assert.Len(t, users, len(store.SampleUsers()))
		})
	}
}

func TestClaimReleaseFlow(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			claim, err := s.Claim(ctx, "5", me)
			require.NoError(t, err)
			assert.Equal(t, model.ClaimWorkType, claim.Type)
			assert.Equal(t, "ivanova", claim.UserLogin)

			a, err := s.GetAsset(ctx, "5")
			require.NoError(t, err)
			require.NotNil(t, a)
			assert.Equal(t, model.StatusBusy, a.Status)
			require.NotNil(t, a.BusyByUserID)
			assert.Equal(t, me, *a.BusyByUserID)

			rel, err := s.Release(ctx, "5", me, lifecycle.ReleaseRequest{WorkType: "Diagnostics", Problem: model.ProblemNone})
			require.NoError(t, err)
			assert.Equal(t, "Проблем не обнаружено", rel.Result)

			a, err = s.GetAsset(ctx, "5")
			require.NoError(t, err)
			assert.Equal(t, model.StatusFree, a.Status)
			assert.Nil(t, a.BusyByUserID)
			require.NotNil(t, a.Counts)
			assert.Equal(t, model.Counts{}, *a.Counts)

			events, err := s.ListEvents(ctx, "5")
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, model.ClaimWorkType, events[0].Type)
			assert.Equal(t, "Diagnostics", events[1].Type)
			assert.Less(t, events[0].ID, events[1].ID)
		})
	}
}

func TestLifecycleErrorsSurfaceKinds(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Claim(ctx, "nope", me)
			assert.True(t, errors.Is(err, model.ErrNotFound), "claim missing: %v", err)

			_, err = s.Claim(ctx, "1", 99)
			assert.True(t, errors.Is(err, model.ErrNotFound), "claim without user: %v", err)

			_, err = s.Claim(ctx, "1", 2)
			require.NoError(t, err)

			_, err = s.Claim(ctx, "1", me)
			assert.True(t, errors.Is(err, model.ErrConflict), "claim busy: %v", err)

			req := lifecycle.ReleaseRequest{WorkType: "Ремонт"}
			_, err = s.Release(ctx, "1", me, req)
			assert.True(t, errors.Is(err, model.ErrForbidden), "release others: %v", err)

			_, err = s.Release(ctx, "2", me, req)
			assert.True(t, errors.Is(err, model.ErrConflict), "release free: %v", err)

			_, err = s.Release(ctx, "nope", me, lifecycle.ReleaseRequest{})
			assert.True(t, errors.Is(err, model.ErrInvalid), "validation comes first: %v", err)

			// Failed transitions log nothing.
			events, err := s.ListEvents(ctx, "1")
			require.NoError(t, err)
			assert.Len(t, events, 1)
		})
	}
}

func TestTotalsAccumulateAcrossCycles(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			problems := []string{model.ProblemWarning, model.ProblemAlarm, model.ProblemWarning, model.ProblemNone}
			for _, p := range problems {
				_, err := s.Claim(ctx, "3", me)
				require.NoError(t, err)
				_, err = s.Release(ctx, "3", me, lifecycle.ReleaseRequest{WorkType: "Калибровка", Problem: p})
				require.NoError(t, err)
			}

			a, err := s.GetAsset(ctx, "3")
			require.NoError(t, err)
			require.NotNil(t, a.Totals)
			assert.Equal(t, model.Counts{Warnings: 2, Alarms: 1}, *a.Totals)
			assert.Equal(t, model.Counts{}, *a.Counts, "counts reflect only the last release")

			events, err := s.ListEvents(ctx, "3")
			require.NoError(t, err)
			require.Len(t, events, 8)
			for i := 1; i < len(events); i++ {
				assert.Greater(t, events[i].ID, events[i-1].ID)
			}
		})
	}
}

func TestSetUserAvatar(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SetUserAvatar(ctx, me, "avatar_4.jpg"))

			u, err := s.GetUser(ctx, me)
			require.NoError(t, err)
			assert.Equal(t, "avatar_4.jpg", u.AvatarFile)

			err = s.SetUserAvatar(ctx, 99, "x.jpg")
			assert.True(t, errors.Is(err, model.ErrNotFound))

			missing, err := s.GetUser(ctx, 99)
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestEventTimestampsUseStoreClock(t *testing.T) {
	fixed := time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

	js, err := jsonfile.Open(t.TempDir())
	require.NoError(t, err)
	js.Now = func() time.Time { return fixed }

	sq := sqlite.New(db.NewTestDB(t))
	sq.Now = func() time.Time { return fixed }

	for name, s := range map[string]store.Store{"json": js, "sqlite": sq} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Seed(ctx, store.SampleUsers(), store.SampleAssets())
			require.NoError(t, err)

			ev, err := s.Claim(ctx, "2", me)
			require.NoError(t, err)
			assert.Equal(t, "2026-01-15T08:00:00.000Z", ev.TS)
		})
	}
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	stores := backends(t)
	// The database pools' own goroutines live until cleanup.
	running := goleak.IgnoreCurrent()

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			defer goleak.VerifyNone(t, running)
			ctx := context.Background()
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
			)
			for _, uid := range []int64{1, 2, 3, 4} {
				wg.Add(1)
				go func(uid int64) {
					defer wg.Done()
					if _, err := s.Claim(ctx, "4", uid); err == nil {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}(uid)
			}
			wg.Wait()

			assert.Equal(t, 1, winners)
			events, err := s.ListEvents(ctx, "4")
			require.NoError(t, err)
			assert.Len(t, events, 1)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := store.Open(store.Options{Driver: "mongo"})
	assert.Error(t, err)
}
