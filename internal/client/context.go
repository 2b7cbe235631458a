package client

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/model"
)

// Snapshot is the latest known state of the selected asset. Nil fields have
// not been loaded yet.
type Snapshot struct {
	ID     string
	Asset  *model.AssetView
	Events []model.Event
	Meta   *model.EventMeta
}

// AssetContext caches the selected asset, its events and their metadata.
// Concurrent loads of the same resource share one request, and every
// mutation made through it refetches all three.
type AssetContext struct {
	client *Client
	group  singleflight.Group

	mu   sync.Mutex
	snap Snapshot
	// gen changes on every selection and every refresh. Loads are keyed by
	// it, so a refresh never joins a request that was already in flight,
	// and late responses from an older generation are dropped.
	gen uint64
}

// NewAssetContext creates an empty context with nothing selected.
func NewAssetContext(c *Client) *AssetContext {
	return &AssetContext{client: c}
}

// Select switches to another asset and drops the cached values.
func (a *AssetContext) Select(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.snap.ID == id {
		return
	}
	a.gen++
	a.snap = Snapshot{ID: id}
}

// Current returns the cached state without fetching.
func (a *AssetContext) Current() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.snap
	if a.snap.Events != nil {
		s.Events = make([]model.Event, len(a.snap.Events))
		copy(s.Events, a.snap.Events)
	}
	return s
}

func (a *AssetContext) selection() (string, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap.ID, a.gen
}

// store applies fn to the snapshot unless the selection moved on.
func (a *AssetContext) store(gen uint64, fn func(*Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen == gen {
		fn(&a.snap)
	}
}

// load runs fetch once per key across concurrent callers. The shared
// request is detached from the first caller's cancellation; each caller
// stops waiting when its own ctx is done.
func load[T any](ctx context.Context, a *AssetContext, kind string, fetch func(context.Context, string) (T, error), keep func(*Snapshot, T)) (T, error) {
	var zero T
	id, gen := a.selection()
	key := kind + "\x00" + id + "\x00" + strconv.FormatUint(gen, 10)
	ch := a.group.DoChan(key, func() (any, error) {
		out, err := fetch(context.WithoutCancel(ctx), id)
		if err != nil {
			return out, err
		}
		a.store(gen, func(s *Snapshot) { keep(s, out) })
		return out, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// bump starts a new generation for the current selection, keeping the
// cached values until fresh ones arrive.
func (a *AssetContext) bump() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
}

// Asset returns the cached asset, fetching it if needed.
func (a *AssetContext) Asset(ctx context.Context) (*model.AssetView, error) {
	if s := a.Current(); s.Asset != nil {
		return s.Asset, nil
	}
	return a.fetchAsset(ctx)
}

// Events returns the cached events, fetching them if needed.
func (a *AssetContext) Events(ctx context.Context) ([]model.Event, error) {
	if s := a.Current(); s.Events != nil {
		return s.Events, nil
	}
	return a.fetchEvents(ctx)
}

// Meta returns the cached event metadata, fetching it if needed.
func (a *AssetContext) Meta(ctx context.Context) (*model.EventMeta, error) {
	if s := a.Current(); s.Meta != nil {
		return s.Meta, nil
	}
	return a.fetchMeta(ctx)
}

func (a *AssetContext) fetchAsset(ctx context.Context) (*model.AssetView, error) {
	return load(ctx, a, "asset", a.client.Asset, func(s *Snapshot, v *model.AssetView) { s.Asset = v })
}

func (a *AssetContext) fetchEvents(ctx context.Context) ([]model.Event, error) {
	return load(ctx, a, "events", func(ctx context.Context, id string) ([]model.Event, error) {
		events, err := a.client.Events(ctx, id)
		if events == nil && err == nil {
			events = []model.Event{}
		}
		return events, err
	}, func(s *Snapshot, v []model.Event) { s.Events = v })
}

func (a *AssetContext) fetchMeta(ctx context.Context) (*model.EventMeta, error) {
	return load(ctx, a, "meta", a.client.EventsMeta, func(s *Snapshot, v *model.EventMeta) { s.Meta = v })
}

// Refresh refetches the asset, its events and their metadata in parallel.
func (a *AssetContext) Refresh(ctx context.Context) error {
	a.bump()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.fetchAsset(ctx)
		return err
	})
	g.Go(func() error {
		_, err := a.fetchEvents(ctx)
		return err
	})
	g.Go(func() error {
		_, err := a.fetchMeta(ctx)
		return err
	})
	return g.Wait()
}

// Claim claims the selected asset and refreshes the cache.
func (a *AssetContext) Claim(ctx context.Context) error {
	id, _ := a.selection()
	if err := a.client.Claim(ctx, id); err != nil {
		return err
	}
	return a.Refresh(ctx)
}

// Release releases the selected asset and refreshes the cache.
func (a *AssetContext) Release(ctx context.Context, req lifecycle.ReleaseRequest) error {
	id, _ := a.selection()
	if err := a.client.Release(ctx, id, req); err != nil {
		return err
	}
	return a.Refresh(ctx)
}
