// Package store defines the persistence contract for users, assets and events
// and opens one of the available backends.
package store

import (
	"context"
	"fmt"

	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store/jsonfile"
	"github.com/erazemk/oprema/internal/store/sqlite"
)

// Store is implemented by every backend. Lookups return nil, nil for missing
// records. Claim and Release return classified *model.Error values for
// lifecycle failures.
type Store interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	SetUserAvatar(ctx context.Context, id int64, file string) error

	ListAssets(ctx context.Context) ([]model.Asset, error)
	GetAsset(ctx context.Context, id string) (*model.Asset, error)

	ListEvents(ctx context.Context, assetID string) ([]model.Event, error)

	Claim(ctx context.Context, assetID string, actorID int64) (*model.Event, error)
	Release(ctx context.Context, assetID string, actorID int64, req lifecycle.ReleaseRequest) (*model.Event, error)

	// Seed writes users and assets into collections that are still empty and
	// reports whether anything was written.
	Seed(ctx context.Context, users []model.User, assets []model.Asset) (bool, error)

	Close() error
}

// Backend names.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Driver     string
	DataDir    string
	SQLitePath string
}

// Open opens the configured backend.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case DriverJSON, "":
		s, err := jsonfile.Open(opts.DataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := sqlite.Open(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

var (
	_ Store = (*jsonfile.Store)(nil)
	_ Store = (*sqlite.Store)(nil)
)
