// Package sqlite is a transactional store backend on SQLite. Claim and
// release update the asset and append the event in one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/model"
)

// Store is a SQLite-backed store.
type Store struct {
	DB *sql.DB

	// Now returns the time stamped on new events.
	Now func() time.Time
}

// Open opens the database file and applies the schema.
func Open(path string) (*Store, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, err
	}
	return New(database), nil
}

// New wraps an already migrated database.
func New(database *sql.DB) *Store {
	return &Store{DB: database, Now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error { return s.DB.Close() }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, login, display_name, avatar_file FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		var avatar sql.NullString
		if err := rows.Scan(&u.ID, &u.Login, &u.DisplayName, &avatar); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		u.AvatarFile = avatar.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return getUser(ctx, s.DB, id)
}

func getUser(ctx context.Context, q querier, id int64) (*model.User, error) {
	u := &model.User{}
	var avatar sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, login, display_name, avatar_file FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Login, &u.DisplayName, &avatar)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	u.AvatarFile = avatar.String
	return u, nil
}

// SetUserAvatar replaces a user's avatar file reference.
func (s *Store) SetUserAvatar(ctx context.Context, id int64, file string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET avatar_file = ? WHERE id = ?`, nullString(file), id,
	)
	if err != nil {
		return fmt.Errorf("updating avatar: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrMeNotFound
	}
	return nil
}

const assetColumns = `id, id_numeric, type, name, room, status, busy_by_user_id,
	counts_warnings, counts_alarms, totals_warnings, totals_alarms,
	has_description, erp_guid, serial_number, passport_id, class_name, manufacturer`

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (*model.Asset, error) {
	var (
		a                       model.Asset
		id                      string
		numeric, hasDesc        bool
		typ, name, room, status sql.NullString
		busyBy                  sql.NullInt64
		cw, ca, tw, ta          sql.NullInt64
		d                       model.Description
	)
	if err := row.Scan(&id, &numeric, &typ, &name, &room, &status, &busyBy,
		&cw, &ca, &tw, &ta,
		&hasDesc, &d.ERPGUID, &d.SerialNumber, &d.PassportID, &d.ClassName, &d.Manufacturer); err != nil {
		return nil, err
	}

	a.ID = model.ParseAssetID(id, numeric)
	a.Type, a.Name, a.Room, a.Status = typ.String, name.String, room.String, status.String
	if busyBy.Valid {
		v := busyBy.Int64
		a.BusyByUserID = &v
	}
	if cw.Valid || ca.Valid {
		a.Counts = &model.Counts{Warnings: int(cw.Int64), Alarms: int(ca.Int64)}
	}
	if tw.Valid || ta.Valid {
		a.Totals = &model.Counts{Warnings: int(tw.Int64), Alarms: int(ta.Int64)}
	}
	if hasDesc {
		a.Description = &d
	}
	return &a, nil
}

// ListAssets returns all assets in insertion order.
func (s *Store) ListAssets(ctx context.Context) ([]model.Asset, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer rows.Close()

	assets := []model.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// GetAsset returns an asset by id.
func (s *Store) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	return getAsset(ctx, s.DB, id)
}

func getAsset(ctx context.Context, q querier, id string) (*model.Asset, error) {
	a, err := scanAsset(q.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting asset: %w", err)
	}
	return a, nil
}

// ListEvents returns the events for an asset in append order.
func (s *Store) ListEvents(ctx context.Context, assetID string) ([]model.Event, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, asset_id, asset_id_numeric, ts, type, result, user_login, problem
		 FROM events WHERE asset_id = ? ORDER BY id`, assetID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var (
			e       model.Event
			aid     string
			numeric bool
			problem sql.NullString
		)
		if err := rows.Scan(&e.ID, &aid, &numeric, &e.TS, &e.Type, &e.Result, &e.UserLogin, &problem); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.AssetID = model.ParseAssetID(aid, numeric)
		e.Problem = problem.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Claim marks an asset busy under actorID and logs the claim.
func (s *Store) Claim(ctx context.Context, assetID string, actorID int64) (*model.Event, error) {
	return s.transition(ctx, assetID, actorID, func(a *model.Asset, u *model.User) (model.Event, error) {
		return lifecycle.Claim(a, u, s.Now())
	})
}

// Release frees an asset held by actorID and logs the release.
func (s *Store) Release(ctx context.Context, assetID string, actorID int64, req lifecycle.ReleaseRequest) (*model.Event, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, assetID, actorID, func(a *model.Asset, u *model.User) (model.Event, error) {
		return lifecycle.Release(a, u, actorID, req, s.Now())
	})
}

// transition loads the asset and actor, applies fn, and persists the asset
// and its event in one transaction.
func (s *Store) transition(ctx context.Context, assetID string, actorID int64, fn func(*model.Asset, *model.User) (model.Event, error)) (*model.Event, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	asset, err := getAsset(ctx, tx, assetID)
	if err != nil {
		return nil, err
	}
	actor, err := getUser(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}

	ev, err := fn(asset, actor)
	if err != nil {
		return nil, err
	}

	if err := updateAssetState(ctx, tx, asset); err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM events`).Scan(&ev.ID)
	if err != nil {
		return nil, fmt.Errorf("assigning event id: %w", err)
	}
	if err := insertEvent(ctx, tx, ev); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transition: %w", err)
	}
	return &ev, nil
}

func updateAssetState(ctx context.Context, q querier, a *model.Asset) error {
	var busyBy any
	if a.BusyByUserID != nil {
		busyBy = *a.BusyByUserID
	}
	cw, ca := countArgs(a.Counts)
	tw, ta := countArgs(a.Totals)
	_, err := q.ExecContext(ctx,
		`UPDATE assets SET status = ?, busy_by_user_id = ?,
		        counts_warnings = ?, counts_alarms = ?, totals_warnings = ?, totals_alarms = ?
		 WHERE id = ?`,
		nullString(a.Status), busyBy, cw, ca, tw, ta, a.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("updating asset: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, q querier, e model.Event) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO events (id, asset_id, asset_id_numeric, ts, type, result, user_login, problem)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.AssetID.String(), e.AssetID.IsNumeric(), e.TS, e.Type, e.Result, e.UserLogin, nullString(e.Problem),
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// Seed fills empty user and asset tables.
func (s *Store) Seed(ctx context.Context, users []model.User, assets []model.Asset) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	seeded := false

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	if n == 0 {
		for _, u := range users {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (id, login, display_name, avatar_file) VALUES (?, ?, ?, ?)`,
				u.ID, u.Login, u.DisplayName, nullString(u.AvatarFile),
			); err != nil {
				return false, fmt.Errorf("seeding user %s: %w", u.Login, err)
			}
			seeded = true
		}
	}

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&n); err != nil {
		return false, fmt.Errorf("counting assets: %w", err)
	}
	if n == 0 {
		for _, a := range assets {
			if err := insertAsset(ctx, tx, &a); err != nil {
				return false, err
			}
			seeded = true
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing seed: %w", err)
	}
	return seeded, nil
}

func insertAsset(ctx context.Context, q querier, a *model.Asset) error {
	var busyBy any
	if a.BusyByUserID != nil {
		busyBy = *a.BusyByUserID
	}
	cw, ca := countArgs(a.Counts)
	tw, ta := countArgs(a.Totals)
	d := model.Description{}
	if a.Description != nil {
		d = *a.Description
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO assets (`+assetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.ID.IsNumeric(), nullString(a.Type), nullString(a.Name), nullString(a.Room),
		nullString(a.Status), busyBy, cw, ca, tw, ta,
		a.Description != nil, d.ERPGUID, d.SerialNumber, d.PassportID, d.ClassName, d.Manufacturer,
	)
	if err != nil {
		return fmt.Errorf("seeding asset %s: %w", a.ID, err)
	}
	return nil
}

func countArgs(c *model.Counts) (any, any) {
	if c == nil {
		return nil, nil
	}
	return c.Warnings, c.Alarms
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
