// Package lifecycle implements the claim/release state machine for assets.
// Functions here mutate an in-memory asset and return the event to append;
// persisting both is the store's job.
package lifecycle

import (
	"strings"
	"time"

	"github.com/erazemk/oprema/internal/model"
)

// ReleaseRequest is the payload of a release.
type ReleaseRequest struct {
	WorkType string `json:"workType"`
	Details  string `json:"details"`
	Problem  string `json:"problem,omitempty"`
}

// Validate normalises the request and checks its fields. An empty problem
// is an unset field and means none; the JSON API rejects an explicit one
// before it gets here.
func (r *ReleaseRequest) Validate() error {
	if strings.TrimSpace(r.WorkType) == "" {
		return model.ErrNoWorkType
	}
	if r.Problem == "" {
		r.Problem = model.ProblemNone
	}
	if !model.IsProblem(r.Problem) {
		return model.ErrBadProblem
	}
	return nil
}

// Claim marks a free asset busy under actor. asset or actor may be nil when
// the store could not find them.
func Claim(asset *model.Asset, actor *model.User, now time.Time) (model.Event, error) {
	if asset == nil {
		return model.Event{}, model.ErrAssetNotFound
	}
	if asset.IsBusy() {
		return model.Event{}, model.ErrAlreadyBusy
	}
	if actor == nil {
		return model.Event{}, model.ErrMeNotFound
	}

	id := actor.ID
	asset.Status = model.StatusBusy
	asset.BusyByUserID = &id

	return model.Event{
		AssetID:   asset.ID,
		TS:        model.FormatTimestamp(now),
		Type:      model.ClaimWorkType,
		Result:    model.ClaimResult,
		UserLogin: actor.Login,
		Problem:   model.ProblemNone,
	}, nil
}

// Release frees an asset held by actor, resetting the per-cycle counts and
// bumping the cumulative total for the reported problem. The request must
// already have passed Validate.
func Release(asset *model.Asset, actor *model.User, actorID int64, req ReleaseRequest, now time.Time) (model.Event, error) {
	if asset == nil {
		return model.Event{}, model.ErrAssetNotFound
	}
	if !asset.IsBusy() {
		return model.Event{}, model.ErrAlreadyFree
	}
	if !asset.OwnedBy(actorID) {
		return model.Event{}, model.ErrNotYourAsset
	}
	if actor == nil {
		return model.Event{}, model.ErrMeNotFound
	}

	counts := model.Counts{}
	if asset.Totals == nil {
		asset.Totals = &model.Counts{}
	}
	switch req.Problem {
	case model.ProblemWarning:
		counts.Warnings = 1
		asset.Totals.Warnings++
	case model.ProblemAlarm:
		counts.Alarms = 1
		asset.Totals.Alarms++
	}
	asset.Counts = &counts
	asset.Status = model.StatusFree
	asset.BusyByUserID = nil

	return model.Event{
		AssetID:   asset.ID,
		TS:        model.FormatTimestamp(now),
		Type:      strings.TrimSpace(req.WorkType),
		Result:    ReleaseResult(req.Details, req.Problem),
		UserLogin: actor.Login,
		Problem:   req.Problem,
	}, nil
}

// ReleaseResult composes the human-readable result of a release.
func ReleaseResult(details, problem string) string {
	label := model.ProblemLabel(problem)
	if d := strings.TrimSpace(details); d != "" {
		return d + " • " + label
	}
	return label
}
