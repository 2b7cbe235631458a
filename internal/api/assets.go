package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/oprema/internal/analytics"
	"github.com/erazemk/oprema/internal/export"
	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// AssetsHandler handles asset, event and analytics endpoints.
type AssetsHandler struct {
	Store         store.Store
	Location      *time.Location
	DefaultPreset analytics.Preset
	Metrics       *metrics.Metrics
	Now           func() time.Time
}

// List handles GET /api/assets.
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	assets, err := h.Store.ListAssets(ctx)
	if err != nil {
		writeError(w, r, err, "listing assets")
		return
	}
	users, err := h.Store.ListUsers(ctx)
	if err != nil {
		writeError(w, r, err, "listing users")
		return
	}

	actor := ActorID(ctx)
	out := make([]model.AssetView, 0, len(assets))
	for i := range assets {
		out = append(out, model.ViewAsset(&assets[i], users, actor, false))
	}
	jsonResponse(w, http.StatusOK, out)
}

// Get handles GET /api/assets/{id}.
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := h.Store.GetAsset(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "getting asset")
		return
	}
	if a == nil {
		writeError(w, r, model.ErrAssetNotFound, "")
		return
	}
	users, err := h.Store.ListUsers(ctx)
	if err != nil {
		writeError(w, r, err, "listing users")
		return
	}
	jsonResponse(w, http.StatusOK, model.ViewAsset(a, users, ActorID(ctx), true))
}

// Events handles GET /api/assets/{id}/events.
func (h *AssetsHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "listing events")
		return
	}
	jsonResponse(w, http.StatusOK, events)
}

// EventsMeta handles GET /api/assets/{id}/events/meta.
func (h *AssetsHandler) EventsMeta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.Store.ListEvents(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "listing events")
		return
	}
	users, err := h.Store.ListUsers(ctx)
	if err != nil {
		writeError(w, r, err, "listing users")
		return
	}
	jsonResponse(w, http.StatusOK, model.BuildEventMeta(events, users))
}

// Claim handles POST /api/assets/{id}/claim.
func (h *AssetsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, actor := r.PathValue("id"), ActorID(ctx)

	ev, err := h.Store.Claim(ctx, id, actor)
	if err != nil {
		h.transitionFailed(w, r, metrics.ActionClaim, err)
		return
	}

	h.Metrics.Transition(metrics.ActionClaim, metrics.OutcomeOK)
	slog.Info("asset claimed", "asset", id, "user", actor, "event", ev.ID)
	jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

// releaseBody mirrors the release payload loosely so that wrongly typed
// fields map to the same validation errors as missing ones. Problem stays
// raw so that an absent key can be told apart from null.
type releaseBody struct {
	WorkType any             `json:"workType"`
	Details  any             `json:"details"`
	Problem  json.RawMessage `json:"problem"`
}

func (b releaseBody) request() (lifecycle.ReleaseRequest, error) {
	var req lifecycle.ReleaseRequest

	wt, ok := b.WorkType.(string)
	if !ok || strings.TrimSpace(wt) == "" {
		return req, model.ErrNoWorkType
	}
	req.WorkType = wt

	// Only a missing key defaults to none; "" and null are rejected.
	req.Problem = model.ProblemNone
	if len(b.Problem) > 0 {
		var p string
		if err := json.Unmarshal(b.Problem, &p); err != nil || p == "" {
			return req, model.ErrBadProblem
		}
		req.Problem = p
	}

	switch d := b.Details.(type) {
	case nil:
	case string:
		req.Details = d
	case float64:
		req.Details = strconv.FormatFloat(d, 'f', -1, 64)
	default:
		req.Details = fmt.Sprint(d)
	}

	return req, req.Validate()
}

// Release handles POST /api/assets/{id}/release.
func (h *AssetsHandler) Release(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, actor := r.PathValue("id"), ActorID(ctx)

	var body releaseBody
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		h.Metrics.Transition(metrics.ActionRelease, metrics.OutcomeRejected)
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := body.request()
	if err != nil {
		h.transitionFailed(w, r, metrics.ActionRelease, err)
		return
	}

	ev, err := h.Store.Release(ctx, id, actor, req)
	if err != nil {
		h.transitionFailed(w, r, metrics.ActionRelease, err)
		return
	}

	h.Metrics.Transition(metrics.ActionRelease, metrics.OutcomeOK)
	slog.Info("asset released", "asset", id, "user", actor, "work_type", ev.Type, "problem", ev.Problem, "event", ev.ID)
	jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *AssetsHandler) transitionFailed(w http.ResponseWriter, r *http.Request, action string, err error) {
	var me *model.Error
	if errors.As(err, &me) {
		h.Metrics.Transition(action, metrics.OutcomeRejected)
		slog.Warn(action+" rejected", "asset", r.PathValue("id"), "user", ActorID(r.Context()), "reason", me.Message)
	} else {
		h.Metrics.Transition(action, metrics.OutcomeError)
	}
	writeError(w, r, err, action+" failed")
}

// filtered loads the asset's events and applies the analytics query.
func (h *AssetsHandler) filtered(r *http.Request) (analytics.Result, error) {
	events, err := h.Store.ListEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		return analytics.Result{}, err
	}
	f, err := analytics.FromValues(r.URL.Query(), h.Now(), h.Location, h.DefaultPreset)
	if err != nil {
		return analytics.Result{}, err
	}
	return analytics.Run(events, f, h.Location), nil
}

// Analytics handles GET /api/assets/{id}/analytics.
func (h *AssetsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	res, err := h.filtered(r)
	if err != nil {
		writeError(w, r, err, "filtering events")
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Export handles GET /api/assets/{id}/export.
func (h *AssetsHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatCSV
	}
	if _, ok := export.ContentTypes[format]; !ok {
		jsonError(w, http.StatusBadRequest, "invalid export format")
		return
	}

	res, err := h.filtered(r)
	if err != nil {
		writeError(w, r, err, "filtering events")
		return
	}

	id := r.PathValue("id")
	now := h.Now().In(h.Location)
	data, err := export.Render(format, export.Params{
		AssetID:    id,
		RangeLabel: res.RangeLabel,
		Events:     res.Events,
		Location:   h.Location,
	}, now)
	if err != nil {
		writeError(w, r, err, "rendering export")
		return
	}

	name := export.FileName(id, format, now)
	w.Header().Set("Content-Type", export.ContentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("writing export", "error", err, "asset", id)
	}
}
