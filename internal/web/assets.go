package web

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/erazemk/oprema/internal/analytics"
	"github.com/erazemk/oprema/internal/api"
	"github.com/erazemk/oprema/internal/export"
	"github.com/erazemk/oprema/internal/lifecycle"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/model"
)

// Asset page tabs.
const (
	tabDescription = "description"
	tabAnalytics   = "analytics"
)

// DefaultWorkTypes are offered in the release form before any history exists.
var DefaultWorkTypes = []string{
	"Калибровка",
	"Диагностика",
	"Плановое обслуживание",
	"Ремонт",
}

// ReleaseWorkTypes merges the default work types with those seen in the
// history, keeping order and leaving out the claim sentinel.
func ReleaseWorkTypes(seen []string) []string {
	out := make([]string, 0, len(DefaultWorkTypes)+len(seen))
	have := make(map[string]bool)
	for _, list := range [][]string{DefaultWorkTypes, seen} {
		for _, t := range list {
			if t == "" || t == model.ClaimWorkType || have[t] {
				continue
			}
			have[t] = true
			out = append(out, t)
		}
	}
	return out
}

func assetPath(id, tab string) string {
	return "/asset/" + url.PathEscape(id) + "/" + tab
}

// assetState carries form state into a re-rendered asset page.
type assetState struct {
	ReleaseOpen bool
	Release     lifecycle.ReleaseRequest
	ActionError string
	// PageError goes to the layout alert, next to the header forms.
	PageError string
}

type presetLink struct {
	Label  string
	URL    string
	Active bool
}

type eventRow struct {
	When    string
	Type    string
	Result  string
	User    string
	Problem string
}

type analyticsView struct {
	Result    analytics.Result
	Filter    analytics.Filter
	From      string
	To        string
	Presets   []presetLink
	WorkTypes []string
	Users     []model.EventUser
	SortArrow string
	SortURL   string
	ResetURL  string
	ExportCSV string
	ExportPDF string
	Rows      []eventRow
	Empty     string
}

type assetPage struct {
	PageData
	Asset       model.AssetView
	Tab         string
	Description string
	Analytics   string
	WorkTypes   []string
	Problems    []string
	State       assetState
	Stats       *analyticsView
}

// AssetRedirect handles GET /asset/{id}.
func (s *Server) AssetRedirect(w http.ResponseWriter, r *http.Request) {
	target := assetPath(r.PathValue("id"), tabDescription)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// DescriptionPage handles GET /asset/{id}/description.
func (s *Server) DescriptionPage(w http.ResponseWriter, r *http.Request) {
	s.renderAsset(w, r, r.PathValue("id"), tabDescription, http.StatusOK, nil)
}

// AnalyticsPage handles GET /asset/{id}/analytics.
func (s *Server) AnalyticsPage(w http.ResponseWriter, r *http.Request) {
	s.renderAsset(w, r, r.PathValue("id"), tabAnalytics, http.StatusOK, nil)
}

// ReleaseSubmit handles POST /asset/{id}/release. Failures re-render the
// open form with the entered values.
func (s *Server) ReleaseSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, actor := r.PathValue("id"), api.ActorID(ctx)

	// An unchecked problem radio posts nothing.
	problem := r.PostFormValue("problem")
	if problem == "" {
		problem = model.ProblemNone
	}
	req := lifecycle.ReleaseRequest{
		WorkType: strings.TrimSpace(r.PostFormValue("workType")),
		Details:  strings.TrimSpace(r.PostFormValue("details")),
		Problem:  problem,
	}

	ev, err := s.Store.Release(ctx, id, actor, req)
	if err != nil {
		status, msg := s.transitionFailed(r, metrics.ActionRelease, err, releaseFailedMessage)
		s.renderAsset(w, r, id, tabDescription, status, &assetState{
			ReleaseOpen: true,
			Release:     req,
			ActionError: msg,
		})
		return
	}

	s.Metrics.Transition(metrics.ActionRelease, metrics.OutcomeOK)
	slog.Info("asset released", "asset", id, "user", actor, "work_type", ev.Type, "problem", ev.Problem, "event", ev.ID)
	http.Redirect(w, r, assetPath(id, tabDescription), http.StatusSeeOther)
}

func (s *Server) renderAsset(w http.ResponseWriter, r *http.Request, id, tab string, status int, state *assetState) {
	ctx := r.Context()
	a, err := s.Store.GetAsset(ctx, id)
	if err != nil {
		s.internalError(w, r, err, "failed to get asset")
		return
	}
	if a == nil {
		s.renderError(w, r, http.StatusNotFound, assetNotFoundMessage)
		return
	}
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		s.internalError(w, r, err, "failed to list users")
		return
	}
	events, err := s.Store.ListEvents(ctx, id)
	if err != nil {
		s.internalError(w, r, err, "failed to list events")
		return
	}

	view := model.ViewAsset(a, users, api.ActorID(ctx), true)
	meta := model.BuildEventMeta(events, users)

	page := &assetPage{
		PageData:    s.basePage(r, view.Name),
		Asset:       view,
		Tab:         tab,
		Description: assetPath(id, tabDescription),
		Analytics:   assetPath(id, tabAnalytics),
		WorkTypes:   ReleaseWorkTypes(meta.WorkTypes),
		Problems:    []string{model.ProblemNone, model.ProblemWarning, model.ProblemAlarm},
	}
	if page.Title == "" {
		page.Title = "Устройство " + id
	}
	if state != nil {
		page.State = *state
		page.Error = state.PageError
	}
	if page.State.Release.Problem == "" {
		page.State.Release.Problem = model.ProblemNone
	}

	// ?release=1 opens the form only for the asset holder.
	if r.Method == http.MethodGet && r.URL.Query().Get("release") == "1" && view.IsMine {
		page.State.ReleaseOpen = true
	}

	if tab == tabAnalytics {
		stats, err := s.statsView(id, r.URL.Query(), events, meta)
		if err != nil {
			status, page.Error = s.failure(r, "analytics", err, internalErrorMessage)
			stats, _ = s.statsView(id, url.Values{}, events, meta)
		}
		page.Stats = stats
	}

	s.Templates.Render(w, status, "asset.html", page)
}

func (s *Server) statsView(id string, q url.Values, events []model.Event, meta model.EventMeta) (*analyticsView, error) {
	now := s.Now()
	loc := s.Location
	f, err := analytics.FromValues(q, now, loc, s.DefaultPreset)
	if err != nil {
		return nil, err
	}
	res := analytics.Run(events, f, loc)

	base := assetPath(id, tabAnalytics)
	v := &analyticsView{
		Result:    res,
		Filter:    f,
		From:      analytics.FormatLocal(f.Window.From, loc),
		To:        analytics.FormatLocal(f.Window.To, loc),
		WorkTypes: meta.WorkTypes,
		Users:     meta.Users,
		ResetURL:  base,
		Empty:     export.EmptyPlaceholder,
	}

	for _, p := range analytics.Presets {
		pf := f
		pf.Window = analytics.PresetWindow(p, now, loc)
		v.Presets = append(v.Presets, presetLink{
			Label:  p.Label(),
			URL:    withQuery(base, pf.Values(loc)),
			Active: f.Window.Preset == p,
		})
	}

	sf := f
	sf.Sort = f.Sort.Toggle()
	v.SortURL = withQuery(base, sf.Values(loc))
	v.SortArrow = "↓"
	if f.Sort == analytics.Asc {
		v.SortArrow = "↑"
	}

	exportBase := "/api/assets/" + url.PathEscape(id) + "/export"
	for format, target := range map[string]*string{export.FormatCSV: &v.ExportCSV, export.FormatPDF: &v.ExportPDF} {
		ev := f.Values(loc)
		ev.Set("format", format)
		*target = withQuery(exportBase, ev)
	}

	names := make(map[string]string, len(meta.Users))
	for _, u := range meta.Users {
		names[u.Login] = u.DisplayName
	}
	for _, e := range res.Events {
		user := names[e.UserLogin]
		if user == "" {
			user = e.UserLogin
		}
		v.Rows = append(v.Rows, eventRow{
			When:    export.FormatTimestamp(e.TS, loc),
			Type:    e.Type,
			Result:  e.Result,
			User:    user,
			Problem: e.Problem,
		})
	}
	return v, nil
}

func withQuery(base string, v url.Values) string {
	if len(v) == 0 {
		return base
	}
	return base + "?" + v.Encode()
}
