package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/oprema/internal/api"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/model"
)

type dashboardPage struct {
	PageData
	Assets []model.AssetView
}

// Dashboard handles GET /dashboard.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	s.renderDashboard(w, r, http.StatusOK, "")
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, actionError string) {
	ctx := r.Context()
	assets, err := s.Store.ListAssets(ctx)
	if err != nil {
		s.internalError(w, r, err, "failed to list assets for dashboard")
		return
	}
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		s.internalError(w, r, err, "failed to list users for dashboard")
		return
	}

	actor := api.ActorID(ctx)
	views := make([]model.AssetView, 0, len(assets))
	for i := range assets {
		views = append(views, model.ViewAsset(&assets[i], users, actor, false))
	}

	pd := s.basePage(r, "Устройства")
	pd.Error = actionError
	s.Templates.Render(w, status, "dashboard.html", &dashboardPage{
		PageData: pd,
		Assets:   views,
	})
}

// ClaimSubmit handles POST /asset/{id}/claim from the dashboard and the
// asset page. Failures re-render the page the form came from.
func (s *Server) ClaimSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, actor := r.PathValue("id"), api.ActorID(ctx)
	back := safeBack(r.FormValue("back"), assetPath(id, tabDescription))

	ev, err := s.Store.Claim(ctx, id, actor)
	if err != nil {
		status, msg := s.transitionFailed(r, metrics.ActionClaim, err, claimFailedMessage)
		if strings.HasPrefix(back, "/dashboard") {
			s.renderDashboard(w, r, status, msg)
			return
		}
		s.renderAsset(w, r, id, tabDescription, status, &assetState{ActionError: msg})
		return
	}

	s.Metrics.Transition(metrics.ActionClaim, metrics.OutcomeOK)
	slog.Info("asset claimed", "asset", id, "user", actor, "event", ev.ID)
	http.Redirect(w, r, back, http.StatusSeeOther)
}
