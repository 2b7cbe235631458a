package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/erazemk/oprema/internal/api"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/model"
)

// AvatarSubmit handles POST /me/avatar from the header form.
func (s *Server) AvatarSubmit(w http.ResponseWriter, r *http.Request) {
	actor := api.ActorID(r.Context())

	file, size, err := api.ReadAvatarUpload(w, r, s.MaxUploadBytes)
	if err != nil {
		s.Metrics.AvatarUpload(metrics.OutcomeRejected)
		status, msg := s.failure(r, "avatar upload", err, avatarFailedMessage)
		s.renderBack(w, r, status, msg)
		return
	}
	defer file.Close()

	name, err := api.ReplaceAvatar(r.Context(), s.Store, s.UploadsDir, actor, file)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.Metrics.AvatarUpload(metrics.OutcomeRejected)
			s.renderBack(w, r, http.StatusNotFound, model.ErrMeNotFound.Message)
			return
		}
		s.Metrics.AvatarUpload(metrics.OutcomeError)
		slog.Error("avatar upload failed", "error", err, "user", actor)
		s.renderBack(w, r, http.StatusInternalServerError, avatarFailedMessage)
		return
	}

	s.Metrics.AvatarUpload(metrics.OutcomeOK)
	slog.Info("avatar updated", "user", actor, "file", name, "size", size)
	http.Redirect(w, r, safeBack(r.FormValue("back"), "/dashboard"), http.StatusSeeOther)
}

// renderBack re-renders the page named by the form's back field with msg in
// the page alert. Anything that is not an asset page falls back to the
// dashboard.
func (s *Server) renderBack(w http.ResponseWriter, r *http.Request, status int, msg string) {
	back := safeBack(r.FormValue("back"), "/dashboard")
	u, err := url.Parse(back)
	if err == nil {
		if id, tab, ok := parseAssetPath(u.Path); ok {
			// The analytics tab reads its filters from the query of the page it came from.
			rr := r.Clone(r.Context())
			rr.URL.RawQuery = u.RawQuery
			s.renderAsset(w, rr, id, tab, status, &assetState{PageError: msg})
			return
		}
	}
	s.renderDashboard(w, r, status, msg)
}

// parseAssetPath splits /asset/{id}/{tab}.
func parseAssetPath(p string) (id, tab string, ok bool) {
	rest, found := strings.CutPrefix(p, "/asset/")
	if !found {
		return "", "", false
	}
	id, tab, found = strings.Cut(rest, "/")
	if !found || id == "" {
		return "", "", false
	}
	switch tab {
	case tabDescription, tabAnalytics:
		return id, tab, true
	}
	return "", "", false
}
