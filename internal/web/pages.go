package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/oprema/internal/api"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/model"
)

// Inline messages for failures that carry no message of their own.
const (
	claimFailedMessage   = "Не удалось занять устройство"
	releaseFailedMessage = "Не удалось освободить устройство"
	avatarFailedMessage  = "Не удалось обновить аватар"
	internalErrorMessage = "Внутренняя ошибка сервера"
	pageNotFoundMessage  = "Страница не найдена"
	assetNotFoundMessage = "Устройство не найдено"
)

// basePage fills the header data for the current user.
func (s *Server) basePage(r *http.Request, title string) PageData {
	pd := PageData{
		Title:         title,
		AvatarVersion: s.Now().Unix(),
		Back:          r.URL.RequestURI(),
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		pd.Back = safeBack(r.FormValue("back"), "/dashboard")
	}

	me, err := s.Store.GetUser(r.Context(), api.ActorID(r.Context()))
	if err != nil {
		slog.Error("failed to load current user", "error", err)
	}
	if me != nil {
		p := me.Public()
		pd.Me = &p
	}
	return pd
}

// safeBack returns target when it is a local path, fallback otherwise.
func safeBack(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return fallback
	}
	return target
}

// failure turns a store error into an inline message and status. Classified
// errors keep their own message; anything else is logged.
func (s *Server) failure(r *http.Request, action string, err error, fallback string) (int, string) {
	var me *model.Error
	if errors.As(err, &me) {
		slog.Warn(action+" rejected", "asset", r.PathValue("id"), "user", api.ActorID(r.Context()), "reason", me.Message)
		return api.StatusFor(me.Kind), me.Message
	}
	slog.Error(action+" failed", "error", err, "path", r.URL.Path, "request_id", api.RequestID(r.Context()))
	return http.StatusInternalServerError, fallback
}

// transitionFailed records a rejected or failed claim/release.
func (s *Server) transitionFailed(r *http.Request, action string, err error, fallback string) (int, string) {
	status, msg := s.failure(r, action, err, fallback)
	if status == http.StatusInternalServerError {
		s.Metrics.Transition(action, metrics.OutcomeError)
	} else {
		s.Metrics.Transition(action, metrics.OutcomeRejected)
	}
	return status, msg
}

type errorPage struct {
	PageData
	Status  int
	Message string
}

// ErrorPage handles GET /error.
func (s *Server) ErrorPage(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusOK, pageNotFoundMessage)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.Templates.Render(w, status, "error.html", &errorPage{
		PageData: s.basePage(r, "Ошибка"),
		Status:   status,
		Message:  message,
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, action string) {
	slog.Error(action, "error", err, "path", r.URL.Path, "request_id", api.RequestID(r.Context()))
	s.renderError(w, r, http.StatusInternalServerError, internalErrorMessage)
}
