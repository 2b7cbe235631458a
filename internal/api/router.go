package api

import (
	"net/http"
	"time"

	"github.com/erazemk/oprema/internal/analytics"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/store"
)

// DefaultMaxUploadBytes limits avatar uploads when no limit is configured.
const DefaultMaxUploadBytes = 5 << 20

// Config wires the API handlers.
type Config struct {
	Store          store.Store
	UploadsDir     string
	MaxUploadBytes int64
	CurrentUserID  int64
	TokenSecret    string
	Location       *time.Location
	DefaultPreset  analytics.Preset
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

// SetDefaults fills in unset fields.
func (c *Config) SetDefaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.DefaultPreset == "" {
		c.DefaultPreset = analytics.DefaultPreset
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	cfg.SetDefaults()
	mux := http.NewServeMux()

	usersHandler := &UsersHandler{
		Store:          cfg.Store,
		UploadsDir:     cfg.UploadsDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Metrics:        cfg.Metrics,
	}
	assetsHandler := &AssetsHandler{
		Store:         cfg.Store,
		Location:      cfg.Location,
		DefaultPreset: cfg.DefaultPreset,
		Metrics:       cfg.Metrics,
		Now:           cfg.Now,
	}

	// Users.
	mux.Handle("GET /api/users", Routed(usersHandler.List))
	mux.Handle("GET /api/users/me", Routed(usersHandler.Me))
	mux.Handle("POST /api/users/me/avatar", Routed(usersHandler.UploadAvatar))

	// Assets.
	mux.Handle("GET /api/assets", Routed(assetsHandler.List))
	mux.Handle("GET /api/assets/{id}", Routed(assetsHandler.Get))
	mux.Handle("GET /api/assets/{id}/events", Routed(assetsHandler.Events))
	mux.Handle("GET /api/assets/{id}/events/meta", Routed(assetsHandler.EventsMeta))
	mux.Handle("POST /api/assets/{id}/claim", Routed(assetsHandler.Claim))
	mux.Handle("POST /api/assets/{id}/release", Routed(assetsHandler.Release))

	// Analytics and exports.
	mux.Handle("GET /api/assets/{id}/analytics", Routed(assetsHandler.Analytics))
	mux.Handle("GET /api/assets/{id}/export", Routed(assetsHandler.Export))

	mux.Handle("/api/", Routed(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "not found")
	}))

	return IdentityMiddleware(cfg.CurrentUserID, cfg.TokenSecret)(mux)
}

// Healthz handles GET /healthz.
func Healthz(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]bool{"ok": true})
}
