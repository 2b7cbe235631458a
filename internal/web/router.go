package web

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/erazemk/oprema/internal/api"
	webembed "github.com/erazemk/oprema/web"
)

// Config wires the page handlers. It shares the API settings and adds the
// optional directory of a prebuilt single-page app.
type Config struct {
	api.Config
	PublicDir string
}

// NewRouter creates the web router: uploaded files plus either the SPA or
// the server-rendered pages.
func NewRouter(cfg Config) (http.Handler, error) {
	cfg.SetDefaults()
	mux := http.NewServeMux()

	mux.Handle("GET /uploads/", api.Routed(uploadsHandler(cfg.UploadsDir).ServeHTTP))

	if hasIndex(cfg.PublicDir) {
		mux.Handle("/", api.Routed(spaHandler(cfg.PublicDir)))
		return mux, nil
	}

	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		Store:          cfg.Store,
		Templates:      templates,
		UploadsDir:     cfg.UploadsDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Location:       cfg.Location,
		DefaultPreset:  cfg.DefaultPreset,
		Metrics:        cfg.Metrics,
		Now:            cfg.Now,
	}

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	mux.Handle("GET /{$}", api.Routed(redirectTo("/dashboard")))
	mux.Handle("GET /dashboard", api.Routed(s.Dashboard))

	mux.Handle("GET /asset/{id}", api.Routed(s.AssetRedirect))
	mux.Handle("GET /asset/{id}/description", api.Routed(s.DescriptionPage))
	mux.Handle("GET /asset/{id}/analytics", api.Routed(s.AnalyticsPage))
	mux.Handle("POST /asset/{id}/claim", api.Routed(s.ClaimSubmit))
	mux.Handle("POST /asset/{id}/release", api.Routed(s.ReleaseSubmit))

	mux.Handle("POST /me/avatar", api.Routed(s.AvatarSubmit))

	mux.Handle("GET /error", api.Routed(s.ErrorPage))
	mux.Handle("/", api.Routed(redirectTo("/error")))

	return api.IdentityMiddleware(cfg.CurrentUserID, cfg.TokenSecret)(mux), nil
}

func redirectTo(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	}
}

func uploadsHandler(dir string) http.Handler {
	h := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		h.ServeHTTP(w, r)
	})
}

func hasIndex(dir string) bool {
	if dir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, "index.html"))
	return err == nil && !info.IsDir()
}

// spaHandler serves files from dir and falls back to index.html for any
// path that is not a regular file.
func spaHandler(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}

		f, err := os.Open(filepath.Join(dir, "index.html"))
		if err != nil {
			http.Error(w, "index not found", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			http.Error(w, "index not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, "index.html", info.ModTime(), f)
	}
}
