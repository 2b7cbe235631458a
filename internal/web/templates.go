package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/oprema/internal/analytics"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
	webembed "github.com/erazemk/oprema/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"icon": DeviceIcon,
		"statusName": func(status string) string {
			switch status {
			case model.StatusBusy:
				return "Занято"
			case model.StatusFree:
				return "Свободно"
			default:
				return status
			}
		},
		"typeName": func(t string) string {
			switch t {
			case model.TypeBox:
				return "Бокс"
			case model.TypeOsmometer:
				return "Осмометр"
			case model.TypeRecirculation:
				return "Рециркулятор"
			default:
				return "Устройство"
			}
		},
		"problemName": func(p string) string {
			switch p {
			case model.ProblemWarning:
				return "Предупреждение"
			case model.ProblemAlarm:
				return "Alarm"
			default:
				return "Нет"
			}
		},
		"avatar": func(u *model.PublicUser, version int64) string {
			if u == nil || u.AvatarURL == nil {
				return ""
			}
			return AvatarSrc(*u.AvatarURL, version)
		},
		"orDash": func(s string) string {
			if s == "" {
				return "—"
			}
			return s
		},
	}
}

// DeviceIcon returns the static icon path for a device type.
func DeviceIcon(deviceType string) string {
	if !model.IsDeviceType(deviceType) {
		deviceType = model.TypeUnknown
	}
	return "/static/icons/" + deviceType + ".svg"
}

// AvatarSrc appends a cache-busting version to an avatar URL.
func AvatarSrc(url string, version int64) string {
	return url + "?v=" + strconv.FormatInt(version, 10)
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	// Read layout.
	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"dashboard.html",
		"asset.html",
		"error.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given status and data.
func (ts *Templates) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title string
	Me    *model.PublicUser
	// AvatarVersion busts cached avatar images.
	AvatarVersion int64
	// Back is where the header's avatar form returns to.
	Back  string
	Error string
}

// Server holds all dependencies for page handlers.
type Server struct {
	Store          store.Store
	Templates      *Templates
	UploadsDir     string
	MaxUploadBytes int64
	Location       *time.Location
	DefaultPreset  analytics.Preset
	Metrics        *metrics.Metrics
	Now            func() time.Time
}
