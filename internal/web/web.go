package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"eventcal/internal/calendar"
	"eventcal/internal/category"
	"eventcal/internal/config"
	"eventcal/internal/form"
	appLog "eventcal/internal/log"
	"eventcal/internal/media"
	"eventcal/internal/store"
	"eventcal/internal/theme"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Deps are the services the handlers call into.
type Deps struct {
	Config     *config.Config
	Store      store.Store
	Categories *category.Service
	Forms      *form.Service
	Calendar   *calendar.Aggregator
	Theme      *theme.Applier

	// Bucket resolves image URLs; Media serves the bucket contents under
	// Config.MediaURLPrefix. Both are optional.
	Bucket media.Bucket
	Media  fs.FS
}

// Server renders the calendar pages and the JSON API.
type Server struct {
	cfg   *config.Config
	deps  Deps
	loc   *time.Location
	mux   *http.ServeMux
	pages map[string]*template.Template
	now   func() time.Time
}

// NewServer constructs a new Server.
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:   deps.Config,
		deps:  deps,
		loc:   deps.Config.Location(),
		mux:   http.NewServeMux(),
		pages: pages,
		now:   time.Now,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Blank credentials disable auth rather than locking everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="eventcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /calendar/day", s.handleDay)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)

	s.mux.HandleFunc("GET /events/new", s.handleNewEvent)
	s.mux.HandleFunc("POST /events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /events/{id}", s.handleEventDetail)
	s.mux.HandleFunc("POST /categories", s.handleCategoryForm)

	s.mux.HandleFunc("GET /api/categories", s.handleListCategories)
	s.mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	s.mux.HandleFunc("GET /api/events", s.handleMonthEvents)
	s.mux.HandleFunc("GET /api/theme", s.handleTheme)

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
	} else {
		s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	if s.deps.Media != nil {
		prefix := s.cfg.MediaURLPrefix
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		s.mux.Handle("GET "+prefix, http.StripPrefix(prefix, http.FileServer(http.FS(s.deps.Media))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("DB unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// page is the data every template receives.
type page struct {
	Theme theme.Theme
	Title string
	Data  any
}

func parseTemplates() (map[string]*template.Template, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template)
	for _, name := range names {
		base := strings.TrimPrefix(name, "templates/")
		if base == "layout.html" || strings.HasPrefix(base, "_") {
			continue
		}
		t, err := template.New("layout.html").ParseFS(templateFS,
			"templates/layout.html", "templates/_*.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", base, err)
		}
		pages[base] = t
	}
	return pages, nil
}

func (s *Server) currentTheme() theme.Theme {
	if s.deps.Theme != nil {
		return s.deps.Theme.Current()
	}
	return theme.At(s.now(), s.loc)
}

// render executes a page inside the layout. Output is buffered so a
// template error still yields a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, name, title string, data any) {
	s.renderTemplate(w, status, name, "layout.html", page{Theme: s.currentTheme(), Title: title, Data: data})
}

func (s *Server) renderTemplate(w http.ResponseWriter, status int, name, tmpl string, data any) {
	t, ok := s.pages[name]
	if !ok {
		appLog.Error("unknown template", errors.New("template not found"), "name", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, tmpl, data); err != nil {
		appLog.Error("template render failed", err, "name", name, "template", tmpl)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
