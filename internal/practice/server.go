// Package practice serves a small login and invoice web app whose pages can
// be switched between versions at runtime. Scenarios and integration tests
// drive it to exercise retries, waits and accessibility scans locally.
package practice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raysh454/uiflow/internal/logging"
)

const sessionCookie = "uiflow_session"

// Server is the practice web app.
type Server struct {
	cfg       Config
	logger    logging.Logger
	pages     map[string]PageDefinition
	templates map[string]map[int]*template.Template

	mu       sync.RWMutex
	versions map[string]int    // path -> current version
	sessions map[string]string // token -> user
}

// NewServer creates a practice server instance.
func NewServer(cfg Config, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	if cfg.InitialVersion < 1 {
		cfg.InitialVersion = 1
	}
	s := &Server{
		cfg:       cfg,
		logger:    logger,
		pages:     map[string]PageDefinition{},
		templates: map[string]map[int]*template.Template{},
		versions:  map[string]int{},
		sessions:  map[string]string{},
	}
	for _, p := range AllPages() {
		s.pages[p.Path] = p
		s.versions[p.Path] = cfg.InitialVersion
		s.templates[p.Path] = map[int]*template.Template{}
		for v, pv := range p.Versions {
			t, err := template.New(fmt.Sprintf("%s@%d", p.Path, v)).Parse(pv.HTML)
			if err != nil {
				return nil, fmt.Errorf("parse page %s v%d: %w", p.Path, v, err)
			}
			s.templates[p.Path][v] = t
		}
	}
	return s, nil
}

// Handler returns the app's routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for path := range s.pages {
		r.Get(path, s.pageHandler(path))
	}
	r.Post("/login", s.loginHandler)
	r.Post("/logout", s.logoutHandler)
	r.Get("/static/logo.svg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(logoSVG))
	})

	r.Route("/practice", func(r chi.Router) {
		r.Get("/control", s.controlPanelHandler)
		r.Get("/versions", s.getVersionsHandler)
		r.Post("/set-version", s.setVersionHandler)
		r.Post("/reset", s.resetVersionsHandler)
	})
	return r
}

// ListenAndServe serves on the configured port until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("practice server listening",
			logging.Field{Key: "addr", Value: srv.Addr},
			logging.Field{Key: "control", Value: fmt.Sprintf("http://localhost:%d/practice/control", s.cfg.Port)})
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// SetVersion switches path to version. Unknown pages or versions are errors.
func (s *Server) SetVersion(path string, version int) error {
	p, ok := s.pages[path]
	if !ok {
		return fmt.Errorf("unknown page %q", path)
	}
	if _, ok := p.Versions[version]; !ok {
		return fmt.Errorf("page %s has no version %d", path, version)
	}
	s.mu.Lock()
	s.versions[path] = version
	s.mu.Unlock()
	return nil
}

// Version reports the current version of path.
func (s *Server) Version(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[path]
}

func (s *Server) user(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.sessions[c.Value]
	return u, ok
}

// pageHandler returns a handler for a specific page path.
func (s *Server) pageHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageDef := s.pages[path]
		data := PageData{Error: r.URL.Query().Get("error")}
		if pageDef.Protected {
			u, ok := s.user(r)
			if !ok {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			data.User = u
		}

		s.mu.RLock()
		version := s.versions[path]
		s.mu.RUnlock()

		// fall back to the closest lower version
		tmpl, ok := s.templates[path][version]
		for v := version; !ok && v >= 1; v-- {
			tmpl, ok = s.templates[path][v]
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		data.Version = version

		for k, v := range pageDef.Versions[version].Headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			s.logger.Warn("render practice page", logging.Field{Key: "path", Value: path}, logging.Err(err))
		}
	}
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	user := r.PostFormValue("username")
	if user != s.cfg.Username || r.PostFormValue("password") != s.cfg.Password {
		s.logger.Info("practice login rejected", logging.Field{Key: "user", Value: user})
		http.Redirect(w, r, "/?error="+url.QueryEscape("Invalid username or password"), http.StatusSeeOther)
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = user
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.Redirect(w, r, "/invoices", http.StatusSeeOther)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// PageInfo is the control API's view of one page.
type PageInfo struct {
	Path              string         `json:"path"`
	Description       string         `json:"description"`
	CurrentVersion    int            `json:"current_version"`
	AvailableVersions map[int]string `json:"available_versions"`
}

func (s *Server) pageInfos() []PageInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pages []PageInfo
	for path, pageDef := range s.pages {
		versions := map[int]string{}
		for v, pv := range pageDef.Versions {
			versions[v] = pv.Name
		}
		pages = append(pages, PageInfo{
			Path:              path,
			Description:       pageDef.Description,
			CurrentVersion:    s.versions[path],
			AvailableVersions: versions,
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Path < pages[j].Path })
	return pages
}

func (s *Server) getVersionsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.pageInfos())
}

// setVersionHandler sets the version for a specific page.
func (s *Server) setVersionHandler(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(r.FormValue("version"))
	if err != nil {
		http.Error(w, "Invalid version number", http.StatusBadRequest)
		return
	}
	if err := s.SetVersion(r.FormValue("path"), version); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}

// resetVersionsHandler resets all pages to version 1.
func (s *Server) resetVersionsHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	for path := range s.versions {
		s.versions[path] = 1
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "All versions reset to 1"})
}

var controlPanel = template.Must(template.New("control").Parse(controlPanelHTML))

// controlPanelHandler serves the control panel for version management.
func (s *Server) controlPanelHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = controlPanel.Execute(w, s.pageInfos())
}

const controlPanelHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <title>Practice Control Panel</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 960px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
        .page-card { background: white; border-radius: 8px; padding: 16px; margin: 12px 0; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .version-btn { padding: 6px 14px; border: none; border-radius: 4px; cursor: pointer; margin-right: 6px; }
        .version-btn.active { background: #4361ee; color: white; }
        .version-btn.inactive { background: #e9ecef; color: #333; }
    </style>
</head>
<body>
    <h1>Practice Control Panel</h1>
    <button onclick="fetch('/practice/reset', {method: 'POST'}).then(function () { location.reload(); })">Reset all to v1</button>
    {{range .}}
    <div class="page-card">
        <a href="{{.Path}}" target="_blank">{{.Path}}</a> <strong>v{{.CurrentVersion}}</strong>
        <p>{{.Description}}</p>
        {{$current := .CurrentVersion}}{{$path := .Path}}
        {{range $v, $name := .AvailableVersions}}
        <button class="version-btn {{if eq $current $v}}active{{else}}inactive{{end}}" data-path="{{$path}}" data-version="{{$v}}" onclick="setVersion(this)">v{{$v}} {{$name}}</button>
        {{end}}
    </div>
    {{end}}
    <script>
        function setVersion(btn) {
            var body = new URLSearchParams({path: btn.dataset.path, version: btn.dataset.version});
            fetch('/practice/set-version', {method: 'POST', body: body}).then(function () { location.reload(); });
        }
    </script>
</body>
</html>`
