package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/dartq/internal/filing"
	"github.com/TobiSchelling/dartq/internal/pipeline"
	"github.com/TobiSchelling/dartq/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// MetricsService looks up the quarterly series of a named entity.
type MetricsService interface {
	MetricsByName(ctx context.Context, name, yyyymm string) (*pipeline.Metrics, error)
}

// Server is the HTTP server for metrics lookups.
type Server struct {
	svc           MetricsService
	defaultPeriod string
	pages         map[string]*template.Template
	mux           *http.ServeMux
}

// New creates a new Server. defaultPeriod fills the period field when a
// request omits it.
func New(svc MetricsService, defaultPeriod string) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone so its "content" and "title" blocks do
	// not collide.
	pageNames := []string{"index.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{svc: svc, defaultPeriod: defaultPeriod, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.logRequests(s.mux))
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /report", s.handleReport)
	s.mux.HandleFunc("GET /api/metrics", s.handleAPIMetrics)
}

type lookup struct {
	company string
	period  string
}

func (s *Server) parseLookup(r *http.Request) lookup {
	l := lookup{
		company: strings.TrimSpace(r.URL.Query().Get("company")),
		period:  strings.TrimSpace(r.URL.Query().Get("period")),
	}
	if l.period == "" {
		l.period = s.defaultPeriod
	}
	return l
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	l := s.parseLookup(r)
	s.render(w, http.StatusOK, "index.html", map[string]any{
		"Company": l.company,
		"Period":  l.period,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	l := s.parseLookup(r)
	if l.company == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	data := map[string]any{
		"Company": l.company,
		"Period":  l.period,
	}
	m, err := s.svc.MetricsByName(r.Context(), l.company, l.period)
	status, msg, candidates := classify(err)
	if msg != "" {
		data["Error"] = msg
		data["Candidates"] = candidates
		s.render(w, status, "report.html", data)
		return
	}

	data["Metrics"] = m
	data["Table"] = report.Markdown(l.company, report.Rows(m.Quarters))
	s.render(w, http.StatusOK, "report.html", data)
}

type metricsResponse struct {
	Company  string                   `json:"company"`
	EntityID string                   `json:"entity_id"`
	Target   string                   `json:"target"`
	Variant  string                   `json:"variant,omitempty"`
	Empty    bool                     `json:"empty"`
	Quarters []filing.QuarterlyMetric `json:"quarters"`
	Rows     []report.Row             `json:"rows"`
}

type errorResponse struct {
	Error      string   `json:"error"`
	Candidates []string `json:"candidates,omitempty"`
}

func (s *Server) handleAPIMetrics(w http.ResponseWriter, r *http.Request) {
	l := s.parseLookup(r)
	if l.company == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "company is required"})
		return
	}

	m, err := s.svc.MetricsByName(r.Context(), l.company, l.period)
	status, msg, candidates := classify(err)
	if msg != "" {
		writeJSON(w, status, errorResponse{Error: msg, Candidates: candidates})
		return
	}

	writeJSON(w, http.StatusOK, metricsResponse{
		Company:  l.company,
		EntityID: m.EntityID,
		Target:   m.Target,
		Variant:  m.Variant,
		Empty:    len(m.Quarters) == 0,
		Quarters: m.Quarters,
		Rows:     report.Rows(m.Quarters),
	})
}

// classify maps a lookup error to a status code and message. An empty
// message means the metrics can be shown, possibly empty.
func classify(err error) (status int, msg string, candidates []string) {
	var amb *filing.AmbiguousError
	switch {
	case err == nil, errors.Is(err, filing.ErrNoData):
		return http.StatusOK, "", nil
	case errors.Is(err, filing.ErrInvalidPeriod):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, filing.ErrNotFound):
		return http.StatusNotFound, err.Error(), nil
	case errors.As(err, &amb):
		return http.StatusConflict, err.Error(), amb.Candidates
	}
	log.Error().Err(err).Msg("metrics lookup failed")
	return http.StatusInternalServerError, "internal server error", nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encoding response")
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("rendering template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Str("query", r.URL.RawQuery).
			Int("status", rec.status).Dur("duration", time.Since(start)).Msg("HTTP request")
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Error().Str("panic", fmt.Sprint(v)).Str("path", r.URL.Path).Msg("handler panicked")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Serve runs the server on port until ctx is cancelled.
func Serve(ctx context.Context, srv *Server, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", "http://"+addr).Msg("server listening")
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}
