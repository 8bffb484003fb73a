package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"demandexp/internal/config"
	"demandexp/internal/experiment"
)

// ProgressSource provides snapshots of a running experiment.
type ProgressSource interface {
	Progress() experiment.Progress
}

// Server serves a read-only view of a running experiment.
type Server struct {
	Source ProgressSource
	cfg    *config.ExperimentConfig
	tpl    *template.Template
	log    *slog.Logger
	srv    *http.Server
}

//go:embed templates/index.html
var content embed.FS

// NewServer creates a server reading progress from src. Nothing listens until Start.
func NewServer(src ProgressSource, cfg *config.ExperimentConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	tpl := template.Must(template.New("index.html").Funcs(template.FuncMap{
		"title":  experiment.Title,
		"trials": trialRows,
	}).ParseFS(content, "templates/index.html"))
	return &Server{Source: src, cfg: cfg, tpl: tpl, log: log}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/progress", s.handleProgress)
	return mux
}

// Start listens on addr and serves until ctx is cancelled.
// It returns once the listener is bound; serve errors are logged.
func (s *Server) Start(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.srv = &http.Server{Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("admin server failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("admin server listening", "addr", ln.Addr().String())
	return ln.Addr(), nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := struct {
		Progress experiment.Progress
		Config   *config.ExperimentConfig
	}{
		Progress: s.Source.Progress(),
		Config:   s.cfg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Warn("render admin page", "err", err)
	}
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Source.Progress()); err != nil {
		s.log.Warn("encode progress", "err", err)
	}
}

type trialRow struct {
	Trial      int
	DemandMbps int
	LatencyMs  float64
	LossPct    float64
}

func trialRows(res experiment.ScenarioResult) []trialRow {
	rows := make([]trialRow, len(res.Demands))
	for i := range res.Demands {
		rows[i] = trialRow{Trial: i + 1, DemandMbps: res.Demands[i], LatencyMs: res.Latencies[i], LossPct: res.Losses[i]}
	}
	return rows
}
