package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caffeineduck/funhost/host"
	"github.com/caffeineduck/funhost/internal/console"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for running FunLang programs",
	Long: `Start an HTTP server that boots the host in the background and exposes
it over REST. Runs are serialized on the one session.

Endpoints:
  GET    /health            Health check
  GET    /status            Lifecycle state and status line
  POST   /run               Run {"code":"...","config":"turkish"}
  GET    /output            Transcript of every run so far
  DELETE /output            Clear the transcript
  GET    /examples/{key}    Sample program for a configuration
  POST   /format            Trim whitespace in {"code":"..."}

/run answers 503 until the host is ready and 409 while another run is in
flight.`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "Address to listen on")
	rootCmd.AddCommand(serveCmd)
}

type statusResponse struct {
	State  string `json:"state"`
	Status string `json:"status"`
	Kind   string `json:"kind"`
	Busy   bool   `json:"busy"`
	Config string `json:"config"`
	Error  string `json:"error,omitempty"`
}

type runRequest struct {
	Code   string `json:"code"`
	Config string `json:"config,omitempty"`
}

type runResponse struct {
	Stdout     string  `json:"stdout"`
	Result     *string `json:"result"`
	Error      string  `json:"error,omitempty"`
	Fault      bool    `json:"fault,omitempty"`
	DurationMs int64   `json:"duration_ms"`
}

type formatRequest struct {
	Code string `json:"code"`
}

type formatResponse struct {
	Code string `json:"code"`
}

type server struct {
	ctrl   *host.Controller
	con    *console.Console
	logger *log.Logger
}

func newServer(a *app) *server {
	return &server{ctrl: a.ctrl, con: a.con, logger: a.logger}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("GET /output", s.handleOutput)
	mux.HandleFunc("DELETE /output", s.handleClear)
	mux.HandleFunc("GET /examples/{key}", s.handleExample)
	mux.HandleFunc("POST /format", s.handleFormat)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	hs := s.ctrl.Status()
	st := s.con.Status()
	resp := statusResponse{
		State:  hs.State.String(),
		Status: st.Text,
		Kind:   st.Kind.String(),
		Busy:   hs.Busy,
		Config: string(s.con.Selector()),
	}
	if hs.Failure != nil {
		resp.Error = hs.Failure.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(req.Config, `/\`) || strings.Contains(req.Config, "..") {
		http.Error(w, "invalid config key", http.StatusBadRequest)
		return
	}

	out, err := s.con.RunSource(r.Context(), req.Code, host.Selector(req.Config))
	switch {
	case errors.Is(err, console.ErrDisabled):
		http.Error(w, host.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return
	case errors.Is(err, host.ErrSessionBusy):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		Stdout:     out.Stdout,
		Result:     out.Result,
		Error:      out.Error,
		Fault:      out.Fault,
		DurationMs: out.Duration.Milliseconds(),
	})
}

func (s *server) handleOutput(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.con.Output())
}

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.con.Clear(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleExample(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !console.HasExample(key) {
		http.Error(w, "unknown example", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, console.Example(host.Selector(key)))
}

func (s *server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, formatResponse{Code: console.Format(req.Code)})
}

func runServe(cmd *cobra.Command, args []string) {
	a, cfg, err := newApp(cmd, nil, nil)
	if err != nil {
		exitWithError(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.ctrl.Close(context.Background())

	// Failures are logged and recorded by the controller; /status reports them.
	go a.ctrl.Boot(ctx)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newServer(a).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("listening", "addr", cfg.Listen, "content_root", cfg.ContentRoot)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.ctrl.Close(context.Background())
		exitWithError(err)
	}
}
