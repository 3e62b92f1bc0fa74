package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/windboard/windboard/pkg/analysis"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/metrics"
	"github.com/windboard/windboard/pkg/storage"
	"github.com/windboard/windboard/pkg/types"
)

const (
	ModeLive   = "live"
	ModeStatic = "static"
)

// tokenVerifier is a function that validates a Google ID Token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server handles the HTTP API of the analysis service. In live mode every
// request runs the analysis; in static mode the result persisted by the
// precompute command is served as is.
type Server struct {
	runner  *analysis.Runner
	storage storage.Database

	listenAddr string
	httpServer *http.Server

	mode       string
	plantName  string
	corsOrigin string
	serverName string
	verifier   tokenVerifier

	// precomputed is set once by LoadPrecomputed and never modified after.
	precomputed []byte
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(runner *analysis.Runner, s storage.Database) *Server {
	srv := &Server{
		runner:     runner,
		storage:    s,
		serverName: "windboard",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	mode := lflag.String("mode", ModeLive, "Serving mode (live runs the analysis per request, static serves the pre-computed result)")
	plantName := lflag.String("plant-name", types.DefaultPlantName, "Plant whose pre-computed result is served in static mode")
	corsOrigin := lflag.String("cors-origin", "*", "Value of the Access-Control-Allow-Origin header")
	oidcAudience := lflag.String("oidc-audience", "", "audience to validate Google ID tokens against on /analyze, empty disables auth")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.plantName = *plantName
		srv.corsOrigin = *corsOrigin
		switch *mode {
		case ModeLive, ModeStatic:
			srv.mode = *mode
		default:
			log.Ctx(context.Background()).Error("unsupported mode", slog.String("mode", *mode))
			os.Exit(1)
		}
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.verifier = provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify
		}
	})

	return srv
}

// LoadPrecomputed reads the persisted result served in static mode. A missing
// result is not an error: requests then get the missing result placeholder.
func (s *Server) LoadPrecomputed(ctx context.Context) error {
	b, err := s.storage.GetLatestResult(ctx, storage.PlantID(s.plantName))
	if errors.Is(err, storage.ErrResultNotFound) {
		log.Ctx(ctx).WarnContext(ctx, "no pre-computed result found", slog.String("plant", s.plantName))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load pre-computed result: %w", err)
	}
	s.precomputed = b
	log.Ctx(ctx).InfoContext(ctx, "loaded pre-computed result",
		slog.String("plant", s.plantName),
		slog.Int("bytes", len(b)),
	)
	return nil
}

func (s *Server) setupHandler() http.Handler {
	analyzeMux := http.NewServeMux()
	analyzeMux.HandleFunc("POST /analyze", s.handleAnalyze)
	analyzeMux.HandleFunc("POST /analyze/export", s.handleExport)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.Handle("/analyze", s.authMiddleware(analyzeMux))
	mux.Handle("/analyze/", s.authMiddleware(analyzeMux))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(s.corsMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux))))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	if s.mode == ModeStatic {
		if err := s.LoadPrecomputed(ctx); err != nil {
			// static mode keeps serving the placeholder
			log.Ctx(ctx).ErrorContext(ctx, "failed to load pre-computed result", slog.Any("error", err))
		}
	}

	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr), slog.String("mode", s.mode))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, struct {
		Error string `json:"error"`
	}{Error: msg}, code)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
