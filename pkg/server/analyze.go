package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/windboard/windboard/pkg/export"
	"github.com/windboard/windboard/pkg/log"
	"github.com/windboard/windboard/pkg/metrics"
	"github.com/windboard/windboard/pkg/storage"
	"github.com/windboard/windboard/pkg/types"
)

const missingResultMessage = "Pre-computed results not found on server."

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.mode == ModeStatic {
		writeJSON(w, types.HealthResponse{
			Status:           "Backend Active (Static Mode)",
			Engine:           "OpenOA (Pre-computed)",
			LibraryInstalled: false,
			DataAvailable:    true,
			EngieLoader:      false,
		}, http.StatusOK)
		return
	}
	writeJSON(w, s.runner.Health(r.Context()), http.StatusOK)
}

// requestPlantName returns the plant named by the request body. A missing or
// unreadable body names the default plant.
func requestPlantName(w http.ResponseWriter, r *http.Request) string {
	if r.Body == nil {
		return types.DefaultPlantName
	}
	// Limit body size to 1MB to prevent DoS
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1048576))
	if err != nil {
		log.Ctx(r.Context()).WarnContext(r.Context(), "failed to read request body", slog.Any("error", err))
		return types.DefaultPlantName
	}
	var req types.AnalysisRequest
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			log.Ctx(r.Context()).InfoContext(r.Context(), "ignoring invalid request body", slog.Any("error", err))
			return types.DefaultPlantName
		}
	}
	if name := strings.TrimSpace(req.PlantName); name != "" {
		return name
	}
	return types.DefaultPlantName
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plantName := requestPlantName(w, r)

	if s.mode == ModeStatic {
		if s.precomputed == nil {
			writeJSON(w, types.MissingResult{
				Status: types.StatusError,
				Error:  missingResultMessage,
				Mode:   types.ModeErrorFallback,
			}, http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(s.precomputed); err != nil {
			panic(http.ErrAbortHandler)
		}
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "analysis requested", slog.String("plant", plantName))
	writeJSON(w, s.runner.Analyze(ctx, plantName), http.StatusOK)
}

// result returns the response /analyze would serve for plantName.
func (s *Server) result(r *http.Request, plantName string) (types.AnalysisResponse, error) {
	if s.mode != ModeStatic {
		return s.runner.Analyze(r.Context(), plantName), nil
	}
	if s.precomputed == nil {
		return types.AnalysisResponse{}, storage.ErrResultNotFound
	}
	var resp types.AnalysisResponse
	if err := json.Unmarshal(s.precomputed, &resp); err != nil {
		return types.AnalysisResponse{}, fmt.Errorf("failed to decode pre-computed result: %w", err)
	}
	return resp, nil
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	plantName := requestPlantName(w, r)

	resp, err := s.result(r, plantName)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "no result to export", slog.Any("error", err))
		metrics.ObserveExport(string(format), "error", time.Since(start))
		writeJSONError(w, missingResultMessage, http.StatusNotFound)
		return
	}

	b, err := export.Render(format, resp)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to render export", slog.String("format", string(format)), slog.Any("error", err))
		metrics.ObserveExport(string(format), "error", time.Since(start))
		writeJSONError(w, "failed to render export", http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport(string(format), "success", time.Since(start))

	filename := storage.PlantID(plantName)
	if filename == "" {
		filename = "analysis"
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+"-aep."+string(format)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(b); err != nil {
		panic(http.ErrAbortHandler)
	}
}
