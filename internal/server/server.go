// Package server exposes the planner over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iwvelando/mediaplan/internal/planner"
	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/iwvelando/mediaplan/internal/ratecard"
	"github.com/iwvelando/mediaplan/internal/report"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"go.uber.org/zap"
)

// Planner is the part of planner.Planner the handlers use.
type Planner interface {
	Channels(ctx context.Context) ([]string, error)
	Programs(ctx context.Context, channel string) ([]ratecard.Program, error)
	GenerateRows(ctx context.Context, req pricing.Request) ([]pricing.AllocationRow, error)
	Optimize(ctx context.Context, req planner.OptimizeRequest) (report.Report, error)
	OptimizeBonus(ctx context.Context, req planner.BonusRequest) (report.BonusReport, error)
}

type handler struct {
	logger        *zap.Logger
	planner       Planner
	maxUploadSize int64
	version       string
}

// NewHandler constructs the HTTP handler that serves the planning API.
func NewHandler(logger *zap.Logger, p Planner, maxUploadSize int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{logger: logger, planner: p, maxUploadSize: maxUploadSize, version: trimmedVersion}

	mux := http.NewServeMux()

	// Rate card browsing
	mux.HandleFunc("/api/channels", h.handleChannels)
	mux.HandleFunc("/api/programs", h.handlePrograms)

	// Normalization only
	mux.HandleFunc("/api/generate-df", h.handleGenerateDF)

	// Optimizations
	mux.HandleFunc("/api/optimize", h.handleOptimize)
	mux.HandleFunc("/api/optimize-bonus", h.handleOptimizeBonus)

	mux.HandleFunc("/api/version", h.handleVersion)
	mux.HandleFunc("/healthz", h.handleHealth)

	return mux
}

// NewServer wraps handler in an http.Server listening on cfg.Address.
func NewServer(cfg *Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (h *handler) handleChannels(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleChannels"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	channels, err := h.planner.Channels(r.Context())
	if err != nil {
		h.respondPlannerError(w, err, op)
		return
	}
	if channels == nil {
		channels = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"channels": channels})
}

func (h *handler) handlePrograms(w http.ResponseWriter, r *http.Request) {
	const op = "server.handlePrograms"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channel == "" {
		h.respondErrorWithOp(w, http.StatusBadRequest, "Channel not specified", op)
		return
	}

	programs, err := h.planner.Programs(r.Context(), channel)
	if err != nil {
		h.respondPlannerError(w, err, op)
		return
	}
	if programs == nil {
		programs = []ratecard.Program{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]ratecard.Program{"programs": programs})
}

func (h *handler) handleGenerateDF(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleGenerateDF"
	payload, ok := h.decodePayload(w, r, op)
	if !ok {
		return
	}

	req, err := payload.ProgramsRequest()
	if err != nil {
		h.respondPlannerError(w, err, op)
		return
	}
	rows, err := h.planner.GenerateRows(r.Context(), req)
	if err != nil {
		h.respondPlannerError(w, err, op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]pricing.AllocationRow{"df_full": rows})
}

func (h *handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimize"
	start := time.Now()
	payload, ok := h.decodePayload(w, r, op)
	if !ok {
		return
	}

	req, err := payload.OptimizeRequest()
	if err != nil {
		h.respondPlannerError(w, err, op)
		return
	}
	result, err := h.planner.Optimize(r.Context(), req)
	if err != nil {
		h.respondPlannerError(w, err, op)
		return
	}

	h.logger.Info("optimization served",
		zap.String("op", op),
		zap.Bool("success", result.Success),
		zap.String("solverStatus", result.SolverStatus),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleOptimizeBonus(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptimizeBonus"
	start := time.Now()
	payload, ok := h.decodePayload(w, r, op)
	if !ok {
		return
	}

	req, err := payload.BonusRequest()
	if err != nil {
		h.respondPlannerError(w, err, op)
		return
	}
	result, err := h.planner.OptimizeBonus(r.Context(), req)
	if err != nil {
		h.respondPlannerError(w, err, op)
		return
	}

	h.logger.Info("bonus optimization served",
		zap.String("op", op),
		zap.Bool("success", result.Success),
		zap.String("solverStatus", result.SolverStatus),
		zap.Duration("duration", time.Since(start)),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodePayload reads a JSON object body. It writes the error response itself
// and reports whether the caller should continue.
func (h *handler) decodePayload(w http.ResponseWriter, r *http.Request, op string) (planner.Payload, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var payload planner.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
		case errors.Is(err, io.EOF):
			h.respondErrorWithOp(w, http.StatusBadRequest, "request body is empty", op)
		default:
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), op)
		}
		return nil, false
	}
	if payload == nil {
		payload = planner.Payload{}
	}
	return payload, true
}

// respondPlannerError maps planner errors to status codes. Request problems
// are 400 and solver backend failures fall through to 500.
func (h *handler) respondPlannerError(w http.ResponseWriter, err error, op string) {
	status := http.StatusInternalServerError
	switch {
	case planner.IsInputError(err):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	h.respondErrorWithOp(w, status, err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
