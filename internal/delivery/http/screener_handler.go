package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"fx-screener/internal/domain"
	"fx-screener/internal/infrastructure/export"
	"fx-screener/internal/usecase"
	"fx-screener/internal/util"
)

// ScreenerService is the part of the screener the HTTP layer needs.
type ScreenerService interface {
	Snapshot() domain.Snapshot
	Report() (domain.ScanReport, bool)
	Opportunities(column string, desc, all bool) ([]domain.Opportunity, error)
	Scan(ctx context.Context) (domain.ScanReport, error)
	Autopsy(ctx context.Context) (domain.AutopsyReport, error)
	Thresholds() domain.Thresholds
	SetThresholds(t domain.Thresholds) error
	Export(w io.Writer, f export.Format, column string, desc, all bool) error
}

type ScreenerHandler struct {
	uc      ScreenerService
	baseCtx context.Context // outlives requests, used by background scans
	logger  zerolog.Logger
}

func NewScreenerHandler(ctx context.Context, uc ScreenerService, logger zerolog.Logger) *ScreenerHandler {
	return &ScreenerHandler{
		uc:      uc,
		baseCtx: ctx,
		logger:  util.Component(logger, "http"),
	}
}

// GetOpportunities handles GET /api/opportunities?sort=&desc=&all=
func (h *ScreenerHandler) GetOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.uc.Opportunities(q.Get("sort"), queryBool(r, "desc", true), queryBool(r, "all", false))
	if err != nil {
		if errors.Is(err, usecase.ErrUnknownColumn) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetReport handles GET /api/report
func (h *ScreenerHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.uc.Report()
	if !ok {
		writeError(w, http.StatusNotFound, "No scan completed yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// TriggerScan handles POST /api/scan. With wait=true the response carries
// the report; otherwise the scan runs in the background.
func (h *ScreenerHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if h.uc.Snapshot().Progress.Running {
		writeError(w, http.StatusConflict, domain.ErrScanInProgress.Error())
		return
	}

	if queryBool(r, "wait", false) {
		report, err := h.uc.Scan(r.Context())
		if err != nil {
			h.scanError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	go func() {
		if _, err := h.uc.Scan(h.baseCtx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Warn().Err(err).Msg("Background scan failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "message": "Scan started"})
}

func (h *ScreenerHandler) scanError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrScanInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// GetAutopsy handles GET /api/autopsy
func (h *ScreenerHandler) GetAutopsy(w http.ResponseWriter, r *http.Request) {
	report, err := h.uc.Autopsy(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetThresholds handles GET /api/thresholds
func (h *ScreenerHandler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.uc.Thresholds())
}

// PutThresholds handles PUT /api/thresholds. Omitted fields keep their
// current value.
func (h *ScreenerHandler) PutThresholds(w http.ResponseWriter, r *http.Request) {
	t := h.uc.Thresholds()
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.uc.SetThresholds(t); err != nil {
		if errors.Is(err, domain.ErrInvalidThresholds) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.uc.Thresholds())
}

// Export handles GET /api/export/{format}
func (h *ScreenerHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	// Render first so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.uc.Export(&buf, f, q.Get("sort"), queryBool(r, "desc", true), queryBool(r, "all", false)); err != nil {
		if errors.Is(err, usecase.ErrUnknownColumn) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("format", string(f)).Msg("Export failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := f.Filename(time.Now())
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Healthz handles GET /healthz
func (h *ScreenerHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	snap := h.uc.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"hasScan":  snap.Report != nil,
		"progress": snap.Progress,
	})
}
