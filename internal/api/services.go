package api

import (
	"net/http"
	"strings"

	"github.com/kartoza/stats-workbench/internal/backend"
	"github.com/kartoza/stats-workbench/internal/generator"
	"github.com/kartoza/stats-workbench/internal/httputil"
	"github.com/kartoza/stats-workbench/internal/models"
)

// maxUploadBytes caps dataset uploads
const maxUploadBytes = 50 << 20

// handleCalculate forwards one calculator form submission
func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req models.CalculateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := models.Validate(req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, done := h.outbound(r, "calculate")
	defer done()

	result, err := h.services.Calculator.Calculate(ctx, *req.Num1, *req.Num2, backend.Operation(req.Operation))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.CalculateResponse{
		CalculationResult: *result,
		Display:           result.Display(),
		Expression:        result.Expression(),
	})
}

// handleStats parses the input, when given raw, and asks for descriptive statistics
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	var req models.StatsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	numbers := req.Numbers
	if req.Input != nil {
		parsed, err := backend.ParseNumbers(*req.Input)
		if err != nil {
			h.respondErr(w, r, err)
			return
		}
		numbers = parsed
	}

	ctx, done := h.outbound(r, "stats")
	defer done()

	result, err := h.services.Stats.Describe(ctx, numbers)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, models.StatsResponse{StatsResult: *result, Numbers: numbers})
}

// handleAnalyze sends a dataset for regression analysis
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var data generator.DataSet
	if err := httputil.DecodeJSON(r, &data); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, done := h.outbound(r, "analyze")
	defer done()

	results, err := h.services.Analytics.Analyze(ctx, data)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, results)
}

// handleListDatasets lists datasets stored by the analytics service
func (h *Handler) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	ctx, done := h.outbound(r, "datasets")
	defer done()

	names, err := h.services.Analytics.ListDatasets(ctx)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, models.DatasetsResponse{Datasets: names})
}

// handleDatasetInfo describes one stored dataset
func (h *Handler) handleDatasetInfo(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		httputil.RespondError(w, http.StatusBadRequest, "filename query parameter is required")
		return
	}

	ctx, done := h.outbound(r, "dataset-info")
	defer done()

	info, err := h.services.Analytics.DatasetInfo(ctx, filename)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, info)
}

// handleUploadDataset streams the request body to the analytics service.
// The file name comes from the filename query parameter or X-Filename.
func (h *Handler) handleUploadDataset(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		filename = strings.TrimSpace(r.Header.Get("X-Filename"))
	}
	if filename == "" {
		httputil.RespondError(w, http.StatusBadRequest, "filename query parameter is required")
		return
	}

	if r.ContentLength > h.maxUpload {
		httputil.RespondError(w, http.StatusRequestEntityTooLarge, backend.TooLargeMessage(h.maxUpload))
		return
	}

	ctx, done := h.outbound(r, "upload-dataset")
	defer done()

	// Bodies without a declared length are cut off while streaming
	body := http.MaxBytesReader(w, r.Body, h.maxUpload)
	info, err := h.services.Analytics.UploadDataset(ctx, filename, r.Header.Get("Content-Type"), body)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, info)
}
