package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/kartoza/stats-workbench/internal/generator"
)

// SummaryStatistics describes both columns of an analysed dataset
type SummaryStatistics struct {
	XMean       Number `json:"x_mean"`
	YMean       Number `json:"y_mean"`
	XMedian     Number `json:"x_median"`
	YMedian     Number `json:"y_median"`
	XSD         Number `json:"x_sd"`
	YSD         Number `json:"y_sd"`
	Correlation Number `json:"correlation"`
}

// ModelCoefficients are the fitted line parameters
type ModelCoefficients struct {
	Intercept Number `json:"intercept"`
	Slope     Number `json:"slope"`
}

// ModelResults summarises the linear regression fit
type ModelResults struct {
	Formula          Text              `json:"formula"`
	Coefficients     ModelCoefficients `json:"coefficients"`
	RSquared         Number            `json:"r_squared"`
	AdjRSquared      Number            `json:"adj_r_squared"`
	PValue           Number            `json:"p_value"`
	ResidualStdError Number            `json:"residual_std_error"`
}

// Plots holds plotting-library figure specs, passed through untouched
type Plots struct {
	ScatterPlot  json.RawMessage `json:"scatter_plot"`
	ResidualPlot json.RawMessage `json:"residual_plot"`
	QQPlot       json.RawMessage `json:"qq_plot"`
}

// AnalysisResults is the body of a successful POST /analyze
type AnalysisResults struct {
	SummaryStats SummaryStatistics `json:"summary_stats"`
	ModelResults ModelResults      `json:"model_results"`
	Plots        Plots             `json:"plots"`
}

// DatasetInfo describes an uploaded or stored dataset
type DatasetInfo struct {
	Success     Flag            `json:"success"`
	Filename    Text            `json:"filename,omitempty"`
	Rows        Number          `json:"rows"`
	Columns     Number          `json:"columns"`
	ColumnNames []string        `json:"column_names"`
	Preview     json.RawMessage `json:"preview,omitempty"`
	Message     Text            `json:"message,omitempty"`
}

// validUploadTypes are the MIME types accepted besides a .csv extension
var validUploadTypes = map[string]bool{
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

// ValidateUploadFile rejects files that are neither named *.csv nor
// declared with a spreadsheet MIME type
func ValidateUploadFile(filename, contentType string) error {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
	if ext == "csv" {
		return nil
	}
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if validUploadTypes[strings.ToLower(mediaType)] {
		return nil
	}
	return invalid("Please upload a CSV file")
}

// Analytics talks to the R regression and dataset API
type Analytics struct {
	endpoint
}

// NewAnalytics creates an analytics adapter for the given base URL
func NewAnalytics(baseURL string, opts ...Option) *Analytics {
	return &Analytics{
		endpoint: newEndpoint("analytics", baseURL,
			"Error analyzing data with R. Make sure the R Plumber API is running.", opts),
	}
}

// CheckStatus reports whether the service answers its liveness probe
func (a *Analytics) CheckStatus(ctx context.Context) bool {
	return a.checkStatus(ctx)
}

// Analyze fits a linear model to the dataset
func (a *Analytics) Analyze(ctx context.Context, data generator.DataSet) (*AnalysisResults, error) {
	if len(data.X) != len(data.Y) {
		return nil, invalid("x and y must have the same length, got %d and %d", len(data.X), len(data.Y))
	}
	if len(data.X) == 0 {
		return nil, invalid("dataset is empty")
	}
	for i := range data.X {
		if !finite(data.X[i]) || !finite(data.Y[i]) {
			return nil, invalid("point %d is not a finite number", i)
		}
	}

	body, err := jsonBody(data)
	if err != nil {
		return nil, err
	}

	resp, err := a.send(ctx, request{
		operation:   "analyze",
		method:      http.MethodPost,
		path:        "/analyze",
		body:        body,
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, a.apiError(resp, "Error analyzing data with R.", "error")
	}

	var results AnalysisResults
	if err := a.decode(resp, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// ListDatasets returns the filenames of datasets stored by the service
func (a *Analytics) ListDatasets(ctx context.Context) ([]string, error) {
	resp, err := a.send(ctx, request{
		operation: "datasets",
		method:    http.MethodGet,
		path:      "/datasets",
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, a.apiError(resp, "Failed to load datasets", "error")
	}

	var payload struct {
		Datasets []string `json:"datasets"`
	}
	if err := a.decode(resp, &payload); err != nil {
		return nil, err
	}
	if payload.Datasets == nil {
		payload.Datasets = []string{}
	}
	return payload.Datasets, nil
}

// DatasetInfo fetches shape and preview information for one dataset
func (a *Analytics) DatasetInfo(ctx context.Context, filename string) (*DatasetInfo, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, invalid("filename is required")
	}

	resp, err := a.send(ctx, request{
		operation: "dataset_info",
		method:    http.MethodGet,
		path:      "/dataset-info?filename=" + url.QueryEscape(filename),
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, a.apiError(resp, "Failed to load dataset info", "message")
	}

	var info DatasetInfo
	if err := a.decode(resp, &info); err != nil {
		return nil, err
	}
	if !info.Success {
		msg := string(info.Message)
		if msg == "" {
			msg = "Failed to load dataset info"
		}
		return nil, &APIError{Service: a.service, Status: resp.status, Message: msg}
	}
	return &info, nil
}

// UploadDataset sends the raw file bytes to the service. Files that are
// not CSV are rejected before anything is sent.
func (a *Analytics) UploadDataset(ctx context.Context, filename, contentType string, body io.Reader) (*DatasetInfo, error) {
	if err := ValidateUploadFile(filename, contentType); err != nil {
		return nil, err
	}

	resp, err := a.send(ctx, request{
		operation:   "upload_dataset",
		method:      http.MethodPost,
		path:        "/upload-dataset",
		body:        body,
		contentType: "application/octet-stream",
	})
	if err != nil {
		return nil, err
	}

	var info DatasetInfo
	if decodeErr := a.decode(resp, &info); decodeErr != nil {
		if !resp.ok() {
			return nil, a.apiError(resp, "Upload failed", "message")
		}
		return nil, decodeErr
	}
	if !resp.ok() || !bool(info.Success) {
		msg := string(info.Message)
		if msg == "" {
			msg = "Upload failed"
		}
		return nil, &APIError{Service: a.service, Status: resp.status, Message: msg}
	}
	if info.Filename == "" {
		info.Filename = Text(filename)
	}
	return &info, nil
}
