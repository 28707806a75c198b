package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kartoza/stats-workbench/internal/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisFixture = `{
  "summary_stats": {"x_mean": 5.1, "y_mean": 4.9, "x_median": 5, "y_median": 4.8,
                    "x_sd": 2.9, "y_sd": 2.7, "correlation": 0.93},
  "model_results": {"formula": "y ~ x", "coefficients": {"intercept": 0.4, "slope": 0.88},
                    "r_squared": 0.86, "adj_r_squared": 0.859, "p_value": 1e-40,
                    "residual_std_error": 1.01},
  "plots": {"scatter_plot": {"data":[{"type":"scatter"}],"layout":{},"frames":[]},
            "residual_plot": {"data":[],"layout":{"title":"Residuals"},"frames":[]},
            "qq_plot": {"data":[],"layout":{},"frames":[]}}
}`

func TestAnalyze(t *testing.T) {
	data := generator.Generate(generator.Params{SampleSize: 20, Correlation: 0.7, Noise: 0.3}, generator.NewSource(42))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)

		var got generator.DataSet
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, data, got)

		w.Write([]byte(analysisFixture))
	}))
	defer srv.Close()

	results, err := NewAnalytics(srv.URL).Analyze(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, Text("y ~ x"), results.ModelResults.Formula)
	assert.Equal(t, Number(0.88), results.ModelResults.Coefficients.Slope)
	assert.Equal(t, Number(0.93), results.SummaryStats.Correlation)
	assert.JSONEq(t, `{"data":[],"layout":{"title":"Residuals"},"frames":[]}`, string(results.Plots.ResidualPlot))
}

func TestAnalyzeRejectsMismatchedLengths(t *testing.T) {
	_, err := NewAnalytics("http://127.0.0.1:1").Analyze(context.Background(), generator.DataSet{X: []float64{1, 2}, Y: []float64{1}})
	assert.True(t, IsValidation(err))
}

func TestListDatasets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets", r.URL.Path)
		w.Write([]byte(`{"datasets":["iris.csv","mtcars.csv"]}`))
	}))
	defer srv.Close()

	names, err := NewAnalytics(srv.URL).ListDatasets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"iris.csv", "mtcars.csv"}, names)
}

func TestListDatasetsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	names, err := NewAnalytics(srv.URL).ListDatasets(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)
}

func TestDatasetInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dataset-info", r.URL.Path)
		assert.Equal(t, "my data.csv", r.URL.Query().Get("filename"))
		w.Write([]byte(`{"success":[true],"filename":["my data.csv"],"rows":[150],"columns":[5],
			"column_names":["a","b","c","d","e"],"preview":[{"a":1}]}`))
	}))
	defer srv.Close()

	info, err := NewAnalytics(srv.URL).DatasetInfo(context.Background(), "my data.csv")
	require.NoError(t, err)
	assert.True(t, bool(info.Success))
	assert.Equal(t, Number(150), info.Rows)
	assert.Len(t, info.ColumnNames, 5)
}

func TestDatasetInfoNotSuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"File not found"}`))
	}))
	defer srv.Close()

	_, err := NewAnalytics(srv.URL).DatasetInfo(context.Background(), "nope.csv")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "File not found", apiErr.Message)
}

func TestUploadRejectsNonCSVWithoutNetworkCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	_, err := NewAnalytics(srv.URL).UploadDataset(context.Background(), "notes.txt", "text/plain", strings.NewReader("x"))

	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "Please upload a CSV file", err.Error())
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestUploadDataset(t *testing.T) {
	payload := []byte("x,y\n1,2\n3,4\n")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload-dataset", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, payload, body)
		w.Write([]byte(`{"success":true,"rows":2,"columns":2,"column_names":["x","y"],"preview":[{"x":1,"y":2}]}`))
	}))
	defer srv.Close()

	info, err := NewAnalytics(srv.URL).UploadDataset(context.Background(), "points.CSV", "", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, Number(2), info.Rows)
	assert.Equal(t, Text("points.CSV"), info.Filename)
}

func TestUploadDatasetFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"message":"Could not parse CSV"}`))
	}))
	defer srv.Close()

	_, err := NewAnalytics(srv.URL).UploadDataset(context.Background(), "bad.csv", "text/csv", strings.NewReader(""))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Could not parse CSV", apiErr.Message)
}

func TestUploadDatasetUnsuccessfulWithOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"success":[false],"message":["Empty file"]}`))
	}))
	defer srv.Close()

	_, err := NewAnalytics(srv.URL).UploadDataset(context.Background(), "empty.csv", "text/csv", strings.NewReader(""))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.Equal(t, "Empty file", apiErr.Message)
}

func TestValidateUploadFile(t *testing.T) {
	assert.NoError(t, ValidateUploadFile("data.csv", ""))
	assert.NoError(t, ValidateUploadFile("DATA.CSV", "application/octet-stream"))
	assert.NoError(t, ValidateUploadFile("sheet", "text/csv; charset=utf-8"))
	assert.NoError(t, ValidateUploadFile("book.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Error(t, ValidateUploadFile("book.xlsx", ""))
	assert.Error(t, ValidateUploadFile("image.png", "image/png"))
	assert.Error(t, ValidateUploadFile("", ""))
}

func TestUploadDatasetTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	rec := &recorder{}
	body := http.MaxBytesReader(nil, io.NopCloser(bytes.NewReader(make([]byte, 4096))), 1024)
	_, err := NewAnalytics(srv.URL, WithObserver(rec.observe)).UploadDataset(context.Background(), "big.csv", "text/csv", body)

	var tooLarge *TooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, int64(1024), tooLarge.Limit)
	assert.Equal(t, "File is too large. The maximum upload size is 1024 bytes", err.Error())

	var connectErr *ConnectError
	assert.False(t, errors.As(err, &connectErr))
	require.Len(t, rec.seen, 1)
	assert.Equal(t, OutcomeTooLarge, rec.seen[0].outcome)
}

func TestTooLargeMessage(t *testing.T) {
	assert.Equal(t, "File is too large. The maximum upload size is 50 MB", TooLargeMessage(50<<20))
	assert.Equal(t, "File is too large. The maximum upload size is 1500 bytes", TooLargeMessage(1500))
}
