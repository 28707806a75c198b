package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kartoza/stats-workbench/internal/generator"
	"github.com/kartoza/stats-workbench/internal/httputil"
	"github.com/kartoza/stats-workbench/internal/models"
)

// previewSize matches the "first 5 points" shown under the form
const previewSize = 5

// handleGenerate builds a synthetic dataset. Parameters outside the form's
// ranges are rejected here; the generator itself never refuses them.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req := models.GenerateRequest{Params: generator.DefaultParams()}
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := req.Params.Validate(); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var src generator.Source
	if req.Seed != nil {
		src = generator.NewSource(*req.Seed)
	} else {
		src = h.newSource()
	}

	data := generator.Generate(req.Params, src)
	if h.metrics != nil {
		h.metrics.RecordDataset(data.Len())
	}
	h.logger.Debug("Generated dataset",
		zap.Int("sampleSize", req.SampleSize),
		zap.Float64("correlation", req.Correlation),
		zap.Float64("noise", req.Noise),
	)

	httputil.RespondJSON(w, http.StatusOK, models.GenerateResponse{
		DataSet: data,
		Params:  req.Params,
		Seed:    req.Seed,
		Preview: data.Preview(previewSize),
	})
}
