package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"parbi/classify"
	"parbi/dataset"
	"parbi/db"
)

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	available := 0
	for _, m := range h.predictor.Models() {
		if m.Available {
			available++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"models_available": available,
		"features":         h.res.Vectorizer.NumFeatures(),
		"records":          h.res.Dataset.Len(),
		"history":          h.history != nil,
	})
}

func (h *handlers) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": h.predictor.Models()})
}

type predictRequest struct {
	Model string  `json:"model"`
	Text  *string `json:"text"`
}

type predictResponse struct {
	Model      string  `json:"model"`
	Category   string  `json:"category"`
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`
	Cached     bool    `json:"cached"`
	ElapsedMS  float64 `json:"elapsed_ms"`
}

func newPredictResponse(res classify.Result) predictResponse {
	return predictResponse{
		Model:      res.Model.String(),
		Category:   res.Category.String(),
		ClassID:    res.ClassID,
		Confidence: res.Confidence,
		Message:    res.Message,
		Cached:     res.Cached,
		ElapsedMS:  float64(res.Elapsed) / float64(time.Millisecond),
	}
}

func (h *handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "bad_request", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Model == "" {
		req.Model = "Logistic Regression"
	}
	text := ""
	if req.Text != nil {
		text = *req.Text
	}

	res, err := h.predictor.Predict(r.Context(), req.Model, text)
	if err != nil {
		kind := classify.KindOf(err)
		writeError(w, statusForKind(kind), kind, classify.UserMessage(err))
		return
	}
	h.record(r.Context(), GetRequestID(r.Context()), text, res)
	writeJSON(w, http.StatusOK, newPredictResponse(res))
}

// record appends a prediction to the history when it is enabled. Every
// prediction surface calls it: the JSON API and the live socket here, the
// form through the page router.
func (h *handlers) record(ctx context.Context, requestID, text string, res classify.Result) {
	if h.history == nil {
		return
	}
	err := h.history.SavePrediction(ctx, db.Prediction{
		RequestID:  requestID,
		Model:      res.Model.String(),
		Message:    text,
		Category:   res.Category.String(),
		ClassID:    res.ClassID,
		Confidence: res.Confidence,
		Cached:     res.Cached,
	})
	if err != nil {
		h.logger.Warn("save prediction", zap.Error(err))
	}
}

func (h *handlers) handleDataset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 100)
	if err != nil || limit < 1 || limit > 1000 {
		writeError(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 1000")
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "offset must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Total   int              `json:"total"`
		Offset  int              `json:"offset"`
		Limit   int              `json:"limit"`
		Records []dataset.Record `json:"records"`
	}{
		Total:   h.res.Dataset.Len(),
		Offset:  offset,
		Limit:   limit,
		Records: h.res.Dataset.Page(offset, limit),
	})
}

func (h *handlers) handleDatasetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.res.Summary)
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history_disabled", "prediction history is disabled")
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), 20)
	if err != nil || limit < 1 || limit > 500 {
		writeError(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 500")
		return
	}
	predictions, err := h.history.RecentPredictions(r.Context(), limit)
	if err != nil {
		h.logger.Error("load history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, classify.KindInternal, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": predictions})
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
