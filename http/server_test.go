package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"parbi/classify"
	"parbi/dataset"
	"parbi/db"
	"parbi/ml"
	"parbi/monitoring"
	"parbi/pages"
	"parbi/resources"
)

var corpus = []ml.Sample{
	{Sentiment: 1, Message: "climate change is real we must act now"},
	{Sentiment: 1, Message: "act on climate change for our planet"},
	{Sentiment: -1, Message: "global warming is a hoax scam"},
	{Sentiment: -1, Message: "the hoax of global warming scam"},
	{Sentiment: 2, Message: "news report arctic ice record low"},
	{Sentiment: 2, Message: "report news sea level record rise"},
	{Sentiment: 0, Message: "sunny weather today lovely"},
	{Sentiment: 0, Message: "lovely weather sunny walk"},
}

type fixture struct {
	server  *httptest.Server
	paths   map[classify.ModelChoice]string
	history *db.Store
	metrics *monitoring.Metrics
}

// newFixture trains a logistic regression on a tiny corpus and serves it
// through the real dispatcher. Only the logistic model artifact exists.
func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	dir := t.TempDir()

	prep := ml.NewDataPreprocessor(0, nil)
	x, y, err := prep.BuildTrainingSet(corpus)
	require.NoError(t, err)
	model := ml.NewLogisticRegression()
	require.NoError(t, model.Train(x, y))

	paths := classify.DefaultPaths(dir)
	require.NoError(t, ml.SaveModel(paths[classify.LogisticRegression], model, ml.ArtifactInfo{}))

	imgs := filepath.Join(dir, "imgs")
	require.NoError(t, os.MkdirAll(imgs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(imgs, "home.jpg"), []byte("jpeg-bytes"), 0o644))

	records := make([]dataset.Record, len(corpus))
	for i, s := range corpus {
		records[i] = dataset.Record{Sentiment: s.Sentiment, Message: s.Message}
	}
	ds := &dataset.Dataset{Records: records}
	summary, err := ds.Summarize()
	require.NoError(t, err)
	res := &resources.Context{
		Vectorizer: prep.Vectorizer,
		Dataset:    ds,
		Summary:    summary,
		Images:     resources.NewCatalogue(imgs),
	}

	metrics := monitoring.NewMetrics()
	dispatcher, err := classify.NewDispatcher(res.Vectorizer, classify.Options{
		Paths:   paths,
		Cache:   classify.CacheOptions{Enabled: true},
		Metrics: metrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dispatcher.Close() })

	f := &fixture{paths: paths, metrics: metrics}
	var history pages.History
	if withHistory {
		store, err := db.Open(filepath.Join(dir, "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		f.history = store
		history = store
	}

	router, err := pages.NewRouter(res, dispatcher, pages.Options{History: history, Views: metrics})
	require.NoError(t, err)
	srv, err := NewServer(ServerConfig{RequestTimeout: 5 * time.Second}, Deps{
		Pages:     router,
		Predictor: dispatcher,
		Resources: res,
		History:   history,
		Metrics:   metrics,
	})
	require.NoError(t, err)

	f.server = httptest.NewServer(srv.Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.server.Client().Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (f *fixture) postJSON(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := f.server.Client().Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestIndexRedirectsHome(t *testing.T) {
	f := newFixture(t, false)
	resp, body := f.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/page/home", resp.Request.URL.Path)
	assert.Contains(t, body, "PARBI CLASSIFIER")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestPagesRender(t *testing.T) {
	f := newFixture(t, false)
	for _, p := range pages.AllPages {
		resp, body := f.get(t, p.URL())
		assert.Equal(t, http.StatusOK, resp.StatusCode, p.String())
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Contains(t, body, "Climate change tweet classification")
	}

	resp, _ := f.get(t, "/page/settings")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPredictionForm(t *testing.T) {
	f := newFixture(t, true)

	form := url.Values{"model": {"Logistic Regression"}, "text": {"Global warming is a hoax"}}
	resp, err := f.server.Client().PostForm(f.server.URL+"/page/prediction", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Text Categorized as: &#34;")

	recent, err := f.history.RecentPredictions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Logistic Regression", recent[0].Model)
}

func TestPredictionFormMissingArtifact(t *testing.T) {
	f := newFixture(t, false)

	form := url.Values{"model": {"KNeighbors"}, "text": {"anything"}}
	resp, err := f.server.Client().PostForm(f.server.URL+"/page/prediction", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "The KNeighbors model is not available")
}

func TestPredictionFormMalformedArtifact(t *testing.T) {
	f := newFixture(t, false)
	body := `{"kind":"k_neighbors","num_features":2,"model":{"k":1,"num_features":2,"points":[{"i":[0],"v":[1],"n":1}],"labels":[5]}}`
	require.NoError(t, os.WriteFile(f.paths[classify.KNeighbors], []byte(body), 0o644))

	form := url.Values{"model": {"KNeighbors"}, "text": {"anything"}}
	resp, err := f.server.Client().PostForm(f.server.URL+"/page/prediction", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	page, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(page), "The KNeighbors model artifact could not be read.")

	apiResp, payload := f.postJSON(t, "/api/predict", `{"model":"KNeighbors","text":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, apiResp.StatusCode)
	assert.Equal(t, classify.KindMalformedArtifact, payload["kind"])
}

func TestContactForm(t *testing.T) {
	f := newFixture(t, false)
	resp, err := f.server.Client().PostForm(f.server.URL+"/page/contact-us", url.Values{"email": {"a@b.co"}, "message": {"hi"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Thank you!")
}

func TestAPIPredict(t *testing.T) {
	f := newFixture(t, false)

	for _, text := range []string{"Global warming is a hoax", "", "Type Here"} {
		body, _ := json.Marshal(map[string]string{"model": "Logistic Regression", "text": text})
		resp, payload := f.postJSON(t, "/api/predict", string(body))
		require.Equal(t, http.StatusOK, resp.StatusCode, text)
		assert.Contains(t, []any{"Neutral", "Pro", "News", "Anti"}, payload["category"])
		assert.Equal(t, "Logistic Regression", payload["model"])
	}
}

func TestAPIPredictErrors(t *testing.T) {
	f := newFixture(t, false)

	cases := []struct {
		body   string
		status int
		kind   string
	}{
		{`{"model":"Naive Bayes","text":"x"}`, http.StatusBadRequest, classify.KindInvalidSelection},
		{`{"model":"Random Forest","text":"x"}`, http.StatusNotFound, classify.KindArtifactNotFound},
		{`{not json`, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		resp, payload := f.postJSON(t, "/api/predict", tc.body)
		assert.Equal(t, tc.status, resp.StatusCode, tc.body)
		assert.Equal(t, tc.kind, payload["kind"], tc.body)
	}
}

func TestAPIPredictFeatureMismatch(t *testing.T) {
	f := newFixture(t, false)

	other := ml.NewLogisticRegression()
	require.NoError(t, other.Train([][]float64{{0, 1}, {1, 0}}, []int{0, 1}))
	require.NoError(t, ml.SaveModel(f.paths[classify.SVM], other, ml.ArtifactInfo{}))

	resp, payload := f.postJSON(t, "/api/predict", `{"model":"SVM","text":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, classify.KindFeatureMismatch, payload["kind"])
}

func TestAPIModelsAndHealth(t *testing.T) {
	f := newFixture(t, false)

	_, body := f.get(t, "/api/models")
	var models struct {
		Models []classify.ModelInfo `json:"models"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &models))
	require.Len(t, models.Models, 5)
	assert.True(t, models.Models[0].Available)
	assert.False(t, models.Models[1].Available)

	resp, body := f.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"models_available":1`)
}

func TestAPIDataset(t *testing.T) {
	f := newFixture(t, false)

	_, body := f.get(t, "/api/dataset?limit=3&offset=6")
	var page struct {
		Total   int              `json:"total"`
		Records []dataset.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &page))
	assert.Equal(t, len(corpus), page.Total)
	assert.Len(t, page.Records, 2)

	resp, _ := f.get(t, "/api/dataset?limit=0")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = f.get(t, "/api/dataset/summary")
	var summary dataset.Summary
	require.NoError(t, json.Unmarshal([]byte(body), &summary))
	assert.Equal(t, len(corpus), summary.Records)
}

func TestAPIHistory(t *testing.T) {
	f := newFixture(t, false)
	resp, _ := f.get(t, "/api/history")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f = newFixture(t, true)
	f.postJSON(t, "/api/predict", `{"model":"Logistic Regression","text":"act on climate change"}`)
	resp, body := f.get(t, "/api/history?limit=5")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "act on climate change")
}

func TestStaticImages(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.get(t, "/static/imgs/home.jpg")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "jpeg-bytes", body)

	resp, _ = f.get(t, "/static/imgs/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.postJSON(t, "/api/predict", `{"model":"Logistic Regression","text":"hello"}`)
	f.get(t, "/page/home")

	_, body := f.get(t, "/metrics")
	assert.Contains(t, body, `parbi_page_views_total{page="home"} 1`)
	assert.Contains(t, body, "parbi_predictions_total")
	assert.Contains(t, body, `parbi_model_cache_events_total{event="miss"} 1`)

	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "parbi_prediction_duration_seconds")
	assert.Contains(t, names, "go_goroutines")
}

func TestLivePredictWebsocket(t *testing.T) {
	f := newFixture(t, false)
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/ws/predict"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(liveRequest{ID: "1", Model: "Logistic Regression", Text: "climate"}))
	var reply liveReply
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "1", reply.ID)
	require.NotNil(t, reply.Result)
	assert.Nil(t, reply.Error)

	require.NoError(t, conn.WriteJSON(liveRequest{ID: "2", Model: "Decision Tree", Text: "climate"}))
	reply = liveReply{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.NotNil(t, reply.Error)
	assert.Equal(t, classify.KindArtifactNotFound, reply.Error.Kind)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	reply = liveReply{}
	require.NoError(t, conn.ReadJSON(&reply))
	require.NotNil(t, reply.Error)
	assert.Equal(t, "bad_request", reply.Error.Kind)
}

func TestLivePredictRecordsHistory(t *testing.T) {
	f := newFixture(t, true)
	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/ws/predict"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(liveRequest{ID: "1", Text: "sea level record report"}))
	var reply liveReply
	require.NoError(t, conn.ReadJSON(&reply))
	require.NotNil(t, reply.Result)

	recent, err := f.history.RecentPredictions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "sea level record report", recent[0].Message)
	assert.Equal(t, "Logistic Regression", recent[0].Model)
	assert.NotEmpty(t, recent[0].RequestID)
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := Chain(RequestIDMiddleware, RecoveryMiddleware(zap.NewNop()))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"kind":"internal"`)
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", seen)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}
