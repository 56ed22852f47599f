package monitoring

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.PredictionDone("SVM", "Pro", 3*time.Millisecond)
	m.PredictionDone("SVM", "Pro", time.Millisecond)
	m.PredictionFailed("KNeighbors", "artifact_not_found")
	m.CacheEvent("hit")
	m.PageViewed("home")
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues("SVM", "Pro")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictionErrs.WithLabelValues("KNeighbors", "artifact_not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEvents.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pageViews.WithLabelValues("home")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.websocketActive))
	assert.Equal(t, 1, testutil.CollectAndCount(m.predictionTime))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.PredictionDone("Decision Tree", "News", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `parbi_predictions_total{category="News",model="Decision Tree"} 1`))
}
