package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"orderflow/internal/common/metrics"
)

func get(path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	Router(zap.NewNop()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestMetrics_ExposesMessageCounters(t *testing.T) {
	metrics.MessagesHandled.WithLabelValues(metrics.ResultProcessed).Inc()

	w := get("/metrics")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `orderflow_messages_total{result="processed"}`)
	assert.Contains(t, body, `orderflow_messages_total{result="dead_lettered"} 0`)
	assert.Contains(t, body, "orderflow_message_handle_seconds")
}

func TestHealth(t *testing.T) {
	w := get("/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get("/orders").Code)
}
