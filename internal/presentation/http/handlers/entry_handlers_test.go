package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AtRiskMedia/formrelay-go/internal/application/services"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastToObservers(event string, data any) {}
func (noopBroadcaster) SendToChannel(channelID, event string, data any) {}

func newEntryRouter(t *testing.T) (*gin.Engine, *services.EntryService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := logging.NewChanneledLogger(logging.TestLoggerConfig())
	require.NoError(t, err)

	sessions := services.NewSessionService(noopBroadcaster{}, logger)
	entries := services.NewEntryService(sessions, nil, noopBroadcaster{}, logger)
	export := services.NewExportService(entries, 100, logger)
	h := NewEntryHandlers(entries, export, logger)

	r := gin.New()
	r.GET("/api/v1/entries", h.GetEntries)
	r.POST("/api/v1/submit", h.PostSubmit)
	return r, entries
}

func TestPostSubmitAcceptsEntry(t *testing.T) {
	router, entries := newEntryRouter(t)

	body := `{"identity":"v-1","topic":"payment","payload":{"cardNumber":"4111"},"page":"payment","step":5}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, entries.Len())

	var created map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "payment", created["topic"])
	assert.NotEmpty(t, created["id"])
}

func TestPostSubmitRejectsMissingFields(t *testing.T) {
	router, entries := newEntryRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit", strings.NewReader(`{"topic":"payment"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, entries.Len())
}

func TestGetEntriesNewestFirstWithLimit(t *testing.T) {
	router, entries := newEntryRouter(t)

	for i := 0; i < 3; i++ {
		_, err := entries.Submit("v-1", "landing", map[string]any{"seq": i}, "start", i)
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entries?limit=2", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		Entries []struct {
			Payload map[string]any `json:"payload"`
		} `json:"entries"`
		Count int `json:"count"`
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, 2, result.Limit)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, float64(2), result.Entries[0].Payload["seq"])
}

func TestGetEntriesRejectsBadFilters(t *testing.T) {
	router, _ := newEntryRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entries?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entries?limit=lots", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEntriesTopicFilter(t *testing.T) {
	router, entries := newEntryRouter(t)

	_, err := entries.Submit("v-1", "landing", map[string]any{}, "start", 0)
	require.NoError(t, err)
	_, err = entries.Submit("v-1", "payment", map[string]any{}, "payment", 5)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entries?topic=payment", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		Count int    `json:"count"`
		Topic string `json:"topicFilter"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "payment", result.Topic)
}
