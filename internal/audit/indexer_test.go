// internal/audit/indexer_test.go
package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testESClient(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{srv.URL},
	})
	require.NoError(t, err)
	return client
}

func TestIndexNotification(t *testing.T) {
	var gotPath string
	var gotDoc models.NotificationRecord
	client := testESClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotDoc))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"result":"created"}`))
	})

	idx := NewElasticsearchIndexer(client, "notifications-audit", logger.NewNoOpLogger())
	rec := models.NotificationRecord{
		ID:          "rec-1",
		ProcessID:   "SECOP-2024-001",
		UserID:      "user-1",
		Channel:     models.ChannelTelegram,
		RecipientID: "12345",
		SentAt:      time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	idx.IndexNotification(context.Background(), rec)

	assert.Equal(t, "/notifications-audit/_doc/rec-1", gotPath)
	assert.Equal(t, rec.ProcessID, gotDoc.ProcessID)
}

func TestIndexNotification_FailureIsSwallowed(t *testing.T) {
	client := testESClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cluster down", http.StatusServiceUnavailable)
	})

	idx := NewElasticsearchIndexer(client, "notifications-audit", logger.NewNoOpLogger())

	// Must not panic or surface an error to the caller.
	idx.IndexNotification(context.Background(), models.NotificationRecord{ID: "rec-2"})
}
