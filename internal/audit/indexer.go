// internal/audit/indexer.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"

	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Indexer mirrors sent notifications into an audit index. Every call is
// best effort: the notification ledger in Postgres is the source of truth
// and an index failure must never fail or retry a dispatch.
type Indexer interface {
	IndexNotification(ctx context.Context, rec models.NotificationRecord)
}

type ElasticsearchIndexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchIndexer(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchIndexer {
	return &ElasticsearchIndexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

func (i *ElasticsearchIndexer) IndexNotification(ctx context.Context, rec models.NotificationRecord) {
	body, err := json.Marshal(rec)
	if err != nil {
		i.logger.Warn("audit record marshal failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, i.client)
	if err != nil {
		i.logger.Warn("audit index request failed", map[string]interface{}{
			"error":     err.Error(),
			"processId": rec.ProcessID,
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Warn("audit index rejected document", map[string]interface{}{
			"status":    res.Status(),
			"processId": rec.ProcessID,
		})
	}
}

// NoOpIndexer is used when the audit index is disabled.
type NoOpIndexer struct{}

func (NoOpIndexer) IndexNotification(ctx context.Context, rec models.NotificationRecord) {}
