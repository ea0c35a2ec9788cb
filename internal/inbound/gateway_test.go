// internal/inbound/gateway_test.go
package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProcessor struct {
	payloads [][]byte
	err      error
}

func (p *mockProcessor) ProcessPayload(ctx context.Context, payload []byte) error {
	p.payloads = append(p.payloads, payload)
	return p.err
}

type gatewayFixture struct {
	gateway   *Gateway
	queue     *queue.InboundQueue
	processor *mockProcessor
}

func newGateway(t *testing.T) *gatewayFixture {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.NewInboundQueue(rdb, 500, 24*time.Hour)
	p := &mockProcessor{}

	g := NewGateway(config.InboundConfig{
		VerifyToken:          "s3cret",
		ExpectedObject:       "whatsapp_business_account",
		InlineTimeoutSeconds: 5,
	}, q, p, logger.NewNoOpLogger())

	return &gatewayFixture{gateway: g, queue: q, processor: p}
}

func (f *gatewayFixture) depth(t *testing.T) int64 {
	t.Helper()
	n, err := f.queue.Len(context.Background())
	require.NoError(t, err)
	return n
}

func postEvent(g *Gateway, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()
	g.HandleWebhook(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["status"]
}

const messageEvent = `{
	"object": "whatsapp_business_account",
	"entry": [{"changes": [{"value": {"messages": [{
		"from": "573001112233",
		"type": "interactive",
		"interactive": {"type": "button_reply", "button_reply": {"id": "analyze|SECOP-2024-001"}}
	}]}}]}]
}`

// ==========================
// Verification handshake
// ==========================

func TestVerification_Success(t *testing.T) {
	f := newGateway(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=1234", nil)
	rec := httptest.NewRecorder()
	f.gateway.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1234", rec.Body.String())
}

func TestVerification_WrongToken(t *testing.T) {
	f := newGateway(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1234", nil)
	rec := httptest.NewRecorder()
	f.gateway.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestVerification_WrongMode(t *testing.T) {
	f := newGateway(t)

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=unsubscribe&hub.verify_token=s3cret&hub.challenge=1234", nil)
	rec := httptest.NewRecorder()
	f.gateway.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerification_EmptyConfiguredSecret(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	g := NewGateway(config.InboundConfig{
		VerifyToken:    "",
		ExpectedObject: "whatsapp_business_account",
	}, queue.NewInboundQueue(rdb, 500, 24*time.Hour), nil, logger.NewNoOpLogger())

	// An empty secret can never verify, even against an empty token.
	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=&hub.challenge=1234", nil)
	rec := httptest.NewRecorder()
	g.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ==========================
// Event intake
// ==========================

func TestEvent_WrongObjectIsIgnored(t *testing.T) {
	f := newGateway(t)

	rec := postEvent(f.gateway, `{"object": "instagram", "entry": []}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeStatus(t, rec))
	assert.Equal(t, int64(0), f.depth(t))
	assert.Empty(t, f.processor.payloads)
}

func TestEvent_StatusUpdateIsAckedNotQueued(t *testing.T) {
	f := newGateway(t)

	rec := postEvent(f.gateway, `{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"value": {"statuses": [{"status": "delivered"}]}}]}]
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec))
	assert.Equal(t, int64(0), f.depth(t))
	assert.Empty(t, f.processor.payloads)
}

func TestEvent_MessageIsQueuedAndProcessedInline(t *testing.T) {
	f := newGateway(t)

	rec := postEvent(f.gateway, messageEvent)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec))
	assert.Equal(t, int64(1), f.depth(t))
	require.Len(t, f.processor.payloads, 1)
	assert.JSONEq(t, messageEvent, string(f.processor.payloads[0]))
}

func TestEvent_InlineFailureNeverChangesResponse(t *testing.T) {
	f := newGateway(t)
	f.processor.err = assert.AnError

	rec := postEvent(f.gateway, messageEvent)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeStatus(t, rec))
	// The queued copy stays behind for the consumer.
	assert.Equal(t, int64(1), f.depth(t))
}

func TestEvent_MalformedJSONIsIgnored(t *testing.T) {
	f := newGateway(t)

	rec := postEvent(f.gateway, "{not json")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeStatus(t, rec))
	assert.Equal(t, int64(0), f.depth(t))
}

func TestEvent_NonObjectPayloadIsIgnored(t *testing.T) {
	f := newGateway(t)

	rec := postEvent(f.gateway, `["not", "an", "envelope"]`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeStatus(t, rec))
	assert.Equal(t, int64(0), f.depth(t))
}

func TestWebhook_MethodNotAllowed(t *testing.T) {
	f := newGateway(t)

	req := httptest.NewRequest(http.MethodDelete, "/webhook", nil)
	rec := httptest.NewRecorder()
	f.gateway.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
