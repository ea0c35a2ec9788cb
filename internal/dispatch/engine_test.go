// internal/dispatch/engine_test.go
package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"tender-alerts/internal/channels"
	"tender-alerts/internal/common/config"
	"tender-alerts/internal/common/errors"
	"tender-alerts/internal/common/logger"
	"tender-alerts/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test doubles
// ==========================

type fakeFetcher struct {
	anns []models.Announcement
	err  error
}

func (f *fakeFetcher) FetchAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	return f.anns, f.err
}

type fakeStore struct {
	mu       sync.Mutex
	subs     []models.Subscription
	loadErr  error
	markedAt map[string]time.Time
}

func (s *fakeStore) ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return s.subs, s.loadErr
}

func (s *fakeStore) MarkNotified(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markedAt == nil {
		s.markedAt = make(map[string]time.Time)
	}
	s.markedAt[id] = at
	return nil
}

type fakeTracker struct {
	mu         sync.Mutex
	notified   map[string]struct{}
	preloadErr error
	recordErr  error
	recorded   []models.NotificationRecord
}

func (t *fakeTracker) NotifiedProcessIDs(ctx context.Context, userID, channel, recipientID string) (map[string]struct{}, error) {
	if t.preloadErr != nil {
		return nil, t.preloadErr
	}
	out := make(map[string]struct{}, len(t.notified))
	for k := range t.notified {
		out[k] = struct{}{}
	}
	return out, nil
}

func (t *fakeTracker) WasAlreadyNotified(ctx context.Context, processID, userID, channel, recipientID string) (bool, error) {
	_, ok := t.notified[processID]
	return ok, nil
}

func (t *fakeTracker) RecordNotification(ctx context.Context, rec models.NotificationRecord) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recordErr != nil {
		return false, t.recordErr
	}
	key := rec.ProcessID + "/" + rec.UserID + "/" + rec.Channel + "/" + rec.RecipientID
	if t.notified == nil {
		t.notified = make(map[string]struct{})
	}
	if _, dup := t.notified[key]; dup {
		return false, nil
	}
	t.notified[key] = struct{}{}
	t.recorded = append(t.recorded, rec)
	return true, nil
}

type fakeChannel struct {
	mu       sync.Mutex
	name     string
	enabled  bool
	sendErr  bool
	sent     []string // process ids in send order
}

func (c *fakeChannel) Name() string  { return c.name }
func (c *fakeChannel) Enabled() bool { return c.enabled }

func (c *fakeChannel) SendMessage(ctx context.Context, recipientID, text string) channels.SendResult {
	return channels.Ok("")
}

func (c *fakeChannel) SendMessageWithButtons(ctx context.Context, recipientID, text string, kb *channels.Keyboard) channels.SendResult {
	return channels.Ok("")
}

func (c *fakeChannel) SendToSubscriber(ctx context.Context, sub *models.Subscription, ann *models.Announcement, matched []string) channels.SendResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr {
		return channels.Fail("api rejected message")
	}
	c.sent = append(c.sent, ann.ProcessID)
	return channels.Ok("delivered")
}

// ==========================
// Fixtures
// ==========================

func testConfig() config.DispatchConfig {
	return config.DispatchConfig{
		MaxParallelSubs:    4,
		SendTimeoutSeconds: 5,
	}
}

func telegramSub() models.Subscription {
	return models.Subscription{
		ID:          "sub-1",
		UserID:      "user-1",
		Channel:     models.ChannelTelegram,
		RecipientID: "12345",
		Keywords:    []string{"vial"},
		Active:      true,
		Label:       "Obras",
	}
}

func roadAnnouncement() models.Announcement {
	return models.Announcement{
		ProcessID:   "SECOP-2024-001",
		Title:       "Mantenimiento vial",
		Description: "Obras de mantenimiento",
		Entity:      "Invias",
	}
}

// ==========================
// Tests
// ==========================

func TestRunCycle_SendsAndRecords(t *testing.T) {
	ch := &fakeChannel{name: models.ChannelTelegram, enabled: true}
	tr := &fakeTracker{}
	store := &fakeStore{subs: []models.Subscription{telegramSub()}}

	engine := NewEngine(
		&fakeFetcher{anns: []models.Announcement{roadAnnouncement()}},
		store, tr, channels.NewRegistry(ch), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	stats, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, []string{"SECOP-2024-001"}, ch.sent)

	require.Len(t, tr.recorded, 1)
	rec := tr.recorded[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "SECOP-2024-001", rec.ProcessID)
	assert.Equal(t, "user-1", rec.UserID)
	assert.Equal(t, models.ChannelTelegram, rec.Channel)
	assert.Equal(t, "12345", rec.RecipientID)
	assert.Equal(t, []string{"vial"}, rec.MatchedKeywords)
	assert.Equal(t, "Obras", rec.Label)

	assert.Contains(t, store.markedAt, "sub-1")
}

func TestRunCycle_SkipsAlreadyNotified(t *testing.T) {
	ch := &fakeChannel{name: models.ChannelTelegram, enabled: true}
	tr := &fakeTracker{notified: map[string]struct{}{"SECOP-2024-001": {}}}

	engine := NewEngine(
		&fakeFetcher{anns: []models.Announcement{roadAnnouncement()}},
		&fakeStore{subs: []models.Subscription{telegramSub()}},
		tr, channels.NewRegistry(ch), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	stats, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
	assert.Empty(t, ch.sent)
}

func TestRunCycle_SkipsNonMatching(t *testing.T) {
	ch := &fakeChannel{name: models.ChannelTelegram, enabled: true}
	sub := telegramSub()
	sub.Keywords = []string{"software"}

	engine := NewEngine(
		&fakeFetcher{anns: []models.Announcement{roadAnnouncement()}},
		&fakeStore{subs: []models.Subscription{sub}},
		&fakeTracker{}, channels.NewRegistry(ch), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	stats, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 1, stats.Skipped)
}

func TestRunCycle_UnknownAndDisabledChannels(t *testing.T) {
	disabled := &fakeChannel{name: models.ChannelEmail, enabled: false}

	unknownSub := telegramSub()
	unknownSub.ID = "sub-unknown"
	unknownSub.Channel = "pigeon"

	disabledSub := telegramSub()
	disabledSub.ID = "sub-disabled"
	disabledSub.Channel = models.ChannelEmail

	engine := NewEngine(
		&fakeFetcher{anns: []models.Announcement{roadAnnouncement()}},
		&fakeStore{subs: []models.Subscription{unknownSub, disabledSub}},
		&fakeTracker{}, channels.NewRegistry(disabled), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	stats, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Sent)
	assert.Equal(t, 2, stats.Skipped)
}

func TestRunCycle_SendFailureLeavesNoLedgerRow(t *testing.T) {
	ch := &fakeChannel{name: models.ChannelTelegram, enabled: true, sendErr: true}
	tr := &fakeTracker{}

	engine := NewEngine(
		&fakeFetcher{anns: []models.Announcement{roadAnnouncement()}},
		&fakeStore{subs: []models.Subscription{telegramSub()}},
		tr, channels.NewRegistry(ch), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	stats, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Sent)
	// No record written, so the next cycle retries naturally.
	assert.Empty(t, tr.recorded)
}

func TestRunCycle_LedgerWriteFailureIsNotADuplicate(t *testing.T) {
	ch := &fakeChannel{name: models.ChannelTelegram, enabled: true}
	tr := &fakeTracker{recordErr: errors.NewTrackerPersistenceError(assert.AnError)}

	engine := NewEngine(
		&fakeFetcher{anns: []models.Announcement{roadAnnouncement()}},
		&fakeStore{subs: []models.Subscription{telegramSub()}},
		tr, channels.NewRegistry(ch), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	stats, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TrackerErrors)
	assert.Equal(t, 0, stats.Failed)
	// The message did go out.
	assert.Len(t, ch.sent, 1)
}

func TestRunCycle_PreloadFailureSkipsSubscription(t *testing.T) {
	ch := &fakeChannel{name: models.ChannelTelegram, enabled: true}
	tr := &fakeTracker{preloadErr: errors.NewTrackerQueryError(assert.AnError)}

	engine := NewEngine(
		&fakeFetcher{anns: []models.Announcement{roadAnnouncement()}},
		&fakeStore{subs: []models.Subscription{telegramSub()}},
		tr, channels.NewRegistry(ch), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	stats, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TrackerErrors)
	assert.Empty(t, ch.sent)
}

func TestRunCycle_FetchFailureAbortsCycle(t *testing.T) {
	engine := NewEngine(
		&fakeFetcher{err: errors.NewSourceFetchFailedError(assert.AnError)},
		&fakeStore{}, &fakeTracker{}, channels.NewRegistry(), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	_, err := engine.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSourceFetchFailed, errors.CodeOf(err))
}

func TestRunCycle_FanOutAcrossSubscribers(t *testing.T) {
	ch := &fakeChannel{name: models.ChannelTelegram, enabled: true}

	subA := telegramSub()
	subB := telegramSub()
	subB.ID = "sub-2"
	subB.UserID = "user-2"
	subB.RecipientID = "67890"

	tr := &fakeTracker{}
	engine := NewEngine(
		&fakeFetcher{anns: []models.Announcement{roadAnnouncement()}},
		&fakeStore{subs: []models.Subscription{subA, subB}},
		tr, channels.NewRegistry(ch), nil,
		testConfig(), logger.NewNoOpLogger(),
	)

	stats, err := engine.RunCycle(context.Background())
	require.NoError(t, err)

	// Same announcement, two independent subscribers, two deliveries.
	assert.Equal(t, 2, stats.Sent)
	assert.Len(t, tr.recorded, 2)
}
