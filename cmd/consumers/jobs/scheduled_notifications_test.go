package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"festival/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQueue повторяет условный переход pending -> sending -> sent/failed
type fakeQueue struct {
	mu    sync.Mutex
	items map[int64]*models.ScheduledNotification
}

func newFakeQueue(items ...models.ScheduledNotification) *fakeQueue {
	q := &fakeQueue{items: map[int64]*models.ScheduledNotification{}}
	for i := range items {
		n := items[i]
		if n.Status == "" {
			n.Status = models.ScheduledPending
		}
		q.items[n.ID] = &n
	}
	return q
}

func (q *fakeQueue) ClaimDue(_ context.Context, now time.Time, limit int) ([]models.ScheduledNotification, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []models.ScheduledNotification
	for _, n := range q.items {
		if len(out) == limit {
			break
		}
		if n.Status == models.ScheduledPending && !n.SendAt.After(now) {
			n.Status = models.ScheduledSending
			out = append(out, *n)
		}
	}
	return out, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id, logID int64, sentAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.items[id]
	if n.Status == models.ScheduledSending {
		n.Status = models.ScheduledSent
		n.LogID = &logID
		n.SentAt = &sentAt
	}
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id int64, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.items[id]
	if n.Status == models.ScheduledSending {
		n.Status = models.ScheduledFailed
		n.Error = &reason
	}
	return nil
}

func (q *fakeQueue) status(id int64) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items[id].Status
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	requests []models.BroadcastRequest
	failFor  map[string]bool
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, req *models.BroadcastRequest) (*models.BroadcastResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failFor[req.RecipientGroup] {
		return nil, errors.New("failed to load recipients: connection refused")
	}
	b.requests = append(b.requests, *req)
	return &models.BroadcastResponse{LogID: int64(len(b.requests)), Recipients: 3, Sent: 3}, nil
}

func TestScheduledRunOnceSendsOnlyDueNotifications(t *testing.T) {
	now := time.Date(2026, 7, 10, 18, 0, 0, 0, time.UTC)
	q := newFakeQueue(
		models.ScheduledNotification{ID: 1, Channel: "whatsapp", RecipientGroup: "ticket_holders", Body: "Einlass ab 16 Uhr", SendAt: now.Add(-time.Minute)},
		models.ScheduledNotification{ID: 2, Channel: "sms", RecipientGroup: "all", Body: "Morgen geht's los", SendAt: now.Add(time.Hour)},
		models.ScheduledNotification{ID: 3, Channel: "whatsapp", RecipientGroup: "donors", Body: "Danke!", SendAt: now.Add(-time.Minute), Status: models.ScheduledCancelled},
	)
	b := &fakeBroadcaster{}
	job := NewScheduledNotificationJob(q, b, time.Minute)
	job.now = func() time.Time { return now }

	sent, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	require.Len(t, b.requests, 1)
	assert.Equal(t, "ticket_holders", b.requests[0].RecipientGroup)
	assert.Equal(t, "Einlass ab 16 Uhr", b.requests[0].Body)

	assert.Equal(t, models.ScheduledSent, q.status(1))
	assert.Equal(t, models.ScheduledPending, q.status(2))
	assert.Equal(t, models.ScheduledCancelled, q.status(3))
	require.NotNil(t, q.items[1].LogID)
	assert.Equal(t, int64(1), *q.items[1].LogID)
}

func TestScheduledRunOnceDoesNotResend(t *testing.T) {
	now := time.Now()
	q := newFakeQueue(models.ScheduledNotification{ID: 1, Channel: "whatsapp", RecipientGroup: "all", Body: "Hallo", SendAt: now.Add(-time.Second)})
	b := &fakeBroadcaster{}
	job := NewScheduledNotificationJob(q, b, time.Minute)

	first, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := job.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Zero(t, second)
	assert.Len(t, b.requests, 1)
}

func TestScheduledRunOnceMarksFailureAndContinues(t *testing.T) {
	now := time.Now()
	q := newFakeQueue(
		models.ScheduledNotification{ID: 1, Channel: "whatsapp", RecipientGroup: "bidders", Body: "Auktion endet", SendAt: now.Add(-time.Second)},
		models.ScheduledNotification{ID: 2, Channel: "whatsapp", RecipientGroup: "donors", Body: "Danke", SendAt: now.Add(-time.Second)},
	)
	b := &fakeBroadcaster{failFor: map[string]bool{"bidders": true}}
	job := NewScheduledNotificationJob(q, b, time.Minute)

	sent, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	assert.Equal(t, models.ScheduledFailed, q.status(1))
	require.NotNil(t, q.items[1].Error)
	assert.Contains(t, *q.items[1].Error, "connection refused")
	assert.Equal(t, models.ScheduledSent, q.status(2))
}

func TestScheduledStartDispatchesImmediately(t *testing.T) {
	q := newFakeQueue(models.ScheduledNotification{ID: 1, Channel: "sms", RecipientGroup: "all", Body: "Hallo", SendAt: time.Now().Add(-time.Second)})
	job := NewScheduledNotificationJob(q, &fakeBroadcaster{}, time.Hour)

	job.Start(context.Background())
	defer job.Stop()

	assert.Eventually(t, func() bool {
		return q.status(1) == models.ScheduledSent
	}, 2*time.Second, 10*time.Millisecond)
}
