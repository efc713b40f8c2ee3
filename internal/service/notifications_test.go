package service

import (
	"context"
	"sync"
	"testing"

	"festival/internal/external"
	"festival/internal/models"
	"festival/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channel, to, body string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]bool
}

func (s *fakeSender) SendMessage(_ context.Context, channel, to, body string) external.SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[to] {
		return external.SendResult{Success: false, Error: "undeliverable"}
	}
	s.sent = append(s.sent, sentMessage{channel: channel, to: to, body: body})
	return external.SendResult{Success: true, MessageID: "SM1"}
}

type fakeDirectory struct {
	users  map[int64]*models.User
	groups map[string][]repository.Recipient
}

func (d *fakeDirectory) GetByID(_ context.Context, id int64) (*models.User, error) {
	return d.users[id], nil
}

func (d *fakeDirectory) RecipientsForGroup(_ context.Context, group string) ([]repository.Recipient, error) {
	return d.groups[group], nil
}

type fakeNotificationLog struct {
	entries []models.NotificationLog
}

func (l *fakeNotificationLog) Log(_ context.Context, entry *models.NotificationLog) error {
	entry.ID = int64(len(l.entries) + 1)
	l.entries = append(l.entries, *entry)
	return nil
}

func phone(s string) *string { return &s }

func newNotificationFixture() (*NotificationService, *fakeSender, *fakeNotificationLog) {
	dir := &fakeDirectory{
		users: map[int64]*models.User{
			1: {ID: 1, FirstName: "Alex", Phone: phone("+491701111111")},
			2: {ID: 2, FirstName: "Sam", Phone: phone("+491702222222")},
			3: {ID: 3, FirstName: "Robin"},
		},
		groups: map[string][]repository.Recipient{
			"ticket_holders": {
				{UserID: 1, Phone: "+491701111111"},
				{UserID: 2, Phone: "+491702222222"},
			},
		},
	}
	sender := &fakeSender{failFor: map[string]bool{}}
	logs := &fakeNotificationLog{}
	return NewNotificationService(dir, logs, sender), sender, logs
}

func TestNotifyTicketsIssued(t *testing.T) {
	svc, sender, _ := newNotificationFixture()

	err := svc.NotifyTicketsIssued(context.Background(), &models.TicketsIssuedEvent{
		UserID:        1,
		TicketNumbers: []string{"HAF-A-11111", "HAF-A-22222"},
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, external.ChannelWhatsApp, sender.sent[0].channel)
	assert.Equal(t, "+491701111111", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "HAF-A-11111, HAF-A-22222")
}

func TestNotifySkipsUsersWithoutPhoneAndAnonymousDonors(t *testing.T) {
	svc, sender, _ := newNotificationFixture()

	require.NoError(t, svc.NotifyTicketsIssued(context.Background(), &models.TicketsIssuedEvent{UserID: 3}))
	require.NoError(t, svc.NotifyTicketsIssued(context.Background(), &models.TicketsIssuedEvent{UserID: 99}))
	require.NoError(t, svc.NotifyDonationReceived(context.Background(), &models.DonationReceivedEvent{Amount: 500}))

	assert.Empty(t, sender.sent)
}

func TestNotifyDonationReceived(t *testing.T) {
	svc, sender, _ := newNotificationFixture()
	userID := int64(2)

	err := svc.NotifyDonationReceived(context.Background(), &models.DonationReceivedEvent{
		UserID:       &userID,
		Amount:       2500,
		ProjectLabel: "Spende für Trinkwasser",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].body, "25.00 EUR")
	assert.Contains(t, sender.sent[0].body, "Spende für Trinkwasser")
}

func TestNotifyBidSettledTellsPreviousLeader(t *testing.T) {
	svc, sender, _ := newNotificationFixture()
	previous := int64(1)

	err := svc.NotifyBidSettled(context.Background(), &models.BidSettledEvent{
		UserID:         2,
		Amount:         15000,
		Leading:        true,
		PreviousLeader: &previous,
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "+491702222222", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "Höchstbietende")
	assert.Equal(t, "+491701111111", sender.sent[1].to)
	assert.Contains(t, sender.sent[1].body, "überboten")
	assert.Contains(t, sender.sent[1].body, "150.00 EUR")
}

func TestNotifyBidSettledNotLeadingSendsOneMessage(t *testing.T) {
	svc, sender, _ := newNotificationFixture()
	previous := int64(1)

	err := svc.NotifyBidSettled(context.Background(), &models.BidSettledEvent{
		UserID:         2,
		Amount:         12000,
		Leading:        false,
		PreviousLeader: &previous,
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.NotContains(t, sender.sent[0].body, "Höchstbietende")
}

func TestBroadcastCountsFailuresAndLogs(t *testing.T) {
	svc, sender, logs := newNotificationFixture()
	sender.failFor["+491702222222"] = true

	resp, err := svc.Broadcast(context.Background(), &models.BroadcastRequest{
		Channel:        external.ChannelSMS,
		RecipientGroup: "ticket_holders",
		Body:           "Einlass ab 14 Uhr",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Recipients)
	assert.Equal(t, 1, resp.Sent)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, int64(1), resp.LogID)

	require.Len(t, logs.entries, 1)
	assert.Equal(t, 1, logs.entries[0].SentCount)
	assert.Equal(t, external.ChannelSMS, sender.sent[0].channel)
}

func TestBroadcastEmptyGroup(t *testing.T) {
	svc, sender, logs := newNotificationFixture()

	resp, err := svc.Broadcast(context.Background(), &models.BroadcastRequest{
		Channel:        external.ChannelWhatsApp,
		RecipientGroup: "bidders",
		Body:           "Letzte Chance!",
	})
	require.NoError(t, err)
	assert.Zero(t, resp.Recipients)
	assert.Empty(t, sender.sent)
	assert.Len(t, logs.entries, 1)
}

func TestNotifyCheckoutExpired(t *testing.T) {
	svc, sender, _ := newNotificationFixture()
	ctx := context.Background()
	user := int64(1)

	require.NoError(t, svc.NotifyCheckoutExpired(ctx, &models.IntentExpiredEvent{
		SessionID: "cs_1", IntentType: models.IntentTypeBid, UserID: &user, Amount: 15000,
	}))
	require.NoError(t, svc.NotifyCheckoutExpired(ctx, &models.IntentExpiredEvent{
		SessionID: "cs_2", IntentType: models.IntentTypeTicket, UserID: &user, Amount: 9900,
	}))
	// анонимное пожертвование: некому писать
	require.NoError(t, svc.NotifyCheckoutExpired(ctx, &models.IntentExpiredEvent{
		SessionID: "cs_3", IntentType: models.IntentTypeDonation, Amount: 500,
	}))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "+491701111111", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "Gebot")
	assert.Contains(t, sender.sent[1].body, "Ticketbestellung")
}
