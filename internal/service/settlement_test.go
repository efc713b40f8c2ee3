package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"festival/internal/cache"
	apperrors "festival/internal/errors"
	"festival/internal/models"
	"festival/internal/repository"
	"festival/internal/repository/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleTicketIssuesTicketsAndDecrementsInventory(t *testing.T) {
	f := newFixture(t)
	ttID := f.store.AddTicketType(models.TicketType{Name: "3-Tages-Pass", Price: 9900, AvailableQuantity: 5})
	res := f.begin(t, models.TicketIntent{UserID: 7, TicketTypeID: ttID, Quantity: 2})

	assert.Equal(t, OutcomeApplied, f.pay(t, res.SessionID))

	tickets := f.store.Tickets()
	require.Len(t, tickets, 2)
	for _, tk := range tickets {
		assert.Equal(t, int64(7), tk.UserID)
		assert.Equal(t, res.SessionID, tk.SessionID)
		assert.Equal(t, models.TicketActive, tk.Status)
		assert.NotEmpty(t, tk.QRCode)
	}
	assert.NotEqual(t, tickets[0].TicketNumber, tickets[1].TicketNumber)
	assert.Equal(t, 3, f.store.TicketType(ttID).AvailableQuantity)

	p, err := f.store.GetIntent(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentCompleted, p.Status)
	assert.Equal(t, models.OutcomeFulfilled, *p.Outcome)

	ev, ok := f.publisher.last(models.EventTicketsIssued).(models.TicketsIssuedEvent)
	require.True(t, ok)
	assert.Len(t, ev.TicketNumbers, 2)
	assert.Equal(t, int64(19800), ev.Amount)
	assert.Contains(t, f.cache.keys, cache.KeyTicketTypes)
}

func TestSettleIsIdempotentOnRedelivery(t *testing.T) {
	f := newFixture(t)
	ttID := f.store.AddTicketType(models.TicketType{Name: "1-Tages-Pass", Price: 4900, AvailableQuantity: 5})
	res := f.begin(t, models.TicketIntent{UserID: 1, TicketTypeID: ttID, Quantity: 1})

	assert.Equal(t, OutcomeApplied, f.pay(t, res.SessionID))
	assert.Equal(t, OutcomeDuplicate, f.pay(t, res.SessionID))
	assert.Equal(t, OutcomeDuplicate, f.pay(t, res.SessionID))

	assert.Len(t, f.store.Tickets(), 1)
	assert.Equal(t, 4, f.store.TicketType(ttID).AvailableQuantity)
}

func TestSettleConcurrentRedeliveryAppliesOnce(t *testing.T) {
	f := newFixture(t)
	projectID := f.store.AddProject(models.CharityProject{Name: "Trinkwasser", Goal: 100000})
	res := f.begin(t, models.DonationIntent{ProjectID: &projectID, Amount: 1500})
	payload := f.completion(t, res.SessionID)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Outcome]int{}
	)
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.settlement.OnPaymentCompleted(context.Background(), payload, validSignature)
			assert.NoError(t, err)
			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, outcomes[OutcomeApplied])
	assert.Equal(t, 7, outcomes[OutcomeDuplicate])
	assert.Len(t, f.store.Donations(), 1)
	assert.Equal(t, int64(1500), f.store.Project(projectID).Raised)
}

func TestSettleConcurrentTicketsNeverOversell(t *testing.T) {
	f := newFixture(t)
	ttID := f.store.AddTicketType(models.TicketType{Name: "VIP", Price: 19900, AvailableQuantity: 3})

	sessions := make([]string, 10)
	for n := range sessions {
		sessions[n] = f.begin(t, models.TicketIntent{UserID: int64(n + 1), TicketTypeID: ttID, Quantity: 1}).SessionID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Outcome]int{}
	)
	for _, sid := range sessions {
		payload := f.completion(t, sid)
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.settlement.OnPaymentCompleted(context.Background(), payload, validSignature)
			assert.NoError(t, err)
			mu.Lock()
			outcomes[outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, outcomes[OutcomeApplied])
	assert.Equal(t, 7, outcomes[OutcomeFlagged])
	assert.Len(t, f.store.Tickets(), 3)
	assert.Equal(t, 0, f.store.TicketType(ttID).AvailableQuantity)

	issues := f.store.Issues()
	require.Len(t, issues, 7)
	for _, is := range issues {
		assert.Equal(t, apperrors.KindOversold, is.Kind)
	}
}

func TestSettleDonationToProject(t *testing.T) {
	f := newFixture(t)
	projectID := f.store.AddProject(models.CharityProject{Name: "Trinkwasser", Goal: 10000, Raised: 500})
	userID := int64(9)
	name := "Kim"
	res := f.begin(t, models.DonationIntent{ProjectID: &projectID, UserID: &userID, Amount: 2500, DonorName: &name})

	assert.Equal(t, OutcomeApplied, f.pay(t, res.SessionID))

	assert.Equal(t, int64(3000), f.store.Project(projectID).Raised)
	donations := f.store.Donations()
	require.Len(t, donations, 1)
	assert.Equal(t, "Spende für Trinkwasser", donations[0].ProjectLabel)
	assert.Equal(t, res.SessionID, donations[0].SessionID)

	ev, ok := f.publisher.last(models.EventDonationReceived).(models.DonationReceivedEvent)
	require.True(t, ok)
	assert.Equal(t, donations[0].ID, ev.DonationID)
	assert.Equal(t, &userID, ev.UserID)
	assert.Contains(t, f.cache.keys, cache.KeyProjects)
}

func TestSettleGeneralDonationTouchesNoProject(t *testing.T) {
	f := newFixture(t)
	projectID := f.store.AddProject(models.CharityProject{Name: "Trinkwasser", Goal: 10000})
	res := f.begin(t, models.DonationIntent{Amount: 700})

	assert.Equal(t, OutcomeApplied, f.pay(t, res.SessionID))

	require.Len(t, f.store.Donations(), 1)
	assert.Nil(t, f.store.Donations()[0].ProjectID)
	assert.Equal(t, int64(0), f.store.Project(projectID).Raised)
	assert.NotContains(t, f.cache.keys, cache.KeyProjects)
}

func TestSettleBidUpdatesAuctionAndReportsPreviousLeader(t *testing.T) {
	f := newFixture(t)
	auctionID := f.activeAuction(1000)

	first := f.begin(t, models.BidIntent{UserID: 1, AuctionID: auctionID, Amount: 1100})
	assert.Equal(t, OutcomeApplied, f.pay(t, first.SessionID))

	second := f.begin(t, models.BidIntent{UserID: 2, AuctionID: auctionID, Amount: 1200})
	assert.Equal(t, OutcomeApplied, f.pay(t, second.SessionID))

	a := f.store.Auction(auctionID)
	assert.Equal(t, int64(1200), *a.CurrentBid)
	assert.Equal(t, 2, a.BidCount)

	ev, ok := f.publisher.last(models.EventBidSettled).(models.BidSettledEvent)
	require.True(t, ok)
	assert.True(t, ev.Leading)
	require.NotNil(t, ev.PreviousLeader)
	assert.Equal(t, int64(1), *ev.PreviousLeader)
	assert.Contains(t, f.cache.keys, cache.KeyAuctions)

	for _, b := range f.store.Bids() {
		assert.Equal(t, models.BidCompleted, b.Status)
	}
}

// Ставки 150 и 120 прошли проверку против 100, оплата приходит в любом порядке.
func TestSettleBidRaceKeepsHighestAmount(t *testing.T) {
	orders := map[string][]int{
		"higher first": {0, 1},
		"lower first":  {1, 0},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			auctionID := f.activeAuction(50)
			base := f.begin(t, models.BidIntent{UserID: 1, AuctionID: auctionID, Amount: 100})
			require.Equal(t, OutcomeApplied, f.pay(t, base.SessionID))

			sessions := []string{
				f.begin(t, models.BidIntent{UserID: 2, AuctionID: auctionID, Amount: 150}).SessionID,
				f.begin(t, models.BidIntent{UserID: 3, AuctionID: auctionID, Amount: 120}).SessionID,
			}
			for _, idx := range order {
				assert.Equal(t, OutcomeApplied, f.pay(t, sessions[idx]))
			}

			assertRaceResult(t, f, auctionID)
		})
	}

	t.Run("concurrent", func(t *testing.T) {
		f := newFixture(t)
		auctionID := f.activeAuction(50)
		base := f.begin(t, models.BidIntent{UserID: 1, AuctionID: auctionID, Amount: 100})
		require.Equal(t, OutcomeApplied, f.pay(t, base.SessionID))

		payloads := [][]byte{
			f.completion(t, f.begin(t, models.BidIntent{UserID: 2, AuctionID: auctionID, Amount: 150}).SessionID),
			f.completion(t, f.begin(t, models.BidIntent{UserID: 3, AuctionID: auctionID, Amount: 120}).SessionID),
		}

		var wg sync.WaitGroup
		for _, payload := range payloads {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome, err := f.settlement.OnPaymentCompleted(context.Background(), payload, validSignature)
				assert.NoError(t, err)
				assert.Equal(t, OutcomeApplied, outcome)
			}()
		}
		wg.Wait()

		assertRaceResult(t, f, auctionID)
	})
}

func assertRaceResult(t *testing.T, f *fixture, auctionID int64) {
	t.Helper()

	a := f.store.Auction(auctionID)
	require.NotNil(t, a.CurrentBid)
	assert.Equal(t, int64(150), *a.CurrentBid)
	assert.Equal(t, 3, a.BidCount)

	var leader models.Bid
	for _, b := range f.store.Bids() {
		assert.Equal(t, models.BidCompleted, b.Status)
		if b.ID == *a.LeadingBidID {
			leader = b
		}
	}
	assert.Equal(t, int64(2), leader.UserID)
}

func TestSettleBidOnEndedAuctionIsFlagged(t *testing.T) {
	f := newFixture(t)
	auctionID := f.activeAuction(1000)
	res := f.begin(t, models.BidIntent{UserID: 4, AuctionID: auctionID, Amount: 1500})
	f.store.SetAuctionStatus(auctionID, models.AuctionEnded)

	assert.Equal(t, OutcomeFlagged, f.pay(t, res.SessionID))

	a := f.store.Auction(auctionID)
	assert.Nil(t, a.CurrentBid)
	assert.Equal(t, 0, a.BidCount)

	bids := f.store.Bids()
	require.Len(t, bids, 1)
	assert.Equal(t, models.BidFailed, bids[0].Status)

	issues := f.store.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, apperrors.KindAuctionClosed, issues[0].Kind)
	assert.Equal(t, models.IntentTypeBid, issues[0].IntentType)

	p, err := f.store.GetIntent(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentCompleted, p.Status)
	assert.Equal(t, models.OutcomeFlagged, *p.Outcome)

	ev, ok := f.publisher.last(models.EventSettlementFlagged).(models.SettlementFlaggedEvent)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindAuctionClosed, ev.Kind)

	// повторная доставка уже не меняет состояние
	assert.Equal(t, OutcomeDuplicate, f.pay(t, res.SessionID))
	assert.Len(t, f.store.Issues(), 1)
}

func TestSettleAmountMismatchIsFlagged(t *testing.T) {
	f := newFixture(t)
	ttID := f.store.AddTicketType(models.TicketType{Name: "1-Tages-Pass", Price: 4900, AvailableQuantity: 5})
	res := f.begin(t, models.TicketIntent{UserID: 1, TicketTypeID: ttID, Quantity: 1})

	outcome, err := f.settlement.OnPaymentCompleted(context.Background(),
		completionPayload(t, res.SessionID, 100), validSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFlagged, outcome)

	assert.Empty(t, f.store.Tickets())
	assert.Equal(t, 5, f.store.TicketType(ttID).AvailableQuantity)
	require.Len(t, f.store.Issues(), 1)
	assert.Equal(t, apperrors.KindAmountMismatch, f.store.Issues()[0].Kind)
	assert.Contains(t, f.store.Issues()[0].Detail, "paid 100, expected 4900")
}

func TestSettleUndecodableIntentIsFlagged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.WithinTx(context.Background(), func(tx repository.Tx) error {
		return tx.CreateIntent(context.Background(), &models.PendingIntent{
			SessionID:  "cs_broken",
			IntentType: models.IntentTypeTicket,
			Payload:    []byte("{"),
			Amount:     4900,
		})
	}))

	assert.Equal(t, OutcomeFlagged, f.pay(t, "cs_broken"))
	require.Len(t, f.store.Issues(), 1)
	assert.Equal(t, apperrors.KindMissingTarget, f.store.Issues()[0].Kind)
}

func TestSettleLateCompletionKeepsIntentExpired(t *testing.T) {
	f := newFixture(t)
	ttID := f.store.AddTicketType(models.TicketType{Name: "1-Tages-Pass", Price: 4900, AvailableQuantity: 5})
	res := f.begin(t, models.TicketIntent{UserID: 1, TicketTypeID: ttID, Quantity: 1})
	payload := f.completion(t, res.SessionID)

	require.NoError(t, f.store.WithinTx(context.Background(), func(tx repository.Tx) error {
		_, err := tx.ExpireIntent(context.Background(), res.SessionID)
		return err
	}))

	for n := 0; n < 2; n++ {
		outcome, err := f.settlement.OnPaymentCompleted(context.Background(), payload, validSignature)
		require.NoError(t, err)
		assert.Equal(t, OutcomeFlagged, outcome)
	}

	assert.Empty(t, f.store.Tickets())
	issues := f.store.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, apperrors.KindLateCompletion, issues[0].Kind)

	p, err := f.store.GetIntent(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentExpired, p.Status)
}

func TestSettleRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	ttID := f.store.AddTicketType(models.TicketType{Name: "1-Tages-Pass", Price: 4900, AvailableQuantity: 5})
	res := f.begin(t, models.TicketIntent{UserID: 1, TicketTypeID: ttID, Quantity: 1})

	outcome, err := f.settlement.OnPaymentCompleted(context.Background(), f.completion(t, res.SessionID), "t=1,v1=forged")
	require.Error(t, err)
	assert.Empty(t, outcome)
	_, ok := apperrors.AsAuthenticity(err)
	assert.True(t, ok)

	p, err := f.store.GetIntent(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPending, p.Status)
	assert.Empty(t, f.store.Tickets())
}

func TestSettleUndecodableEventIsRetriedNotRejected(t *testing.T) {
	f := newFixture(t)
	ttID := f.store.AddTicketType(models.TicketType{Name: "1-Tages-Pass", Price: 4900, AvailableQuantity: 5})
	res := f.begin(t, models.TicketIntent{UserID: 1, TicketTypeID: ttID, Quantity: 1})

	outcome, err := f.settlement.OnPaymentCompleted(context.Background(), []byte("{not json"), validSignature)
	require.Error(t, err)
	assert.Empty(t, outcome)
	_, ok := apperrors.AsAuthenticity(err)
	assert.False(t, ok, "a signed but undecodable event is a processing failure")

	p, err := f.store.GetIntent(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPending, p.Status)
}

func TestSettleUnknownSession(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.settlement.OnPaymentCompleted(context.Background(),
		completionPayload(t, "cs_unknown", 4900), validSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, outcome)
	assert.Empty(t, f.store.Issues())
}

func TestSettleIgnoresUnpaidAndOtherEvents(t *testing.T) {
	f := newFixture(t)
	ttID := f.store.AddTicketType(models.TicketType{Name: "1-Tages-Pass", Price: 4900, AvailableQuantity: 5})
	res := f.begin(t, models.TicketIntent{UserID: 1, TicketTypeID: ttID, Quantity: 1})

	events := []models.PaymentEvent{
		{Type: models.PaymentEventCheckoutCompleted, SessionID: res.SessionID, AmountTotal: 4900, PaymentStatus: "unpaid"},
		{Type: models.PaymentEventCheckoutExpired, SessionID: res.SessionID, AmountTotal: 4900},
		{Type: "charge.refunded"},
	}
	for _, e := range events {
		payload, err := json.Marshal(e)
		require.NoError(t, err)
		outcome, err := f.settlement.OnPaymentCompleted(context.Background(), payload, validSignature)
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome, e.Type)
	}

	p, err := f.store.GetIntent(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPending, p.Status)
}

func TestSettleAsyncPaymentSucceeded(t *testing.T) {
	f := newFixture(t)
	res := f.begin(t, models.DonationIntent{Amount: 1000})

	payload, err := json.Marshal(models.PaymentEvent{
		Type:          models.PaymentEventAsyncPaymentSucceeded,
		SessionID:     res.SessionID,
		AmountTotal:   1000,
		PaymentStatus: models.PaymentStatusPaid,
	})
	require.NoError(t, err)

	outcome, err := f.settlement.OnPaymentCompleted(context.Background(), payload, validSignature)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Len(t, f.store.Donations(), 1)
}

func TestSettleTransientFailureLeavesIntentPending(t *testing.T) {
	mem := memstore.New()
	store := &failingStore{Store: mem}
	f := newFixtureWithStore(t, mem, store)

	projectID := mem.AddProject(models.CharityProject{Name: "Trinkwasser", Goal: 10000})
	res := f.begin(t, models.DonationIntent{ProjectID: &projectID, Amount: 2000})
	payload := f.completion(t, res.SessionID)

	store.setFail(errors.New("connection reset by peer"))
	outcome, err := f.settlement.OnPaymentCompleted(context.Background(), payload, validSignature)
	require.Error(t, err)
	assert.Empty(t, outcome)
	assert.True(t, apperrors.IsTransient(err))

	p, err := mem.GetIntent(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.IntentPending, p.Status)
	assert.Equal(t, int64(0), mem.Project(projectID).Raised)
	assert.Empty(t, mem.Donations())
	assert.Empty(t, mem.Issues())

	store.setFail(nil)
	assert.Equal(t, OutcomeApplied, f.pay(t, res.SessionID))
	assert.Equal(t, int64(2000), mem.Project(projectID).Raised)
	assert.Len(t, mem.Donations(), 1)
}

func TestGenerateTicketNumber(t *testing.T) {
	now := time.Date(2026, 7, 10, 18, 30, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^HAF-[0-9A-Z]+-[0-9A-Z]{5}$`)

	seen := map[string]bool{}
	for n := 0; n < 100; n++ {
		number := GenerateTicketNumber(now)
		assert.Regexp(t, pattern, number)
		assert.False(t, seen[number], "duplicate %s", number)
		seen[number] = true
	}
}
