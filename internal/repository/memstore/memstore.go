// Package memstore is an in-memory repository.Store used by tests.
// Transactions are serialized and work on a copy of the state, so a failed
// callback leaves nothing behind, as a rolled back SQL transaction would.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"festival/internal/models"
	"festival/internal/repository"
)

type state struct {
	nextID      int64
	auctions    map[int64]models.Auction
	ticketTypes map[int64]models.TicketType
	projects    map[int64]models.CharityProject
	intents     map[string]models.PendingIntent
	bids        map[int64]models.Bid
	tickets     []models.Ticket
	donations   []models.Donation
	issues      []models.ReconciliationIssue
}

func (s *state) clone() *state {
	c := &state{
		nextID:      s.nextID,
		auctions:    make(map[int64]models.Auction, len(s.auctions)),
		ticketTypes: make(map[int64]models.TicketType, len(s.ticketTypes)),
		projects:    make(map[int64]models.CharityProject, len(s.projects)),
		intents:     make(map[string]models.PendingIntent, len(s.intents)),
		bids:        make(map[int64]models.Bid, len(s.bids)),
		tickets:     append([]models.Ticket(nil), s.tickets...),
		donations:   append([]models.Donation(nil), s.donations...),
		issues:      append([]models.ReconciliationIssue(nil), s.issues...),
	}
	for k, v := range s.auctions {
		c.auctions[k] = copyAuction(v)
	}
	for k, v := range s.ticketTypes {
		c.ticketTypes[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.intents {
		c.intents[k] = v
	}
	for k, v := range s.bids {
		c.bids[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

func copyAuction(a models.Auction) models.Auction {
	if a.CurrentBid != nil {
		v := *a.CurrentBid
		a.CurrentBid = &v
	}
	if a.LeadingBidID != nil {
		v := *a.LeadingBidID
		a.LeadingBidID = &v
	}
	return a
}

// Store реализует repository.Store в памяти
type Store struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex
	data   *state

	// CreateIntentErr, если задан, возвращается из Tx.CreateIntent
	CreateIntentErr error

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data: &state{
			auctions:    map[int64]models.Auction{},
			ticketTypes: map[int64]models.TicketType{},
			projects:    map[int64]models.CharityProject{},
			intents:     map[string]models.PendingIntent{},
			bids:        map[int64]models.Bid{},
		},
		now: time.Now,
	}
}

// Seeding

func (s *Store) AddAuction(a models.Auction) int64 {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if a.ID == 0 {
		a.ID = s.data.id()
	}
	s.data.auctions[a.ID] = copyAuction(a)
	return a.ID
}

func (s *Store) AddTicketType(t models.TicketType) int64 {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if t.ID == 0 {
		t.ID = s.data.id()
	}
	s.data.ticketTypes[t.ID] = t
	return t.ID
}

func (s *Store) AddProject(p models.CharityProject) int64 {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if p.ID == 0 {
		p.ID = s.data.id()
	}
	s.data.projects[p.ID] = p
	return p.ID
}

// SetAuctionStatus имитирует действие администратора
func (s *Store) SetAuctionStatus(id int64, status string) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	a := s.data.auctions[id]
	a.Status = status
	s.data.auctions[id] = a
}

// BackdateIntent сдвигает created_at, чтобы намерение стало устаревшим
func (s *Store) BackdateIntent(sessionID string, createdAt time.Time) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	p := s.data.intents[sessionID]
	p.CreatedAt = createdAt
	s.data.intents[sessionID] = p
}

// Inspection

func (s *Store) Auction(id int64) models.Auction {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return copyAuction(s.data.auctions[id])
}

func (s *Store) TicketType(id int64) models.TicketType {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.data.ticketTypes[id]
}

func (s *Store) Project(id int64) models.CharityProject {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.data.projects[id]
}

func (s *Store) Intents() []models.PendingIntent {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	out := make([]models.PendingIntent, 0, len(s.data.intents))
	for _, p := range s.data.intents {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

func (s *Store) Bids() []models.Bid {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	out := make([]models.Bid, 0, len(s.data.bids))
	for _, b := range s.data.bids {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Tickets() []models.Ticket {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return append([]models.Ticket(nil), s.data.tickets...)
}

func (s *Store) Donations() []models.Donation {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return append([]models.Donation(nil), s.data.donations...)
}

func (s *Store) Issues() []models.ReconciliationIssue {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return append([]models.ReconciliationIssue(nil), s.data.issues...)
}

// repository.Store

func (s *Store) GetAuction(_ context.Context, id int64) (*models.Auction, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	a, ok := s.data.auctions[id]
	if !ok {
		return nil, nil
	}
	a = copyAuction(a)
	return &a, nil
}

func (s *Store) GetTicketType(_ context.Context, id int64) (*models.TicketType, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	t, ok := s.data.ticketTypes[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) GetProject(_ context.Context, id int64) (*models.CharityProject, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	p, ok := s.data.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) GetIntent(_ context.Context, sessionID string) (*models.PendingIntent, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	p, ok := s.data.intents[sessionID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) ListStaleIntents(_ context.Context, createdBefore time.Time, limit int) ([]models.PendingIntent, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	var out []models.PendingIntent
	for _, p := range s.data.intents {
		if p.Status == models.IntentPending && p.CreatedAt.Before(createdBefore) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.dataMu.RLock()
	work := s.data.clone()
	s.dataMu.RUnlock()

	if err := fn(&tx{store: s, st: work}); err != nil {
		return err
	}

	s.dataMu.Lock()
	s.data = work
	s.dataMu.Unlock()
	return nil
}

type tx struct {
	store *Store
	st    *state
}

func (t *tx) CreateIntent(_ context.Context, intent *models.PendingIntent) error {
	if t.store.CreateIntentErr != nil {
		return t.store.CreateIntentErr
	}
	if _, exists := t.st.intents[intent.SessionID]; exists {
		return fmt.Errorf("duplicate session id %s", intent.SessionID)
	}
	intent.Status = models.IntentPending
	intent.CreatedAt = t.store.now()
	t.st.intents[intent.SessionID] = *intent
	return nil
}

func (t *tx) CreateBid(_ context.Context, bid *models.Bid) error {
	for _, b := range t.st.bids {
		if b.SessionID == bid.SessionID {
			return fmt.Errorf("duplicate bid session id %s", bid.SessionID)
		}
	}
	bid.ID = t.st.id()
	bid.Status = models.BidPending
	bid.CreatedAt = t.store.now()
	t.st.bids[bid.ID] = *bid
	return nil
}

func (t *tx) ClaimIntent(_ context.Context, sessionID, outcome string) (bool, error) {
	p, ok := t.st.intents[sessionID]
	if !ok || p.Status != models.IntentPending {
		return false, nil
	}
	now := t.store.now()
	p.Status = models.IntentCompleted
	p.Outcome = &outcome
	p.CompletedAt = &now
	t.st.intents[sessionID] = p
	return true, nil
}

func (t *tx) ExpireIntent(_ context.Context, sessionID string) (bool, error) {
	p, ok := t.st.intents[sessionID]
	if !ok || p.Status != models.IntentPending {
		return false, nil
	}
	now := t.store.now()
	p.Status = models.IntentExpired
	p.CompletedAt = &now
	t.st.intents[sessionID] = p
	return true, nil
}

func (t *tx) InsertTicket(_ context.Context, ticket *models.Ticket) error {
	for _, existing := range t.st.tickets {
		if existing.TicketNumber == ticket.TicketNumber {
			return fmt.Errorf("duplicate ticket number %s", ticket.TicketNumber)
		}
	}
	ticket.ID = t.st.id()
	ticket.PurchasedAt = t.store.now()
	t.st.tickets = append(t.st.tickets, *ticket)
	return nil
}

func (t *tx) DecrementInventory(_ context.Context, ticketTypeID int64, quantity int) (bool, error) {
	tt, ok := t.st.ticketTypes[ticketTypeID]
	if !ok || tt.AvailableQuantity < quantity {
		return false, nil
	}
	tt.AvailableQuantity -= quantity
	t.st.ticketTypes[ticketTypeID] = tt
	return true, nil
}

func (t *tx) InsertDonation(_ context.Context, donation *models.Donation) error {
	for _, existing := range t.st.donations {
		if existing.SessionID == donation.SessionID {
			return fmt.Errorf("duplicate donation session id %s", donation.SessionID)
		}
	}
	donation.ID = t.st.id()
	donation.CreatedAt = t.store.now()
	t.st.donations = append(t.st.donations, *donation)
	return nil
}

func (t *tx) IncrementRaised(_ context.Context, projectID, amount int64) (bool, error) {
	p, ok := t.st.projects[projectID]
	if !ok {
		return false, nil
	}
	p.Raised += amount
	t.st.projects[projectID] = p
	return true, nil
}

func (t *tx) CompleteBid(_ context.Context, sessionID string) (*models.Bid, error) {
	for id, b := range t.st.bids {
		if b.SessionID == sessionID && b.Status == models.BidPending {
			b.Status = models.BidCompleted
			t.st.bids[id] = b
			return &b, nil
		}
	}
	return nil, nil
}

func (t *tx) FailBid(_ context.Context, sessionID string) (bool, error) {
	for id, b := range t.st.bids {
		if b.SessionID == sessionID && b.Status == models.BidPending {
			b.Status = models.BidFailed
			t.st.bids[id] = b
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ApplyCompletedBid(_ context.Context, auctionID, bidID, amount int64) (bool, bool, *int64, error) {
	a, ok := t.st.auctions[auctionID]
	if !ok || a.Status == models.AuctionEnded {
		return false, false, nil, nil
	}

	var previousLeader *int64
	if a.LeadingBidID != nil {
		if prev, ok := t.st.bids[*a.LeadingBidID]; ok {
			uid := prev.UserID
			previousLeader = &uid
		}
	}

	a.BidCount++
	if a.CurrentBid == nil || *a.CurrentBid < amount {
		a.CurrentBid = &amount
		a.LeadingBidID = &bidID
	}
	t.st.auctions[auctionID] = a

	leading := a.LeadingBidID != nil && *a.LeadingBidID == bidID
	return true, leading, previousLeader, nil
}

func (t *tx) RecordIssue(_ context.Context, issue *models.ReconciliationIssue) error {
	for _, existing := range t.st.issues {
		if existing.SessionID == issue.SessionID && existing.Kind == issue.Kind {
			return nil
		}
	}
	issue.ID = t.st.id()
	issue.CreatedAt = t.store.now()
	t.st.issues = append(t.st.issues, *issue)
	return nil
}
