package models

import "time"

// NATS Event Types
const (
	EventCheckoutStarted   = "checkout.started"
	EventTicketsIssued     = "tickets.issued"
	EventDonationReceived  = "donation.received"
	EventBidSettled        = "bid.settled"
	EventSettlementFlagged = "settlement.flagged"
	EventIntentExpired     = "intent.expired"
)

// CheckoutStartedEvent represents a created payment session
type CheckoutStartedEvent struct {
	SessionID  string    `json:"session_id"`
	IntentType string    `json:"intent_type"`
	UserID     *int64    `json:"user_id,omitempty"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// TicketsIssuedEvent represents tickets created by settlement
type TicketsIssuedEvent struct {
	SessionID     string    `json:"session_id"`
	UserID        int64     `json:"user_id"`
	TicketTypeID  int64     `json:"ticket_type_id"`
	TicketNumbers []string  `json:"ticket_numbers"`
	Amount        int64     `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
}

// DonationReceivedEvent represents a settled donation
type DonationReceivedEvent struct {
	SessionID    string    `json:"session_id"`
	DonationID   int64     `json:"donation_id"`
	UserID       *int64    `json:"user_id,omitempty"`
	ProjectID    *int64    `json:"project_id,omitempty"`
	ProjectLabel string    `json:"project_label"`
	Amount       int64     `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

// BidSettledEvent represents a completed bid
type BidSettledEvent struct {
	SessionID      string    `json:"session_id"`
	BidID          int64     `json:"bid_id"`
	AuctionID      int64     `json:"auction_id"`
	UserID         int64     `json:"user_id"`
	Amount         int64     `json:"amount"`
	Leading        bool      `json:"leading"`
	PreviousLeader *int64    `json:"previous_leader,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// SettlementFlaggedEvent represents a payment that needs manual reconciliation
type SettlementFlaggedEvent struct {
	SessionID  string    `json:"session_id"`
	IntentType string    `json:"intent_type"`
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail"`
	Timestamp  time.Time `json:"timestamp"`
}

// IntentExpiredEvent represents an abandoned checkout
type IntentExpiredEvent struct {
	SessionID  string    `json:"session_id"`
	IntentType string    `json:"intent_type"`
	UserID     *int64    `json:"user_id,omitempty"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}
