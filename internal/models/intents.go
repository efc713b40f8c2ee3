package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Типы намерений оплаты
const (
	IntentTypeTicket   = "ticket"
	IntentTypeDonation = "donation"
	IntentTypeBid      = "bid"
)

// Intent is a closed set of purchase variants: TicketIntent, DonationIntent, BidIntent.
type Intent interface {
	IntentType() string
	sealed()
}

// TicketIntent - покупка quantity билетов одного типа
type TicketIntent struct {
	UserID       int64 `json:"user_id"`
	TicketTypeID int64 `json:"ticket_type_id"`
	Quantity     int   `json:"quantity"`
}

// DonationIntent - пожертвование, опционально привязанное к проекту
type DonationIntent struct {
	UserID       *int64  `json:"user_id,omitempty"`
	ProjectID    *int64  `json:"project_id,omitempty"`
	ProjectLabel string  `json:"project_label"`
	Amount       int64   `json:"amount"`
	DonorName    *string `json:"donor_name,omitempty"`
	Message      *string `json:"message,omitempty"`
}

// BidIntent - ставка на аукционе
type BidIntent struct {
	UserID    int64 `json:"user_id"`
	AuctionID int64 `json:"auction_id"`
	Amount    int64 `json:"amount"`
}

func (TicketIntent) IntentType() string   { return IntentTypeTicket }
func (DonationIntent) IntentType() string { return IntentTypeDonation }
func (BidIntent) IntentType() string      { return IntentTypeBid }

func (TicketIntent) sealed()   {}
func (DonationIntent) sealed() {}
func (BidIntent) sealed()      {}

// EncodeIntent сериализует вариант в пару (тип, payload) для хранения
func EncodeIntent(intent Intent) (string, []byte, error) {
	payload, err := json.Marshal(intent)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s intent: %w", intent.IntentType(), err)
	}
	return intent.IntentType(), payload, nil
}

// DecodeIntent восстанавливает вариант по сохраненному типу
func DecodeIntent(intentType string, payload []byte) (Intent, error) {
	switch intentType {
	case IntentTypeTicket:
		var i TicketIntent
		if err := json.Unmarshal(payload, &i); err != nil {
			return nil, fmt.Errorf("failed to decode ticket intent: %w", err)
		}
		return i, nil
	case IntentTypeDonation:
		var i DonationIntent
		if err := json.Unmarshal(payload, &i); err != nil {
			return nil, fmt.Errorf("failed to decode donation intent: %w", err)
		}
		return i, nil
	case IntentTypeBid:
		var i BidIntent
		if err := json.Unmarshal(payload, &i); err != nil {
			return nil, fmt.Errorf("failed to decode bid intent: %w", err)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("unknown intent type %q", intentType)
	}
}

// IntentMetadata builds the metadata attached to the payment session.
// Settlement never trusts it; the stored intent is authoritative.
func IntentMetadata(intent Intent) map[string]string {
	md := map[string]string{"intent_type": intent.IntentType()}

	switch i := intent.(type) {
	case TicketIntent:
		md["user_id"] = strconv.FormatInt(i.UserID, 10)
		md["ticket_type_id"] = strconv.FormatInt(i.TicketTypeID, 10)
		md["quantity"] = strconv.Itoa(i.Quantity)
	case DonationIntent:
		if i.UserID != nil {
			md["user_id"] = strconv.FormatInt(*i.UserID, 10)
		}
		if i.ProjectID != nil {
			md["project_id"] = strconv.FormatInt(*i.ProjectID, 10)
		}
		if i.DonorName != nil {
			md["donor_name"] = *i.DonorName
		}
		md["amount"] = strconv.FormatInt(i.Amount, 10)
	case BidIntent:
		md["user_id"] = strconv.FormatInt(i.UserID, 10)
		md["auction_id"] = strconv.FormatInt(i.AuctionID, 10)
		md["amount"] = strconv.FormatInt(i.Amount, 10)
	}

	return md
}
