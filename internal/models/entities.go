package models

import (
	"time"
)

// Статусы аукциона
const (
	AuctionUpcoming = "upcoming"
	AuctionActive   = "active"
	AuctionEnded    = "ended"
)

// Статусы ставки
const (
	BidPending   = "pending"
	BidCompleted = "completed"
	BidFailed    = "failed"
)

// Статусы билета
const (
	TicketActive = "active"
	TicketUsed   = "used"
)

// Статусы и исходы отложенного намерения оплаты
const (
	IntentPending   = "pending"
	IntentCompleted = "completed"
	IntentExpired   = "expired"

	OutcomeFulfilled = "fulfilled"
	OutcomeFlagged   = "flagged"
)

const RoleAdmin = "admin"

// Статусы отложенной рассылки
const (
	ScheduledPending   = "pending"
	ScheduledSending   = "sending"
	ScheduledSent      = "sent"
	ScheduledFailed    = "failed"
	ScheduledCancelled = "cancelled"
)

// User represents a registered festival visitor
type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Auction represents a charity auction item
type Auction struct {
	ID           int64     `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Description  *string   `json:"description,omitempty" db:"description"`
	ImageURL     *string   `json:"image_url,omitempty" db:"image_url"`
	StartingBid  int64     `json:"starting_bid" db:"starting_bid"`
	CurrentBid   *int64    `json:"current_bid" db:"current_bid"`
	BidCount     int       `json:"bid_count" db:"bid_count"`
	LeadingBidID *int64    `json:"leading_bid_id,omitempty" db:"leading_bid_id"`
	Status       string    `json:"status" db:"status"`
	StartsAt     time.Time `json:"starts_at" db:"starts_at"`
	EndsAt       time.Time `json:"ends_at" db:"ends_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// HighestBid возвращает сумму, которую новая ставка должна превысить
func (a *Auction) HighestBid() int64 {
	if a.CurrentBid != nil && *a.CurrentBid > a.StartingBid {
		return *a.CurrentBid
	}
	return a.StartingBid
}

// Bid represents a bid placed through checkout
type Bid struct {
	ID        int64     `json:"id" db:"id"`
	AuctionID int64     `json:"auction_id" db:"auction_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Amount    int64     `json:"amount" db:"amount"`
	SessionID string    `json:"-" db:"session_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TicketType represents a purchasable ticket category
type TicketType struct {
	ID                int64     `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Description       *string   `json:"description,omitempty" db:"description"`
	Price             int64     `json:"price" db:"price"`
	AvailableQuantity int       `json:"available_quantity" db:"available_quantity"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Ticket represents an issued ticket
type Ticket struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"user_id" db:"user_id"`
	TicketTypeID int64     `json:"ticket_type_id" db:"ticket_type_id"`
	TicketNumber string    `json:"ticket_number" db:"ticket_number"`
	QRCode       string    `json:"qr_code" db:"qr_code"`
	Status       string    `json:"status" db:"status"`
	SessionID    string    `json:"-" db:"session_id"`
	PurchasedAt  time.Time `json:"purchased_at" db:"purchased_at"`
}

// CharityProject represents a fundraising target
type CharityProject struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Goal        int64     `json:"goal" db:"goal"`
	Raised      int64     `json:"raised" db:"raised"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Donation represents a settled donation.
// ProjectLabel хранит название проекта на момент оплаты и не обновляется.
type Donation struct {
	ID           int64     `json:"id" db:"id"`
	ProjectID    *int64    `json:"project_id,omitempty" db:"project_id"`
	UserID       *int64    `json:"user_id,omitempty" db:"user_id"`
	Amount       int64     `json:"amount" db:"amount"`
	DonorName    *string   `json:"donor_name,omitempty" db:"donor_name"`
	Message      *string   `json:"message,omitempty" db:"message"`
	ProjectLabel string    `json:"project_label" db:"project_label"`
	SessionID    string    `json:"-" db:"session_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PendingIntent links a payment session to the purchase it was created for
type PendingIntent struct {
	SessionID   string     `json:"session_id" db:"session_id"`
	IntentType  string     `json:"intent_type" db:"intent_type"`
	Payload     []byte     `json:"-" db:"payload"`
	Amount      int64      `json:"amount" db:"amount"`
	UserID      *int64     `json:"user_id,omitempty" db:"user_id"`
	Status      string     `json:"status" db:"status"`
	Outcome     *string    `json:"outcome,omitempty" db:"outcome"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// Intent декодирует сохраненный payload в конкретный вариант намерения
func (p *PendingIntent) Intent() (Intent, error) {
	return DecodeIntent(p.IntentType, p.Payload)
}

// ReconciliationIssue records a payment that could not be fulfilled
type ReconciliationIssue struct {
	ID         int64      `json:"id" db:"id"`
	SessionID  string     `json:"session_id" db:"session_id"`
	IntentType string     `json:"intent_type" db:"intent_type"`
	Kind       string     `json:"kind" db:"kind"`
	Detail     string     `json:"detail" db:"detail"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Artist represents a lineup entry
type Artist struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description *string   `json:"description,omitempty" db:"description"`
	Genre       *string   `json:"genre,omitempty" db:"genre"`
	ImageURL    *string   `json:"image_url,omitempty" db:"image_url"`
	Website     *string   `json:"website,omitempty" db:"website"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Performance represents a scheduled slot of an artist
type Performance struct {
	ID          int64     `json:"id" db:"id"`
	ArtistID    int64     `json:"artist_id" db:"artist_id"`
	ArtistName  string    `json:"artist_name" db:"-"`
	ArtistSlug  string    `json:"artist_slug" db:"-"`
	Stage       string    `json:"stage" db:"stage"`
	StartsAt    time.Time `json:"starts_at" db:"starts_at"`
	EndsAt      time.Time `json:"ends_at" db:"ends_at"`
	Description *string   `json:"description,omitempty" db:"description"`
}

// NotificationLog records a broadcast sent by an admin
type NotificationLog struct {
	ID             int64     `json:"id" db:"id"`
	Channel        string    `json:"channel" db:"channel"`
	RecipientGroup string    `json:"recipient_group" db:"recipient_group"`
	RecipientCount int       `json:"recipient_count" db:"recipient_count"`
	SentCount      int       `json:"sent_count" db:"sent_count"`
	Body           string    `json:"body" db:"body"`
	SentAt         time.Time `json:"sent_at" db:"sent_at"`
}

// ScheduledNotification - рассылка, которую фоновая задача отправит в SendAt
type ScheduledNotification struct {
	ID             int64      `json:"id" db:"id"`
	Channel        string     `json:"channel" db:"channel"`
	RecipientGroup string     `json:"recipient_group" db:"recipient_group"`
	Body           string     `json:"body" db:"body"`
	SendAt         time.Time  `json:"send_at" db:"send_at"`
	Status         string     `json:"status" db:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	LogID          *int64     `json:"log_id,omitempty" db:"log_id"`
	Error          *string    `json:"error,omitempty" db:"error"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// AdminUser - пользователь в списке админки
type AdminUser struct {
	User
	IsAdmin bool `json:"is_admin"`
}
