package models

import (
	"fmt"
	"strings"
	"time"
)

// FlexibleBool - гибкий boolean тип, поддерживающий строки и числа
type FlexibleBool bool

// UnmarshalJSON поддерживает парсинг boolean из строки, числа и boolean
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool возвращает bool значение
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// Auth

// RegisterRequest - регистрация посетителя
type RegisterRequest struct {
	Email     string  `json:"email" binding:"required,email"`
	Password  string  `json:"password" binding:"required,min=8"`
	FirstName string  `json:"first_name" binding:"required"`
	LastName  string  `json:"last_name" binding:"required"`
	Phone     *string `json:"phone,omitempty"`
}

// UpdateProfileRequest - правка профиля; пустые поля не меняются
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name,omitempty" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name,omitempty" binding:"omitempty,min=1,max=100"`
	Phone     *string `json:"phone,omitempty"`
}

// LoginRequest - вход по email и паролю
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse - выданный access token
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      int64     `json:"user_id"`
}

// Checkout

// TicketCheckoutRequest - покупка билетов
type TicketCheckoutRequest struct {
	TicketTypeID int64 `json:"ticket_type_id" binding:"required"`
	Quantity     int   `json:"quantity" binding:"required"`
}

// DonationCheckoutRequest - пожертвование; авторизация не обязательна
type DonationCheckoutRequest struct {
	ProjectID *int64  `json:"project_id,omitempty"`
	Amount    int64   `json:"amount" binding:"required"`
	DonorName *string `json:"donor_name,omitempty"`
	Message   *string `json:"message,omitempty"`
}

// BidCheckoutRequest - ставка на аукционе
type BidCheckoutRequest struct {
	AuctionID int64 `json:"auction_id" binding:"required"`
	Amount    int64 `json:"amount" binding:"required"`
}

// CheckoutResponse - адрес, на который нужно перенаправить клиента
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
	Amount      int64  `json:"amount"`
	Display     string `json:"display_amount"`
}

// CheckoutStatusResponse - статус сессии для страницы успеха
type CheckoutStatusResponse struct {
	SessionID  string  `json:"session_id"`
	IntentType string  `json:"intent_type"`
	Status     string  `json:"status"`
	Outcome    *string `json:"outcome,omitempty"`
	Amount     int64   `json:"amount"`
}

// Catalog

// AuctionDetailsResponse - аукцион вместе с минимальной следующей ставкой
type AuctionDetailsResponse struct {
	Auction
	MinimumBid int64 `json:"minimum_bid"`
}

// ProjectProgress - проект с процентом выполнения цели
type ProjectProgress struct {
	CharityProject
	Percent int `json:"percent"`
}

// ArtistDetailsResponse - артист и его выступления
type ArtistDetailsResponse struct {
	Artist
	Performances []Performance `json:"performances"`
}

// ScheduleDay - выступления одного дня
type ScheduleDay struct {
	Date         string        `json:"date"`
	Performances []Performance `json:"performances"`
}

// Admin

// CreateAuctionRequest - создание аукциона
type CreateAuctionRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description *string   `json:"description,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	StartingBid int64     `json:"starting_bid" binding:"required"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	EndsAt      time.Time `json:"ends_at" binding:"required"`
}

// UpdateAuctionStatusRequest - перевод аукциона между статусами
type UpdateAuctionStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=upcoming active ended"`
}

// CreateTicketTypeRequest - новый тип билета
type CreateTicketTypeRequest struct {
	Name              string  `json:"name" binding:"required"`
	Description       *string `json:"description,omitempty"`
	Price             int64   `json:"price" binding:"required"`
	AvailableQuantity int     `json:"available_quantity"`
}

// RestockRequest - явное пополнение остатка администратором
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// CreateProjectRequest - новый благотворительный проект
type CreateProjectRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description,omitempty"`
	Goal        int64   `json:"goal" binding:"required"`
}

// UpdateProjectRequest - правка проекта; raised не редактируется
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty"`
	Goal        *int64  `json:"goal,omitempty"`
}

// CreateArtistRequest - новый артист
type CreateArtistRequest struct {
	Name        string  `json:"name" binding:"required"`
	Slug        string  `json:"slug,omitempty"`
	Description *string `json:"description,omitempty"`
	Genre       *string `json:"genre,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	Website     *string `json:"website,omitempty"`
}

// CreatePerformanceRequest - слот в расписании
type CreatePerformanceRequest struct {
	ArtistID    int64     `json:"artist_id" binding:"required"`
	Stage       string    `json:"stage" binding:"required"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	EndsAt      time.Time `json:"ends_at" binding:"required"`
	Description *string   `json:"description,omitempty"`
}

// MarkTicketUsedRequest - отметка билета на входе
type MarkTicketUsedRequest struct {
	Used FlexibleBool `json:"used"`
}

// BroadcastRequest - рассылка администратора
type BroadcastRequest struct {
	Channel        string `json:"channel" binding:"required,oneof=whatsapp sms"`
	RecipientGroup string `json:"recipient_group" binding:"required,oneof=all ticket_holders donors bidders"`
	Body           string `json:"body" binding:"required,max=1600"`
}

// ScheduleNotificationRequest - рассылка на заданное время
type ScheduleNotificationRequest struct {
	BroadcastRequest
	SendAt time.Time `json:"send_at" binding:"required"`
}

// BroadcastResponse - итог рассылки
type BroadcastResponse struct {
	LogID      int64 `json:"log_id"`
	Recipients int   `json:"recipients"`
	Sent       int   `json:"sent"`
	Failed     int   `json:"failed"`
}

// DashboardResponse - сводка для админки
type DashboardResponse struct {
	Users          int64  `json:"users"`
	TicketsSold    int64  `json:"tickets_sold"`
	TicketsUsed    int64  `json:"tickets_used"`
	Donations      int64  `json:"donations"`
	DonationsTotal int64  `json:"donations_total"`
	ActiveAuctions int64  `json:"active_auctions"`
	BidsCompleted  int64  `json:"bids_completed"`
	OpenIssues     int64  `json:"open_issues"`
	DisplayTotal   string `json:"donations_total_display"`
}
