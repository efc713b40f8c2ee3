package service

import (
	"context"
	"fmt"
	"strings"

	"festival/internal/external"
	"festival/internal/logger"
	"festival/internal/metrics"
	"festival/internal/models"
	"festival/internal/repository"
)

// MessageSender - канал доставки WhatsApp/SMS
type MessageSender interface {
	SendMessage(ctx context.Context, channel, to, body string) external.SendResult
}

type userDirectory interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	RecipientsForGroup(ctx context.Context, group string) ([]repository.Recipient, error)
}

type notificationLogger interface {
	Log(ctx context.Context, l *models.NotificationLog) error
}

// NotificationService рассылает сообщения. Вызывается из консьюмеров и админки,
// никогда из расчета платежа.
type NotificationService struct {
	users   userDirectory
	logs    notificationLogger
	sender  MessageSender
	channel string
}

func NewNotificationService(users userDirectory, logs notificationLogger, sender MessageSender) *NotificationService {
	return &NotificationService{
		users:   users,
		logs:    logs,
		sender:  sender,
		channel: external.ChannelWhatsApp,
	}
}

// Broadcast отправляет сообщение группе и пишет итог в журнал рассылок
func (s *NotificationService) Broadcast(ctx context.Context, req *models.BroadcastRequest) (*models.BroadcastResponse, error) {
	recipients, err := s.users.RecipientsForGroup(ctx, req.RecipientGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}

	resp := &models.BroadcastResponse{Recipients: len(recipients)}
	for _, rcp := range recipients {
		if err := ctx.Err(); err != nil {
			break
		}
		if s.send(ctx, req.Channel, rcp.Phone, req.Body) {
			resp.Sent++
		} else {
			resp.Failed++
		}
	}

	entry := &models.NotificationLog{
		Channel:        req.Channel,
		RecipientGroup: req.RecipientGroup,
		RecipientCount: resp.Recipients,
		SentCount:      resp.Sent,
		Body:           req.Body,
	}
	if err := s.logs.Log(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to log broadcast: %w", err)
	}
	resp.LogID = entry.ID

	logger.WithContext(ctx).Info("Broadcast sent",
		"channel", req.Channel,
		"group", req.RecipientGroup,
		"recipients", resp.Recipients,
		"sent", resp.Sent,
		"failed", resp.Failed)

	return resp, nil
}

func (s *NotificationService) NotifyTicketsIssued(ctx context.Context, e *models.TicketsIssuedEvent) error {
	body := fmt.Sprintf("Danke für deinen Kauf! Deine Tickets: %s. Du findest sie jederzeit unter \"Meine Tickets\".",
		strings.Join(e.TicketNumbers, ", "))
	return s.notifyUser(ctx, e.UserID, body)
}

func (s *NotificationService) NotifyDonationReceived(ctx context.Context, e *models.DonationReceivedEvent) error {
	if e.UserID == nil {
		return nil
	}
	body := fmt.Sprintf("Vielen Dank für deine Spende über %s (%s)!",
		models.FormatAmount(e.Amount, models.DefaultCurrency), e.ProjectLabel)
	return s.notifyUser(ctx, *e.UserID, body)
}

// NotifyBidSettled подтверждает ставку и сообщает прежнему лидеру, что его перебили
func (s *NotificationService) NotifyBidSettled(ctx context.Context, e *models.BidSettledEvent) error {
	amount := models.FormatAmount(e.Amount, models.DefaultCurrency)

	body := fmt.Sprintf("Dein Gebot über %s ist eingegangen.", amount)
	if e.Leading {
		body = fmt.Sprintf("Dein Gebot über %s ist eingegangen. Du bist aktuell Höchstbietende:r!", amount)
	}
	if err := s.notifyUser(ctx, e.UserID, body); err != nil {
		return err
	}

	if e.Leading && e.PreviousLeader != nil && *e.PreviousLeader != e.UserID {
		outbid := fmt.Sprintf("Du wurdest überboten! Das neue Höchstgebot liegt bei %s.", amount)
		return s.notifyUser(ctx, *e.PreviousLeader, outbid)
	}
	return nil
}

// NotifyCheckoutExpired сообщает покупателю, что оплата не завершена и ничего не списано
func (s *NotificationService) NotifyCheckoutExpired(ctx context.Context, e *models.IntentExpiredEvent) error {
	if e.UserID == nil {
		return nil
	}
	amount := models.FormatAmount(e.Amount, models.DefaultCurrency)
	var body string
	switch e.IntentType {
	case models.IntentTypeBid:
		body = fmt.Sprintf("Dein Gebot über %s wurde nicht bezahlt und ist verfallen. Du kannst jederzeit neu bieten.", amount)
	case models.IntentTypeTicket:
		body = fmt.Sprintf("Deine Ticketbestellung über %s wurde nicht abgeschlossen. Es wurde nichts abgebucht.", amount)
	default:
		return nil
	}
	return s.notifyUser(ctx, *e.UserID, body)
}

// notifyUser отправляет сообщение пользователю; без телефона сообщение пропускается
func (s *NotificationService) notifyUser(ctx context.Context, userID int64, body string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil || user.Phone == nil || *user.Phone == "" {
		logger.WithContext(ctx).Debug("User has no phone, skipping notification", "user_id", userID)
		return nil
	}

	s.send(ctx, s.channel, *user.Phone, body)
	return nil
}

func (s *NotificationService) send(ctx context.Context, channel, to, body string) bool {
	res := s.sender.SendMessage(ctx, channel, to, body)
	if !res.Success {
		metrics.NotificationsSent.WithLabelValues(channel, "failed").Inc()
		logger.WithContext(ctx).Warn("Notification not delivered", "channel", channel, "error", res.Error)
		return false
	}
	metrics.NotificationsSent.WithLabelValues(channel, "sent").Inc()
	return true
}
