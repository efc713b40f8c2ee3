package external

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const defaultPhoneRegion = "DE"

// Каналы рассылки
const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
)

type NotifierConfig struct {
	AccountSID   string
	AuthToken    string
	WhatsAppFrom string
	SMSFrom      string
}

// SendResult - результат отправки одного сообщения
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

type messageAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Notifier отправляет WhatsApp и SMS через Twilio.
// Без учетных данных сообщения только пишутся в лог.
type Notifier struct {
	api          messageAPI
	whatsAppFrom string
	smsFrom      string
}

func NewNotifier(cfg NotifierConfig) *Notifier {
	n := &Notifier{
		whatsAppFrom: cfg.WhatsAppFrom,
		smsFrom:      cfg.SMSFrom,
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		slog.Warn("Twilio credentials not set, notifications will only be logged")
		return n
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	n.api = client.Api
	return n
}

func (n *Notifier) Enabled() bool {
	return n.api != nil
}

// SendMessage отправляет body по указанному каналу
func (n *Notifier) SendMessage(ctx context.Context, channel, to, body string) SendResult {
	if err := ctx.Err(); err != nil {
		return SendResult{Error: err.Error()}
	}

	from, recipient, err := n.addresses(channel, to)
	if err != nil {
		return SendResult{Error: err.Error()}
	}

	if n.api == nil {
		id := "log-" + uuid.NewString()
		slog.Info("Notification (log only)", "channel", channel, "to", recipient, "message_id", id, "body", body)
		return SendResult{Success: true, MessageID: id}
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		slog.Error("Failed to send notification", "channel", channel, "to", recipient, "error", err)
		return SendResult{Error: err.Error()}
	}

	result := SendResult{Success: true}
	if resp != nil && resp.Sid != nil {
		result.MessageID = *resp.Sid
	}
	return result
}

func (n *Notifier) addresses(channel, to string) (string, string, error) {
	phone := NormalizePhone(to)
	if phone == "" {
		return "", "", fmt.Errorf("invalid phone number %q", to)
	}

	switch channel {
	case ChannelWhatsApp:
		return withPrefix("whatsapp:", n.whatsAppFrom), "whatsapp:" + phone, nil
	case ChannelSMS:
		return n.smsFrom, phone, nil
	default:
		return "", "", fmt.Errorf("unknown channel %q", channel)
	}
}

func withPrefix(prefix, value string) string {
	if value == "" || strings.HasPrefix(value, prefix) {
		return value
	}
	return prefix + value
}

// NormalizePhone приводит номер к виду E.164 (+491701234567).
// Номера без кода страны считаются немецкими. Пустая строка - номер не распознан.
func NormalizePhone(raw string) string {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
