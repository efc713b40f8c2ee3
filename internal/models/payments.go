package models

// Типы событий платежного шлюза
const (
	PaymentEventCheckoutCompleted     = "checkout.session.completed"
	PaymentEventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	PaymentEventCheckoutExpired       = "checkout.session.expired"
)

// Статус оплаты сессии, при котором деньги уже получены
const (
	PaymentStatusPaid              = "paid"
	PaymentStatusNoPaymentRequired = "no_payment_required"
)

// PaymentLineItem - позиция в платежной сессии
type PaymentLineItem struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

// PaymentSessionRequest describes a hosted checkout session
type PaymentSessionRequest struct {
	Currency          string
	LineItems         []PaymentLineItem
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
}

// Total возвращает сумму всех позиций
func (r PaymentSessionRequest) Total() int64 {
	var total int64
	for _, item := range r.LineItems {
		total += item.UnitAmount * item.Quantity
	}
	return total
}

// PaymentSession - созданная сессия и адрес для редиректа
type PaymentSession struct {
	ID  string
	URL string
}

// PaymentEvent is a verified gateway notification
type PaymentEvent struct {
	ID            string
	Type          string
	SessionID     string
	AmountTotal   int64
	Currency      string
	PaymentStatus string
	Metadata      map[string]string
}
