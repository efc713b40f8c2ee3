package errors

import (
	"errors"
	"fmt"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")
var ErrNotFound = errors.New("resource not found")
var ErrConflict = errors.New("resource already exists")

// Причины отклонения на этапе проверки
var (
	ErrBidTooLow             = errors.New("bid must exceed the current highest bid")
	ErrAuctionNotActive      = errors.New("auction is not active")
	ErrAuctionEnded          = errors.New("auction has ended")
	ErrInsufficientInventory = errors.New("not enough tickets available")
	ErrInvalidQuantity       = errors.New("quantity must be between 1 and 10")
	ErrInvalidAmount         = errors.New("amount must be positive")
)

// Виды расхождений, требующих ручной сверки
const (
	KindOversold       = "oversold"
	KindAuctionClosed  = "auction_closed"
	KindAmountMismatch = "amount_mismatch"
	KindLateCompletion = "late_completion"
	KindMissingTarget  = "missing_target"
)

// ValidationError - запрос отклонен до создания платежной сессии
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string { return e.Reason.Error() }
func (e *ValidationError) Unwrap() error { return e.Reason }

// Invalid оборачивает причину в ValidationError
func Invalid(reason error) error {
	return &ValidationError{Reason: reason}
}

// AuthenticityError - подпись уведомления не прошла проверку
type AuthenticityError struct {
	Err error
}

func (e *AuthenticityError) Error() string { return "payment notification rejected: " + e.Err.Error() }
func (e *AuthenticityError) Unwrap() error { return e.Err }

// FatalInconsistency is a paid intent that cannot be fulfilled as recorded.
type FatalInconsistency struct {
	Kind   string
	Detail string
}

func (e *FatalInconsistency) Error() string {
	return fmt.Sprintf("fatal inconsistency (%s): %s", e.Kind, e.Detail)
}

// Inconsistent создает FatalInconsistency
func Inconsistent(kind, format string, args ...any) error {
	return &FatalInconsistency{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// TransientError - сбой внешней зависимости, операцию можно повторить
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient оборачивает err как TransientError
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// AsInconsistency извлекает FatalInconsistency из цепочки ошибок
func AsInconsistency(err error) (*FatalInconsistency, bool) {
	var f *FatalInconsistency
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func AsAuthenticity(err error) (*AuthenticityError, bool) {
	var a *AuthenticityError
	if errors.As(err, &a) {
		return a, true
	}
	return nil, false
}
