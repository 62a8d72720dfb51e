package services

import (
	"context"
	"errors"
)

var (
	ErrInvalidSignature      = errors.New("invalid notification signature")
	ErrMalformedNotification = errors.New("malformed notification")
)

// Metadata keys attached to every checkout session.
const (
	MetadataIdentityID  = "identity_id"
	MetadataProductID   = "product_id"
	MetadataProductName = "product_name"
)

type CheckoutRequest struct {
	IdentityID       string
	ProductID        string
	ProductName      string
	AmountMinorUnits int64
	Currency         string
}

type CheckoutSession struct {
	ID          string
	RedirectURL string
}

// SessionStatus is the live state of a hosted checkout session.
type SessionStatus struct {
	SessionID     string
	PaymentStatus string
	Status        string
	PaymentID     string
	Metadata      map[string]string
}

func (s *SessionStatus) Settled() bool {
	return isSettledPaymentStatus(s.PaymentStatus)
}

func (s *SessionStatus) Expired() bool {
	return s.Status == "expired"
}

func isSettledPaymentStatus(status string) bool {
	return status == "paid" || status == "no_payment_required"
}

type NotificationKind int

const (
	NotificationIgnored NotificationKind = iota
	NotificationCheckoutSettled
	NotificationPaymentFailed
	NotificationPaymentSucceeded
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationCheckoutSettled:
		return "checkout_settled"
	case NotificationPaymentFailed:
		return "payment_failed"
	case NotificationPaymentSucceeded:
		return "payment_succeeded"
	}
	return "ignored"
}

// Notification is a verified gateway event reduced to what reconciliation
// needs. SessionID is empty for payment-level events.
type Notification struct {
	EventID   string
	Type      string
	Kind      NotificationKind
	SessionID string
	PaymentID string
	Metadata  map[string]string
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error)
	// ParseNotification verifies the signature over the raw payload before
	// decoding it. Verification failures wrap ErrInvalidSignature.
	ParseNotification(payload []byte, signature string) (*Notification, error)
}
