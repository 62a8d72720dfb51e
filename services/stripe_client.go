package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Timeout       time.Duration
}

// StripeGateway implements PaymentGateway on Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backends := stripe.NewBackends(&http.Client{Timeout: timeout})
	return &StripeGateway{
		api:           client.New(cfg.SecretKey, backends),
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(g.successURL),
		CancelURL:          stripe.String(g.cancelURL),
		ClientReferenceID:  stripe.String(req.IdentityID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
					UnitAmount: stripe.Int64(req.AmountMinorUnits),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataIdentityID, req.IdentityID)
	params.AddMetadata(MetadataProductID, req.ProductID)
	params.AddMetadata(MetadataProductName, req.ProductName)

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, RedirectURL: sess.URL}, nil
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	return sessionStatusFromStripe(sess), nil
}

func (g *StripeGateway) ParseNotification(payload []byte, signature string) (*Notification, error) {
	return parseStripeEvent(payload, signature, g.webhookSecret)
}

func parseStripeEvent(payload []byte, signature, secret string) (*Notification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	n := &Notification{EventID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrMalformedNotification, event.ID)
	}

	switch n.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
		}
		st := sessionStatusFromStripe(&sess)
		n.SessionID = st.SessionID
		n.PaymentID = st.PaymentID
		n.Metadata = st.Metadata

		switch n.Type {
		case "checkout.session.completed":
			// Delayed payment methods complete the session before the
			// money settles; async_payment_succeeded follows.
			if st.Settled() {
				n.Kind = NotificationCheckoutSettled
			} else {
				n.Kind = NotificationPaymentSucceeded
			}
		case "checkout.session.async_payment_succeeded":
			n.Kind = NotificationCheckoutSettled
		default:
			n.Kind = NotificationPaymentFailed
		}

	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
		}
		n.PaymentID = pi.ID
		n.Metadata = pi.Metadata
		if n.Type == "payment_intent.succeeded" {
			n.Kind = NotificationPaymentSucceeded
		} else {
			n.Kind = NotificationPaymentFailed
		}

	default:
		n.Kind = NotificationIgnored
	}
	return n, nil
}

func sessionStatusFromStripe(sess *stripe.CheckoutSession) *SessionStatus {
	st := &SessionStatus{
		SessionID:     sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		Status:        string(sess.Status),
		Metadata:      sess.Metadata,
	}
	if sess.PaymentIntent != nil {
		st.PaymentID = sess.PaymentIntent.ID
	}
	return st
}
