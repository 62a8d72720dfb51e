package services_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"enrollment-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func newTestStripeGateway() *services.StripeGateway {
	return services.NewStripeGateway(services.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "http://localhost:3000/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "http://localhost:3000/payment-cancel",
	})
}

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func stripeEvent(id, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"api_version":"2024-06-20","data":{"object":%s}}`, id, eventType, object))
}

func TestParseNotification_CheckoutCompletedPaid(t *testing.T) {
	gw := newTestStripeGateway()
	payload := stripeEvent("evt_1", "checkout.session.completed",
		`{"id":"cs_1","object":"checkout.session","payment_status":"paid","status":"complete","payment_intent":"pi_123","metadata":{"identity_id":"U7","product_id":"beginner"}}`)

	n, err := gw.ParseNotification(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", n.EventID)
	assert.Equal(t, services.NotificationCheckoutSettled, n.Kind)
	assert.Equal(t, "cs_1", n.SessionID)
	assert.Equal(t, "pi_123", n.PaymentID)
	assert.Equal(t, "U7", n.Metadata[services.MetadataIdentityID])
}

func TestParseNotification_CheckoutCompletedUnpaidIsInformational(t *testing.T) {
	gw := newTestStripeGateway()
	payload := stripeEvent("evt_2", "checkout.session.completed",
		`{"id":"cs_2","object":"checkout.session","payment_status":"unpaid","status":"complete"}`)

	n, err := gw.ParseNotification(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, services.NotificationPaymentSucceeded, n.Kind)
	assert.Empty(t, n.PaymentID)
}

func TestParseNotification_SessionFailures(t *testing.T) {
	gw := newTestStripeGateway()
	for _, eventType := range []string{"checkout.session.async_payment_failed", "checkout.session.expired"} {
		t.Run(eventType, func(t *testing.T) {
			payload := stripeEvent("evt_3", eventType,
				`{"id":"cs_3","object":"checkout.session","payment_status":"unpaid","status":"expired"}`)

			n, err := gw.ParseNotification(payload, signPayload(t, payload, testWebhookSecret))
			require.NoError(t, err)
			assert.Equal(t, services.NotificationPaymentFailed, n.Kind)
			assert.Equal(t, "cs_3", n.SessionID)
		})
	}
}

func TestParseNotification_PaymentIntentEvents(t *testing.T) {
	gw := newTestStripeGateway()

	failed := stripeEvent("evt_4", "payment_intent.payment_failed", `{"id":"pi_9","object":"payment_intent"}`)
	n, err := gw.ParseNotification(failed, signPayload(t, failed, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, services.NotificationPaymentFailed, n.Kind)
	assert.Equal(t, "pi_9", n.PaymentID)
	assert.Empty(t, n.SessionID)

	succeeded := stripeEvent("evt_5", "payment_intent.succeeded", `{"id":"pi_9","object":"payment_intent"}`)
	n, err = gw.ParseNotification(succeeded, signPayload(t, succeeded, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, services.NotificationPaymentSucceeded, n.Kind)
}

func TestParseNotification_UnknownTypeIgnored(t *testing.T) {
	gw := newTestStripeGateway()
	payload := stripeEvent("evt_6", "customer.created", `{"id":"cus_1","object":"customer"}`)

	n, err := gw.ParseNotification(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, services.NotificationIgnored, n.Kind)
}

func TestParseNotification_BadSignature(t *testing.T) {
	gw := newTestStripeGateway()
	payload := stripeEvent("evt_7", "checkout.session.completed", `{"id":"cs_1","payment_status":"paid"}`)

	_, err := gw.ParseNotification(payload, signPayload(t, payload, "whsec_other"))
	assert.True(t, errors.Is(err, services.ErrInvalidSignature))

	_, err = gw.ParseNotification(payload, "")
	assert.True(t, errors.Is(err, services.ErrInvalidSignature))
}

func TestParseNotification_TamperedBody(t *testing.T) {
	gw := newTestStripeGateway()
	payload := stripeEvent("evt_8", "checkout.session.completed", `{"id":"cs_1","payment_status":"unpaid"}`)
	header := signPayload(t, payload, testWebhookSecret)

	tampered := stripeEvent("evt_8", "checkout.session.completed", `{"id":"cs_1","payment_status":"paid"}`)
	_, err := gw.ParseNotification(tampered, header)
	assert.True(t, errors.Is(err, services.ErrInvalidSignature))
}

func TestSessionStatus_Settled(t *testing.T) {
	assert.True(t, (&services.SessionStatus{PaymentStatus: "paid"}).Settled())
	assert.True(t, (&services.SessionStatus{PaymentStatus: "no_payment_required"}).Settled())
	assert.False(t, (&services.SessionStatus{PaymentStatus: "unpaid"}).Settled())
	assert.True(t, (&services.SessionStatus{Status: "expired"}).Expired())
}
