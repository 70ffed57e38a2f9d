package stripe

import (
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestParsePaymentSucceeded(t *testing.T) {
	payload := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{
		"id":"pi_1","object":"payment_intent","amount":10000,"amount_received":10000,"currency":"usd",
		"metadata":{"kind":"consultation","booking_id":"bk_1","doctor_id":"doc_1"}}}}`

	ev, err := NewVerifier(testSecret).Parse([]byte(payload), sign(t, payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := ev.Payment
	if ev.Type != EventPaymentSucceeded || p == nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	if p.PaymentIntentID != "pi_1" || p.AmountMinor != 10000 || p.Currency != "USD" ||
		p.Kind != "consultation" || p.BookingID != "bk_1" || p.DoctorID != "doc_1" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestParseChargeRefunded(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{
		"id":"ch_1","object":"charge","amount_refunded":10000,"currency":"usd","payment_intent":"pi_1",
		"metadata":{"booking_id":"bk_1"}}}}`

	ev, err := NewVerifier(testSecret).Parse([]byte(payload), sign(t, payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ev.Refund == nil || ev.Refund.PaymentIntentID != "pi_1" || ev.Refund.BookingID != "bk_1" {
		t.Fatalf("unexpected refund payload %+v", ev.Refund)
	}
}

func TestParseTransferRequiresPayoutID(t *testing.T) {
	payload := `{"id":"evt_3","object":"event","type":"transfer.created","data":{"object":{
		"id":"tr_1","object":"transfer","amount":500,"currency":"usd","metadata":{}}}}`

	_, err := NewVerifier(testSecret).Parse([]byte(payload), sign(t, payload))
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestParseRejectsBadSignature(t *testing.T) {
	payload := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{}}}`
	header := sign(t, payload)

	if _, err := NewVerifier("whsec_other").Parse([]byte(payload), header); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for wrong secret, got %v", err)
	}
	tampered := payload[:len(payload)-1] + " }"
	if _, err := NewVerifier(testSecret).Parse([]byte(tampered), header); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for tampered body, got %v", err)
	}
	if _, err := NewVerifier(testSecret).Parse([]byte(payload), ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing header, got %v", err)
	}
}

func TestParseUnsupportedEvent(t *testing.T) {
	payload := `{"id":"evt_9","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`

	ev, err := NewVerifier(testSecret).Parse([]byte(payload), sign(t, payload))
	if !errors.Is(err, ErrUnsupportedEvent) {
		t.Fatalf("expected ErrUnsupportedEvent, got %v", err)
	}
	if ev == nil || ev.Type != "customer.created" {
		t.Fatalf("expected the event type to be reported, got %+v", ev)
	}
}
