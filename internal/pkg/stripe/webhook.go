package stripe

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/petcare/petcare-api/internal/pkg/validator"
)

// Event types handled by the service.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventChargeRefunded   = "charge.refunded"
	EventTransferCreated  = "transfer.created"
	EventTransferReversed = "transfer.reversed"
)

// Metadata keys set by the booking flow and by payout dispatch.
const (
	MetaKind      = "kind"
	MetaBookingID = "booking_id"
	MetaDoctorID  = "doctor_id"
	MetaPayoutID  = "payout_id"
)

// PaymentSucceeded is a captured payment intent.
type PaymentSucceeded struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	AmountMinor     int64  `json:"amount_minor" validate:"gt=0"`
	Currency        string `json:"currency" validate:"required,currency"`
	Kind            string `json:"kind"`
	BookingID       string `json:"booking_id"`
	DoctorID        string `json:"doctor_id"`
}

// ChargeRefunded is a refund issued on the provider side.
type ChargeRefunded struct {
	ChargeID        string `json:"charge_id" validate:"required"`
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	AmountRefunded  int64  `json:"amount_refunded" validate:"gte=0"`
	Currency        string `json:"currency" validate:"required,currency"`
	BookingID       string `json:"booking_id"`
}

// TransferChanged reports a payout transfer being created or reversed.
type TransferChanged struct {
	TransferID  string `json:"transfer_id" validate:"required"`
	PayoutID    string `json:"payout_id" validate:"required,uuid"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// Event is a verified webhook event. Exactly one payload field is set,
// matching Type.
type Event struct {
	ID   string
	Type string

	Payment  *PaymentSucceeded
	Refund   *ChargeRefunded
	Transfer *TransferChanged
}

// Verifier checks webhook signatures.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Parse verifies the Stripe-Signature header and decodes the event.
func (v *Verifier) Parse(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return Decode(ev)
}

// Decode maps a raw Stripe event onto the typed payloads and validates them.
func Decode(ev stripeapi.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: event %s has no data", ErrInvalidEvent, ev.ID)
	}

	var payload any
	switch out.Type {
	case EventPaymentSucceeded:
		var pi stripeapi.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		amount := pi.AmountReceived
		if amount == 0 {
			amount = pi.Amount
		}
		out.Payment = &PaymentSucceeded{
			PaymentIntentID: pi.ID,
			AmountMinor:     amount,
			Currency:        strings.ToUpper(string(pi.Currency)),
			Kind:            pi.Metadata[MetaKind],
			BookingID:       pi.Metadata[MetaBookingID],
			DoctorID:        pi.Metadata[MetaDoctorID],
		}
		payload = out.Payment

	case EventChargeRefunded:
		var ch stripeapi.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		out.Refund = &ChargeRefunded{
			ChargeID:       ch.ID,
			AmountRefunded: ch.AmountRefunded,
			Currency:       strings.ToUpper(string(ch.Currency)),
			BookingID:      ch.Metadata[MetaBookingID],
		}
		if ch.PaymentIntent != nil {
			out.Refund.PaymentIntentID = ch.PaymentIntent.ID
		}
		payload = out.Refund

	case EventTransferCreated, EventTransferReversed:
		var tr stripeapi.Transfer
		if err := json.Unmarshal(ev.Data.Raw, &tr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
		out.Transfer = &TransferChanged{
			TransferID:  tr.ID,
			PayoutID:    tr.Metadata[MetaPayoutID],
			AmountMinor: tr.Amount,
			Currency:    strings.ToUpper(string(tr.Currency)),
		}
		payload = out.Transfer

	default:
		return out, fmt.Errorf("%w: %s", ErrUnsupportedEvent, out.Type)
	}

	if errs := validator.Validate(payload); errs != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidEvent, formatErrors(errs))
	}
	return out, nil
}

func formatErrors(errs map[string]string) string {
	parts := make([]string, 0, len(errs))
	for field, msg := range errs {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
