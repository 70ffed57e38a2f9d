package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/settlement"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/pkg/metrics"
	"github.com/petcare/petcare-api/internal/pkg/response"
	"github.com/petcare/petcare-api/internal/pkg/stripe"
)

const maxWebhookBody = 64 << 10

// EventParser verifies and decodes a webhook delivery.
type EventParser interface {
	Parse(payload []byte, signature string) (*stripe.Event, error)
}

type Handler struct {
	service *Service
	parser  EventParser
}

func NewHandler(service *Service, parser EventParser) *Handler {
	return &Handler{service: service, parser: parser}
}

// StripeWebhook handles POST /webhooks/stripe
// @Summary Stripe webhook
// @Description Settles captured consultations, reverses refunded charges and resolves payout transfers.
// @Tags webhooks
// @Success 200 {object} response.Response{data=object{status=string}}
// @Failure 400 {object} response.Response
// @Router /webhooks/stripe [post]
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	ev, err := h.parser.Parse(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, stripe.ErrUnsupportedEvent):
		metrics.WebhookEvents.WithLabelValues(ev.Type, string(OutcomeIgnored)).Inc()
		response.OK(w, map[string]string{"status": string(OutcomeIgnored)})
		return
	case errors.Is(err, stripe.ErrInvalidSignature):
		log.Warn().Err(err).Msg("stripe webhook rejected")
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
		response.BadRequest(w, "invalid signature")
		return
	case err != nil:
		log.Warn().Err(err).Msg("stripe webhook malformed")
		metrics.WebhookEvents.WithLabelValues("unknown", "invalid").Inc()
		response.BadRequest(w, err.Error())
		return
	}

	logger := log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()
	outcome, err := h.service.Handle(r.Context(), ev)
	if err != nil {
		if isPermanent(err) {
			logger.Warn().Err(err).Msg("stripe event rejected")
			metrics.WebhookEvents.WithLabelValues(ev.Type, "invalid").Inc()
			response.BadRequest(w, err.Error())
			return
		}
		// 5xx makes Stripe redeliver.
		logger.Error().Err(err).Msg("stripe event failed")
		metrics.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		response.InternalError(w)
		return
	}

	logger.Info().Str("outcome", string(outcome)).Msg("stripe event handled")
	metrics.WebhookEvents.WithLabelValues(ev.Type, string(outcome)).Inc()
	response.OK(w, map[string]string{"status": string(outcome)})
}

// isPermanent reports errors that redelivery cannot fix.
func isPermanent(err error) bool {
	return errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, settlement.ErrInvalidAmount) ||
		errors.Is(err, settlement.ErrMissingReference) ||
		errors.Is(err, settlement.ErrSameWallet) ||
		errors.Is(err, wallet.ErrInvalidCurrency) ||
		errors.Is(err, wallet.ErrInvalidOwner) ||
		errors.Is(err, wallet.ErrCurrencyMismatch) ||
		errors.Is(err, ledger.ErrKeyConflict)
}

// WebhookRoutes returns webhook router (no auth, but signature verification)
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/stripe", h.StripeWebhook)
	return r
}
