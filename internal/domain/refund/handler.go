package refund

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/pkg/errorhandler"
	"github.com/petcare/petcare-api/internal/pkg/response"
	"github.com/petcare/petcare-api/internal/pkg/validator"
)

// WalletResolver creates the payer wallet for wallet refunds.
type WalletResolver interface {
	EnsureWallet(ctx context.Context, ownerType wallet.OwnerType, ownerID, currency string) (*wallet.Wallet, error)
}

type Handler struct {
	svc     *Service
	wallets WalletResolver
}

func NewHandler(svc *Service, wallets WalletResolver) *Handler {
	return &Handler{svc: svc, wallets: wallets}
}

// CancelRequest is sent by the booking service when a consultation is
// cancelled after payment.
type CancelRequest struct {
	PaymentIntentID   string `json:"payment_intent_id" validate:"required,max=255"`
	BookingID         string `json:"booking_id" validate:"max=255"`
	Reason            string `json:"reason" validate:"max=500"`
	RefundTo          Target `json:"refund_to" validate:"refund_target"`
	PayerUserID       string `json:"payer_user_id" validate:"max=255"`
	Currency          string `json:"currency" validate:"omitempty,currency"`
	RefundAmountMinor int64  `json:"refund_amount_minor" validate:"gte=0"`
}

func (req CancelRequest) validate() map[string]string {
	errs := validator.Validate(req)
	if req.RefundTo != TargetWallet {
		return errs
	}
	if errs == nil {
		errs = map[string]string{}
	}
	if req.PayerUserID == "" {
		errs["payer_user_id"] = "This field is required"
	}
	if req.Currency == "" {
		errs["currency"] = "This field is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Cancel handles POST /api/internal/cancellations
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := req.validate(); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	c := Cancellation{
		PaymentIntentID:   req.PaymentIntentID,
		BookingID:         req.BookingID,
		Reason:            req.Reason,
		RefundTo:          req.RefundTo,
		RefundAmountMinor: req.RefundAmountMinor,
	}
	if req.RefundTo == TargetWallet {
		payer, err := h.wallets.EnsureWallet(r.Context(), wallet.OwnerUser, req.PayerUserID, req.Currency)
		if err != nil {
			writeError(w, r, err)
			return
		}
		c.PayerWalletID = payer.ID
	}

	res, err := h.svc.Reverse(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, res)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrMissingReference),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidTarget),
		errors.Is(err, ErrPayerWalletRequired),
		errors.Is(err, ErrRefundExceedsPayment),
		errors.Is(err, wallet.ErrInvalidCurrency),
		errors.Is(err, wallet.ErrInvalidOwner),
		errors.Is(err, wallet.ErrCurrencyMismatch):
		response.BadRequest(w, err.Error())
	case errors.Is(err, wallet.ErrWalletNotFound):
		response.NotFound(w, "wallet not found")
	case errors.Is(err, ErrInsufficientFunds):
		response.Conflict(w, "doctor wallet cannot cover the reversal")
	case errors.Is(err, ledger.ErrKeyConflict):
		response.Conflict(w, "payment already reversed with different amounts")
	case errors.Is(err, ErrNoRefundChannel):
		response.Error(w, http.StatusServiceUnavailable, "REFUND_UNAVAILABLE", "external refunds are not configured")
	case errors.Is(err, ErrProviderFailed):
		response.BadGateway(w, "payment provider refund failed")
	default:
		errorhandler.Internal(r.Context(), w, err, "cancellation failed")
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Cancel)
	return r
}
