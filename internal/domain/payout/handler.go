package payout

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/middleware"
	"github.com/petcare/petcare-api/internal/pkg/errorhandler"
	"github.com/petcare/petcare-api/internal/pkg/jwt"
	"github.com/petcare/petcare-api/internal/pkg/response"
	"github.com/petcare/petcare-api/internal/pkg/validator"
)

const idempotencyHeader = "Idempotency-Key"

type Handler struct {
	processor *Processor
}

func NewHandler(processor *Processor) *Handler {
	return &Handler{processor: processor}
}

// Create handles POST /api/v1/payouts
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ownerType, ownerID, ok := wallet.OwnerFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req CreateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	key := r.Header.Get(idempotencyHeader)
	if len(key) > 255 {
		response.BadRequest(w, "Idempotency-Key is too long")
		return
	}

	po, err := h.processor.RequestPayout(r.Context(), Request{
		OwnerType:      ownerType,
		OwnerID:        ownerID,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Destination:    req.Destination,
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Created(w, po)
}

// List handles GET /api/v1/payouts
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerType, ownerID, ok := wallet.OwnerFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	page, limit := response.PageParams(r)
	items, total, err := h.processor.ListByOwner(r.Context(), ownerType, ownerID, ledger.Pagination{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []Payout{}
	}
	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

// Get handles GET /api/v1/payouts/{id}. Payouts of other owners are reported
// as missing.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ownerType, ownerID, ok := wallet.OwnerFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}
	po, err := h.processor.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if po.OwnerType != ownerType || po.Owner() != ownerID {
		response.NotFound(w, "payout not found")
		return
	}
	response.OK(w, po)
}

// ListByStatus handles GET /api/admin/payouts?status=
func (h *Handler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	if status == "" {
		status = StatusPending
	}
	page, limit := response.PageParams(r)
	items, total, err := h.processor.ListByStatus(r.Context(), status, ledger.Pagination{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []Payout{}
	}
	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}
	transferID, err := h.processor.Dispatch(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, DispatchResponse{PayoutID: id.String(), TransferID: transferID})
}

func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}
	var req MarkPaidRequest
	if r.ContentLength != 0 {
		if err := response.DecodeJSON(r.Body, &req); err != nil {
			response.BadRequest(w, "invalid JSON body")
			return
		}
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	po, err := h.processor.MarkPaid(r.Context(), id, req.ExternalTransferID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, po)
}

func (h *Handler) MarkFailed(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payout id")
		return
	}
	var req MarkFailedRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}
	po, err := h.processor.MarkFailed(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, po)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrPayoutNotFound):
		response.NotFound(w, "payout not found")
	case errors.Is(err, ErrWalletNotFound):
		response.NotFound(w, "wallet not found")
	case errors.Is(err, ErrInsufficientFunds):
		response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "balance does not cover the payout")
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, wallet.ErrInvalidCurrency),
		errors.Is(err, wallet.ErrInvalidOwner):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrNotPending),
		errors.Is(err, ErrIdempotencyMismatch):
		response.Conflict(w, err.Error())
	case errors.Is(err, ErrNoTransferChannel):
		response.Error(w, http.StatusServiceUnavailable, "TRANSFER_UNAVAILABLE", "payout transfers are not configured")
	case errors.Is(err, ErrProviderFailed):
		response.BadGateway(w, "payment provider transfer failed")
	default:
		errorhandler.Internal(r.Context(), w, err, "payout request failed")
	}
}

// Routes serves the caller's own payouts.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(jwt.RoleDoctor)).Post("/", h.Create)
	return r
}

// AdminRoutes serves payout operations. The caller mounts it behind admin auth.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListByStatus)
	r.Post("/{id}/dispatch", h.Dispatch)
	r.Post("/{id}/paid", h.MarkPaid)
	r.Post("/{id}/failed", h.MarkFailed)
	return r
}
