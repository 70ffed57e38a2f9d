package wallet

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/pkg/errorhandler"
	"github.com/petcare/petcare-api/internal/pkg/response"
)

// LedgerReader lists ledger entries for the read API.
type LedgerReader interface {
	ListByWallet(ctx context.Context, walletID uuid.UUID, p ledger.Pagination) ([]ledger.Entry, int, error)
}

type Handler struct {
	svc     *Service
	entries LedgerReader
}

func NewHandler(svc *Service, entries LedgerReader) *Handler {
	return &Handler{svc: svc, entries: entries}
}

type balanceResponse struct {
	WalletID     uuid.UUID `json:"wallet_id"`
	OwnerType    OwnerType `json:"owner_type"`
	OwnerID      *string   `json:"owner_id,omitempty"`
	Currency     string    `json:"currency"`
	BalanceMinor int64     `json:"balance_minor"`
}

func (h *Handler) toBalance(ctx context.Context, w *Wallet) (*balanceResponse, error) {
	balance, err := h.svc.GetBalance(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	return &balanceResponse{
		WalletID:     w.ID,
		OwnerType:    w.OwnerType,
		OwnerID:      w.OwnerID,
		Currency:     w.Currency,
		BalanceMinor: balance,
	}, nil
}

// Balance returns the caller's wallet for ?currency=, or all of the caller's
// wallets when no currency is given.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	ownerType, ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	if currency := r.URL.Query().Get("currency"); currency != "" {
		wallet, err := h.svc.FindByOwner(r.Context(), ownerType, ownerID, currency)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out, err := h.toBalance(r.Context(), wallet)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.OK(w, out)
		return
	}

	wallets, err := h.svc.ListByOwner(r.Context(), ownerType, ownerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]*balanceResponse, 0, len(wallets))
	for i := range wallets {
		b, err := h.toBalance(r.Context(), &wallets[i])
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		out = append(out, b)
	}
	response.OK(w, out)
}

// Ledger lists the caller's ledger entries for ?currency=.
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	ownerType, ownerID, ok := OwnerFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		response.BadRequest(w, "currency is required")
		return
	}

	wallet, err := h.svc.FindByOwner(r.Context(), ownerType, ownerID, currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeLedgerPage(w, r, wallet.ID)
}

// GetWallet is the admin view of any wallet.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid wallet id")
		return
	}
	wallet, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.toBalance(r.Context(), wallet)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, out)
}

func (h *Handler) WalletLedger(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid wallet id")
		return
	}
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeLedgerPage(w, r, id)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid wallet id")
		return
	}
	rec, err := h.svc.Reconcile(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, rec)
}

func (h *Handler) writeLedgerPage(w http.ResponseWriter, r *http.Request, walletID uuid.UUID) {
	page, limit := response.PageParams(r)
	entries, total, err := h.entries.ListByWallet(r.Context(), walletID, ledger.Pagination{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.WithMeta(w, entries, response.NewMeta(total, page, limit))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		response.NotFound(w, "wallet not found")
	case errors.Is(err, ErrInvalidCurrency):
		response.BadRequest(w, "currency must be an ISO 4217 code")
	default:
		errorhandler.Internal(r.Context(), w, err, "wallet request failed")
	}
}

// Routes serves the caller's own wallet.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/ledger", h.Ledger)
	return r
}

// AdminRoutes serves any wallet by id. The caller mounts it behind admin auth.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.GetWallet)
	r.Get("/{id}/ledger", h.WalletLedger)
	r.Get("/{id}/reconcile", h.Reconcile)
	return r
}
