package settlement

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/pkg/errorhandler"
	"github.com/petcare/petcare-api/internal/pkg/response"
	"github.com/petcare/petcare-api/internal/pkg/validator"
)

// Handler exposes settlement to internal callers.
type Handler struct {
	engine  *Engine
	wallets WalletResolver
	feeBps  int
}

func NewHandler(engine *Engine, wallets WalletResolver, feeBps int) *Handler {
	return &Handler{engine: engine, wallets: wallets, feeBps: feeBps}
}

// Settle handles POST /api/internal/settlements
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	var req Consultation
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	capture, err := ResolveCapture(r.Context(), h.wallets, req, h.feeBps)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.engine.Settle(r.Context(), capture)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.AlreadySettled {
		response.OK(w, res)
		return
	}
	response.Created(w, res)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrMissingReference),
		errors.Is(err, ErrSameWallet),
		errors.Is(err, wallet.ErrInvalidCurrency),
		errors.Is(err, wallet.ErrInvalidOwner),
		errors.Is(err, wallet.ErrCurrencyMismatch):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrWalletNotFound):
		response.NotFound(w, "wallet not found")
	case errors.Is(err, ledger.ErrKeyConflict):
		response.Conflict(w, "payment already settled with different amounts")
	default:
		errorhandler.Internal(r.Context(), w, err, "settlement request failed")
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Settle)
	return r
}
