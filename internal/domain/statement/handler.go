package statement

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/petcare/petcare-api/internal/pkg/errorhandler"
	"github.com/petcare/petcare-api/internal/pkg/response"
	"github.com/petcare/petcare-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// ExportRequest is the body of POST /api/admin/wallets/{id}/statements.
type ExportRequest struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
}

// Export handles POST /api/admin/wallets/{id}/statements
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid wallet id")
		return
	}

	var req ExportRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	from, _ := time.Parse(dateLayout, req.From)
	to, _ := time.Parse(dateLayout, req.To)

	st, err := h.svc.Export(r.Context(), walletID, from, to)
	switch {
	case err == nil:
		response.Created(w, st)
	case errors.Is(err, ErrInvalidRange):
		response.ValidationError(w, map[string]string{"to": "must be after from"})
	case errors.Is(err, ErrWalletNotFound):
		response.NotFound(w, "wallet not found")
	default:
		errorhandler.Internal(r.Context(), w, err, "statement export failed")
	}
}
