package history

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/petcare/petcare-api/internal/domain/ledger"
	"github.com/petcare/petcare-api/internal/domain/wallet"
	"github.com/petcare/petcare-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List handles GET /api/v1/wallet/history
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ownerType, ownerID, ok := wallet.OwnerFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	page, limit := response.PageParams(r)
	items, total, err := h.svc.ListByOwner(r.Context(), ownerType, ownerID, ledger.Pagination{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		log.Error().Err(err).Msg("list wallet history failed")
		response.InternalError(w)
		return
	}
	if items == nil {
		items = []Record{}
	}
	response.WithMeta(w, items, response.NewMeta(total, page, limit))
}

// Rebuild handles POST /api/admin/wallet-history/rebuild
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Rebuild(r.Context())
	if err != nil {
		log.Error().Err(err).Int("records", n).Msg("wallet history rebuild failed")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]int{"records": n})
}

func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/rebuild", h.Rebuild)
	return r
}
