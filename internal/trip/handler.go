package trip

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/auth"
	"github.com/redmonkez12/cicero/internal/httputil"
)

// Handler serves a user's trip history.
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type ListResponse struct {
	Trips []Summary `json:"trips"`
}

// List handles GET /trips
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondApology(w, r, apperr.New(apperr.KindAuth, ""))
		return
	}

	trips, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		httputil.RespondApology(w, r, err)
		return
	}

	resp := ListResponse{Trips: make([]Summary, 0, len(trips))}
	for _, t := range trips {
		resp.Trips = append(resp.Trips, t.Summary())
	}
	httputil.RespondJSON(w, resp, http.StatusOK)
}

// Get handles GET /trips/{id}. Another user's trip is reported as missing.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondApology(w, r, apperr.New(apperr.KindAuth, ""))
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondApology(w, r, apperr.New(apperr.KindNotFound, msgTripNotFound))
		return
	}

	t, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		httputil.RespondApology(w, r, err)
		return
	}
	if t.UserID != userID {
		httputil.RespondApology(w, r, apperr.New(apperr.KindNotFound, msgTripNotFound))
		return
	}

	httputil.RespondJSON(w, t, http.StatusOK)
}
