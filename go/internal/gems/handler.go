package gems

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// IdentityResolver maps a bearer token to a user id
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Handler serves the caller's gem balance
type Handler struct {
	store    Store
	resolver IdentityResolver
}

func NewHandler(store Store, resolver IdentityResolver) *Handler {
	return &Handler{store: store, resolver: resolver}
}

type balanceResponse struct {
	OK    bool   `json:"ok"`
	Gems  int64  `json:"gems"`
	Error string `json:"error,omitempty"`
}

// HandleBalance answers GET /gems for the bearer of the Authorization token
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, balanceResponse{Error: "METHOD_NOT_ALLOWED"})
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	userID, err := h.resolver.Resolve(r.Context(), token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, balanceResponse{Error: "UNAUTHORIZED"})
		return
	}

	balance, err := h.store.Balance(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to read gem balance")
		writeJSON(w, http.StatusInternalServerError, balanceResponse{Error: "INTERNAL"})
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{OK: true, Gems: balance})
}

// RegisterRoutes registers the gem routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/gems", h.HandleBalance)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
