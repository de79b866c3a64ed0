package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mselser95/updown-bot/internal/ledger"
	"github.com/mselser95/updown-bot/internal/session"
	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

const defaultPositionsLimit = 50

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionHandler serves the current session guard snapshot.
type SessionHandler struct {
	guard  *session.Guard
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(guard *session.Guard, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		guard:  guard,
		logger: logger,
	}
}

// HandleSession handles GET /api/session requests.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, h.guard.Snapshot())
}

// PositionsHandler serves recent positions from the ledger.
type PositionsHandler struct {
	store  ledger.Store
	logger *zap.Logger
}

// NewPositionsHandler creates a new positions handler.
func NewPositionsHandler(store ledger.Store, logger *zap.Logger) *PositionsHandler {
	return &PositionsHandler{
		store:  store,
		logger: logger,
	}
}

// PositionsResponse represents the HTTP response for position listings.
type PositionsResponse struct {
	Count     int               `json:"count"`
	Positions []*types.Position `json:"positions"`
}

// HandlePositions handles GET /api/positions?limit=<n> requests.
func (h *PositionsHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	limit := defaultPositionsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, h.logger, http.StatusBadRequest, ErrorResponse{Error: "invalid limit parameter"})
			return
		}
		limit = parsed
	}

	positions, err := h.store.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("positions-listing-failed", zap.Error(err))
		writeJSON(w, h.logger, http.StatusInternalServerError, ErrorResponse{Error: "failed to list positions"})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, PositionsResponse{
		Count:     len(positions),
		Positions: positions,
	})
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
