package rest

import (
	"errors"
	"net/http"
	"strings"

	"share-worker/internal/contextkeys"
	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"
	"share-worker/internal/core/port/usecases_port"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const shareStatusQueued = "queued"

type ShareHandler struct {
	requestShareUC usecases_port.RequestShareUseCase
}

func NewShareHandler(requestShareUC usecases_port.RequestShareUseCase) *ShareHandler {
	return &ShareHandler{requestShareUC: requestShareUC}
}

// ShareItem handles POST /api/v1/items/{itemId}/share.
func (h *ShareHandler) ShareItem(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())

	itemID := strings.TrimSpace(chi.URLParam(r, "itemId"))
	if itemID == "" {
		WriteJSONError(w, http.StatusBadRequest, "itemId is required")
		return
	}

	userID, ok := userIDFromContext(r.Context())
	if !ok {
		WriteJSONError(w, http.StatusUnauthorized, "X-User-ID header is missing")
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.New().String()
	}

	msg, err := h.requestShareUC.Execute(r.Context(), itemID, userID, requestID)
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		WriteJSONError(w, http.StatusNotFound, "Item not found")
		return
	case errors.Is(err, domain.ErrOwnershipMismatch):
		WriteJSONError(w, http.StatusForbidden, "Only the item owner can share it")
		return
	case err != nil:
		logger.Error("Failed to queue share request", err, port.Fields{"item_id": itemID})
		WriteJSONError(w, http.StatusInternalServerError, "Failed to queue share request")
		return
	}

	RespondWithJSON(w, http.StatusAccepted, ShareResponseDTO{
		ItemID:  msg.ItemID,
		Status:  shareStatusQueued,
		EventID: msg.RequestID,
	})
}
