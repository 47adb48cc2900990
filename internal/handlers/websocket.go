package handlers

import (
	"chatapp-backend/internal/apperr"
	"context"
	"net/http"
	"time"
)

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWS(w, r, userIDFrom(r))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.writeError(w, apperr.Persistence(err))
		return
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
