package handlers

import (
	"chatapp-backend/internal/apperr"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxDisplayName = 32

func (h *Handler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.UserByID(r.Context(), userIDFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, user)
}

// GetUserProfile is the public view of another user, without the email
func (h *Handler) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	requestedUserID, err := pathID(r, "userID")
	if err != nil {
		h.writeError(w, err)
		return
	}

	user, err := h.store.UserByID(r.Context(), requestedUserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	user.Email = ""
	h.respond(w, http.StatusOK, user)
}

// UpdateUserInfo takes an optional display_name field and an optional avatar file
func (h *Handler) UpdateUserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFrom(r)

	if err := h.parseForm(w, r); err != nil {
		h.writeError(w, err)
		return
	}

	if displayName, sent := formValue(r, "display_name"); sent {
		displayName = strings.TrimSpace(displayName)
		if displayName == "" || utf8.RuneCountInString(displayName) > maxDisplayName {
			h.writeError(w, apperr.Invalid("display_name must be between 1 and 32 characters"))
			return
		}
		if err := h.store.SetDisplayName(ctx, userID, displayName); err != nil {
			h.writeError(w, err)
			return
		}
	}

	avatar, err := h.storeUpload(ctx, r, "avatar")
	if err != nil {
		h.writeError(w, err)
		return
	}
	if avatar != "" {
		previous, err := h.store.SetUserAvatar(ctx, userID, avatar)
		if err != nil {
			h.deleteBlobs(ctx, avatar)
			h.writeError(w, err)
			return
		}
		h.deleteBlobs(ctx, previous)
	}

	user, err := h.store.UserByID(ctx, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, user)
}
