package handlers

import (
	"chatapp-backend/internal/apperr"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

var bcryptCost = 12

type registration struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,chatemail"`
	Password string `json:"password" validate:"required,password"`
}

type login struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registration
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	passwordBytes, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		h.writeError(w, apperr.Persistence(err))
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Username, req.Email, passwordBytes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.sugar.Infof("User ID [%d] registered as [%s]", user.ID, user.UserName)

	cookie, err := h.issuer.CreateToken(false, user.ID)
	if err != nil {
		h.writeError(w, apperr.Persistence(err))
		return
	}
	http.SetCookie(w, &cookie)

	h.respond(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req login
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}

	wrongLogin := apperr.Unauthenticated("Invalid username or password")

	user, err := h.store.UserByUsername(r.Context(), req.Username)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			h.writeError(w, wrongLogin)
		} else {
			h.writeError(w, err)
		}
		return
	}

	err = bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password))
	if err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.sugar.Warnf("Stored password of user ID [%d] can't be compared: %v", user.ID, err)
		}
		h.writeError(w, wrongLogin)
		return
	}

	cookie, err := h.issuer.CreateToken(req.RememberMe, user.ID)
	if err != nil {
		h.writeError(w, apperr.Persistence(err))
		return
	}
	http.SetCookie(w, &cookie)

	h.respond(w, http.StatusOK, user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.issuer.ExpiredCookie())
	h.respondMessage(w, "Logged out")
}

func (h *Handler) IsLoggedIn(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]string{"user_id": strconv.FormatInt(userIDFrom(r), 10)})
}
