package handlers

import (
	"chatapp-backend/internal/apperr"
	"chatapp-backend/internal/jwt"
	"chatapp-backend/internal/metrics"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type UserIDKeyType struct{}

const userExistsTTL = 15 * time.Minute

// CountStatus feeds the status code of every response into the http metrics
func CountStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordHttpStatus(status)
	})
}

// UserVerifier resolves the jwt cookie to a user ID and passes it on in the
// request context. Tokens older than jwt.RenewAfter are reissued.
func (h *Handler) UserVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtCookie, err := r.Cookie(jwt.CookieName)
		if err != nil {
			h.writeError(w, apperr.Unauthenticated("Not authenticated"))
			return
		}

		userToken, err := h.issuer.VerifyToken(jwtCookie.Value)
		if err != nil {
			h.sugar.Debug(err)
			http.SetCookie(w, h.issuer.ExpiredCookie())
			h.writeError(w, apperr.Unauthenticated("Login expired"))
			return
		}

		userFound, err := h.userExists(r.Context(), userToken.UserID)
		if err != nil {
			h.writeError(w, err)
			return
		}

		// the account was deleted but the client kept its token
		if !userFound {
			http.SetCookie(w, h.issuer.ExpiredCookie())
			h.writeError(w, apperr.Unauthenticated("Not authenticated"))
			return
		}

		if h.issuer.NeedsRenewal(userToken) {
			updatedCookie, err := h.issuer.CreateToken(userToken.Remember, userToken.UserID)
			if err != nil {
				h.writeError(w, apperr.Persistence(err))
				return
			}
			http.SetCookie(w, &updatedCookie)
		}

		ctx := context.WithValue(r.Context(), UserIDKeyType{}, userToken.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userExists asks the cache first, an unreachable cache falls back to the database
func (h *Handler) userExists(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf("user_exists:%d", userID)

	value, err := h.cache.Get(ctx, key)
	if err != nil {
		h.sugar.Warnf("Cache lookup of user ID [%d] failed: %v", userID, err)
	} else if value != "" {
		h.sugar.Debugf("User ID [%d] was found in cache", userID)
		return true, nil
	}

	exists, err := h.store.UserExists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !exists {
		h.sugar.Warnf("User ID [%d] was not found in database", userID)
		return false, nil
	}

	if err := h.cache.Set(ctx, key, "y", userExistsTTL); err != nil {
		h.sugar.Warnf("Failed to cache user ID [%d]: %v", userID, err)
	} else {
		h.sugar.Debugf("User ID [%d] was found in database and was cached", userID)
	}
	return true, nil
}

func userIDFrom(r *http.Request) int64 {
	userID, _ := r.Context().Value(UserIDKeyType{}).(int64)
	return userID
}
