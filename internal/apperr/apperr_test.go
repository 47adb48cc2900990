package apperr_test

import (
	"chatapp-backend/internal/apperr"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"Plain error is a persistence failure", errors.New("boom"), apperr.PersistenceFailure},
		{"Not found", apperr.NotFoundf("channel %d not found", 3), apperr.NotFound},
		{"Wrapped with fmt", fmt.Errorf("handler: %w", apperr.Conflict("exists")), apperr.ConflictExists},
		{"Forbidden", apperr.Forbidden("no"), apperr.AuthorizationDenied},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := apperr.KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestMessageHidesCause(t *testing.T) {
	err := apperr.Persistence(sql.ErrConnDone)

	if got := apperr.Message(err); got != "Internal server error" {
		t.Errorf("Message() = %q", got)
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Error("Persistence() should unwrap to its cause")
	}
	if !errors.Is(err, &apperr.Error{Kind: apperr.PersistenceFailure}) {
		t.Error("errors.Is should match on kind")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[apperr.Kind]int{
		apperr.AuthenticationRequired: http.StatusUnauthorized,
		apperr.AuthorizationDenied:    http.StatusForbidden,
		apperr.NotFound:               http.StatusNotFound,
		apperr.ValidationFailed:       http.StatusBadRequest,
		apperr.ConflictExists:         http.StatusConflict,
		apperr.PersistenceFailure:     http.StatusInternalServerError,
	}

	for kind, want := range tests {
		if got := apperr.HTTPStatus(kind); got != want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", kind, got, want)
		}
	}
}
