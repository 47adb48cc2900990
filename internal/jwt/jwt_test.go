package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestCreateAndVerify(t *testing.T) {
	issuer := New("secret", false)

	for _, remember := range []bool{false, true} {
		cookie, err := issuer.CreateToken(remember, 42)
		if err != nil {
			t.Fatal(err)
		}
		if cookie.Name != CookieName || !cookie.HttpOnly {
			t.Errorf("unexpected cookie %+v", cookie)
		}
		if remember == cookie.Expires.IsZero() {
			t.Errorf("remember=%t but cookie expiry is %v", remember, cookie.Expires)
		}

		token, err := issuer.VerifyToken(cookie.Value)
		if err != nil {
			t.Fatalf("VerifyToken() failed: %v", err)
		}
		if token.UserID != 42 || token.Remember != remember {
			t.Errorf("got claims %+v", token)
		}
	}
}

func TestVerifyRejects(t *testing.T) {
	issuer := New("secret", false)
	other := New("other", false)

	foreign, err := other.CreateToken(false, 1)
	if err != nil {
		t.Fatal(err)
	}

	expiredIssuer := New("secret", false)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	expired, err := expiredIssuer.CreateToken(false, 1)
	if err != nil {
		t.Fatal(err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, UserToken{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"Garbage", "not-a-token"},
		{"Wrong secret", foreign.Value},
		{"Expired", expired.Value},
		{"Unsigned", unsigned},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := issuer.VerifyToken(tc.token); err == nil {
				t.Errorf("VerifyToken(%s) passed unexpectedly", tc.name)
			}
		})
	}
}

func TestNeedsRenewal(t *testing.T) {
	issuer := New("secret", false)
	start := time.Now()
	issuer.now = func() time.Time { return start }

	cookie, err := issuer.CreateToken(false, 7)
	if err != nil {
		t.Fatal(err)
	}
	token, err := issuer.VerifyToken(cookie.Value)
	if err != nil {
		t.Fatal(err)
	}

	if issuer.NeedsRenewal(token) {
		t.Error("fresh token shouldn't need renewal")
	}

	issuer.now = func() time.Time { return start.Add(RenewAfter + time.Second) }
	if !issuer.NeedsRenewal(token) {
		t.Error("old token should need renewal")
	}
}
