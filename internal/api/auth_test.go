package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "scheduler",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func authRequest(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/jobs/hourly", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestJobAuthOpenWhenUnconfigured(t *testing.T) {
	t.Parallel()

	a := newJobAuth("", "")
	called := false
	h := a.wrap(func(w http.ResponseWriter, r *http.Request) { called = true })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authRequest(nil))
	if !called {
		t.Error("unconfigured auth must pass requests through")
	}
}

func TestJobAuthJWT(t *testing.T) {
	t.Parallel()

	a := newJobAuth("job-secret", "")

	tests := []struct {
		name    string
		headers map[string]string
		wantErr bool
	}{
		{"valid token", map[string]string{"Authorization": "Bearer " + signedToken(t, "job-secret")}, false},
		{"wrong secret", map[string]string{"Authorization": "Bearer " + signedToken(t, "other-secret")}, true},
		{"garbage token", map[string]string{"Authorization": "Bearer not.a.jwt"}, true},
		{"no credentials", nil, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := a.authenticate(authRequest(tc.headers))
			if (err != nil) != tc.wantErr {
				t.Errorf("authenticate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestJobAuthExpiredJWTRejected(t *testing.T) {
	t.Parallel()

	a := newJobAuth("job-secret", "")
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte("job-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if err := a.authenticate(authRequest(map[string]string{"Authorization": "Bearer " + s})); err == nil {
		t.Error("expired token must be rejected")
	}
}

func TestJobAuthAPIKey(t *testing.T) {
	t.Parallel()

	a := newJobAuth("", "hunter2")

	if err := a.authenticate(authRequest(map[string]string{"X-API-Key": "hunter2"})); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := a.authenticate(authRequest(map[string]string{"X-API-Key": "wrong"})); err == nil {
		t.Error("wrong key accepted")
	}
	if err := a.authenticate(authRequest(nil)); err == nil {
		t.Error("missing credentials accepted")
	}
}

func TestJobAuthWrapRejectsWith401(t *testing.T) {
	t.Parallel()

	a := newJobAuth("job-secret", "")
	h := a.wrap(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authRequest(nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
