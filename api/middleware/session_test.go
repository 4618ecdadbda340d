package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/storefront-backend/pkg/config"
)

func sessionTestConfig() config.SessionConfig {
	return config.SessionConfig{
		CookieName: "sid",
		TTL:        time.Hour,
		SignInPath: "/signin",
	}
}

func TestSessionMintsCookieWhenAbsent(t *testing.T) {
	var gotSessionID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSessionID = SessionIDFromContext(r.Context())
	})
	handler := Session(sessionTestConfig(), nil, nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/basket", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if gotSessionID == "" {
		t.Fatal("expected a session id in context")
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "sid" {
		t.Fatalf("expected a sid cookie, got %v", cookies)
	}
	if cookies[0].Value != gotSessionID {
		t.Fatal("cookie value should match the context session id")
	}
	if !cookies[0].HttpOnly {
		t.Fatal("session cookie must be http-only")
	}
}

func TestSessionReusesExistingCookie(t *testing.T) {
	existing := uuid.NewString()
	var gotSessionID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSessionID = SessionIDFromContext(r.Context())
	})
	handler := Session(sessionTestConfig(), nil, nil)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/basket", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: existing})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if gotSessionID != existing {
		t.Fatalf("expected session id %q, got %q", existing, gotSessionID)
	}
	if len(resp.Result().Cookies()) != 0 {
		t.Fatal("should not set a new cookie when one exists")
	}
}

func TestBuyerIDFromContextDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/basket", nil)
	if _, ok := BuyerIDFromContext(req.Context()); ok {
		t.Fatal("expected no buyer on a fresh request")
	}

	ctx := WithBuyerID(req.Context(), uuid.Nil)
	if _, ok := BuyerIDFromContext(ctx); !ok {
		t.Fatal("expected buyer after injection")
	}
}
