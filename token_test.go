package mstranslator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenRequestSendsSubscriptionKey(t *testing.T) {
	var gotMethod, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		fmt.Fprint(w, "fresh-token")
	}))
	defer srv.Close()

	auth := NewAccessToken("secret-key")
	auth.tokenURL = srv.URL

	token, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "fresh-token" {
		t.Errorf("Expected token 'fresh-token', got '%s'", token)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("Expected POST request, got %s", gotMethod)
	}
	if gotKey != "secret-key" {
		t.Errorf("Expected subscription key header 'secret-key', got '%s'", gotKey)
	}
}

func TestTokenReusedUntilExpiry(t *testing.T) {
	issued := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issued++
		fmt.Fprintf(w, "token-%d", issued)
	}))
	defer srv.Close()

	current := time.Date(2016, 4, 1, 12, 0, 0, 0, time.UTC)
	auth := NewAccessToken("key")
	auth.tokenURL = srv.URL
	auth.now = func() time.Time { return current }

	ctx := context.Background()

	token, err := auth.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "token-1" {
		t.Errorf("Expected 'token-1', got '%s'", token)
	}

	// Calls inside the validity window reuse the cached token.
	for _, offset := range []time.Duration{time.Second, 5 * time.Minute, 9 * time.Minute} {
		current = time.Date(2016, 4, 1, 12, 0, 0, 0, time.UTC).Add(offset)
		token, err = auth.Token(ctx)
		if err != nil {
			t.Fatalf("Token at +%v failed: %v", offset, err)
		}
		if token != "token-1" {
			t.Errorf("Expected cached 'token-1' at +%v, got '%s'", offset, token)
		}
	}
	if issued != 1 {
		t.Fatalf("Expected 1 token issuance, got %d", issued)
	}

	// One second past expiry triggers exactly one re-issue.
	current = time.Date(2016, 4, 1, 12, 0, 0, 0, time.UTC).Add(9*time.Minute + time.Second)
	token, err = auth.Token(ctx)
	if err != nil {
		t.Fatalf("Token after expiry failed: %v", err)
	}
	if token != "token-2" {
		t.Errorf("Expected 'token-2' after expiry, got '%s'", token)
	}
	if issued != 2 {
		t.Errorf("Expected 2 token issuances, got %d", issued)
	}

	// The fresh token is cached again.
	if _, err := auth.Token(ctx); err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if issued != 2 {
		t.Errorf("Expected fresh token to be cached, got %d issuances", issued)
	}
}

func TestTokenRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"bad key"}`)
	}))
	defer srv.Close()

	auth := NewAccessToken("wrong-key")
	auth.tokenURL = srv.URL

	_, err := auth.Token(context.Background())
	if err == nil {
		t.Fatal("Expected error for rejected token request")
	}

	var accessErr *AccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("Expected *AccessError, got %T: %v", err, err)
	}
	if accessErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status code 401, got %d", accessErr.StatusCode)
	}
	if accessErr.Message != "bad key" {
		t.Errorf("Expected message 'bad key', got '%s'", accessErr.Message)
	}
}

func TestTokenRetriedAfterError(t *testing.T) {
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"denied"}`)
			return
		}
		fmt.Fprint(w, "recovered-token")
	}))
	defer srv.Close()

	auth := NewAccessToken("key")
	auth.tokenURL = srv.URL

	if _, err := auth.Token(context.Background()); err == nil {
		t.Fatal("Expected error while the endpoint rejects requests")
	}

	// A failed issuance leaves nothing cached; the next call starts over.
	fail = false
	token, err := auth.Token(context.Background())
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "recovered-token" {
		t.Errorf("Expected 'recovered-token', got '%s'", token)
	}
}
