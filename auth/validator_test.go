package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
)

func TestJWTValidator_RoundTrip(t *testing.T) {
	SetSecret([]byte("test-secret"))

	claims := &AppClaims{Login: "alice"}
	claims.Subject = "github:42"

	token, err := CreateToken(claims)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	userID, err := JWTValidator{}.Validate(context.Background(), token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if userID != "github:42" {
		t.Errorf("User ID mismatch: got %s, want github:42", userID)
	}
}

func TestJWTValidator_RejectsGarbage(t *testing.T) {
	SetSecret([]byte("test-secret"))

	if _, err := (JWTValidator{}).Validate(context.Background(), "not-a-token"); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestJWTValidator_RejectsExpired(t *testing.T) {
	SetSecret([]byte("test-secret"))

	claims := &AppClaims{}
	claims.Subject = "github:42"
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	token, err := CreateToken(claims)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if _, err := (JWTValidator{}).Validate(context.Background(), token); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestJWTValidator_RejectsWrongSecret(t *testing.T) {
	SetSecret([]byte("secret-a"))
	token, err := CreateToken(&AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	SetSecret([]byte("secret-b"))
	if _, err := (JWTValidator{}).Validate(context.Background(), token); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized for wrong secret, got %v", err)
	}
}

func TestServiceValidator_Valid(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/validate" {
			http.NotFound(w, r)
			return
		}
		render.JSON(w, r, map[string]any{"valid": true, "userId": "U1"})
	}))
	defer ts.Close()

	userID, err := NewServiceValidator(ts.URL).Validate(context.Background(), "some-token")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if userID != "U1" {
		t.Errorf("User ID mismatch: got %s, want U1", userID)
	}
}

func TestServiceValidator_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{"valid": false})
	}))
	defer ts.Close()

	if _, err := NewServiceValidator(ts.URL).Validate(context.Background(), "bad-token"); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestServiceValidator_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	if _, err := NewServiceValidator(ts.URL).Validate(context.Background(), "token"); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestServiceValidator_Unreachable(t *testing.T) {
	// Nothing listens on this address.
	if _, err := NewServiceValidator("http://127.0.0.1:1").Validate(context.Background(), "token"); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}
