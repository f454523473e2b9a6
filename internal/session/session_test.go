package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestValidateName(t *testing.T) {
	valid := []string{"main", "work-2", "a_b", "x"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) error = %v", name, err)
		}
	}

	invalid := []string{"", "Has Space", "UPPER", "über", "a/b"}
	for _, name := range invalid {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) expected error", name)
		}
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "5",
		"exp": exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	if TokenExpired(signedToken(t, now.Add(time.Hour)), now) {
		t.Error("token valid for one more hour reported expired")
	}
	if !TokenExpired(signedToken(t, now.Add(-time.Minute)), now) {
		t.Error("expired token reported valid")
	}
}

func TestTokenExpiredDegenerateInputs(t *testing.T) {
	now := time.Now()
	if !TokenExpired("", now) {
		t.Error("empty token should count as expired")
	}
	if !TokenExpired("not-a-jwt", now) {
		t.Error("garbage token should count as expired")
	}

	// A token without exp must force a fresh login.
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "5"})
	s, err := tok.SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if !TokenExpired(s, now) {
		t.Error("token without exp claim should count as expired")
	}
}
