package security

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Secret-123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "Secret-123") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "secret-123") {
		t.Fatalf("expected mismatch for different password")
	}
	if CheckPassword("", "anything") {
		t.Fatalf("empty hash must never match")
	}
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !regexp.MustCompile(`^[0-9A-F]{64}$`).MatchString(token) {
		t.Fatalf("unexpected token format %q", token)
	}
	other, _ := GenerateToken()
	if other == token {
		t.Fatalf("expected distinct tokens")
	}
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !regexp.MustCompile(`^[0-9]{6}$`).MatchString(code) {
			t.Fatalf("unexpected code format %q", code)
		}
	}
}

func TestMaskToken(t *testing.T) {
	value := strings.Repeat("A", 30) + "1234567890" + strings.Repeat("B", 24)
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if got := MaskToken(value, created, created.Add(299*time.Second)); got != value {
		t.Fatalf("expected full value inside reveal window, got %q", got)
	}
	got := MaskToken(value, created, created.Add(300*time.Second))
	if got != "AAAA…BBBB" {
		t.Fatalf("unexpected masked value %q", got)
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := IssueSessionToken("secret", 42, time.Hour, now)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, errParse := ParseSessionToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected user 42, got %d", claims.UserID)
	}
	if _, errWrong := ParseSessionToken("other", token); errWrong == nil {
		t.Fatalf("expected signature error")
	}

	expired, _ := IssueSessionToken("secret", 42, time.Minute, now.Add(-2*time.Hour))
	if _, errExpired := ParseSessionToken("secret", expired); errExpired == nil {
		t.Fatalf("expected expiry error")
	}
}
