package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	tokenBytes = 32
	codeDigits = 6

	// TokenRevealWindow is how long a new token is shown in full.
	TokenRevealWindow = 300 * time.Second
)

// GenerateToken returns a 64-character upper-case hex bearer value.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// GenerateCode returns a zero-padded six-digit one-time code.
func GenerateCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// MaskToken returns the full value during the reveal window and prefix…suffix afterwards.
func MaskToken(value string, createdAt, now time.Time) string {
	if now.Before(createdAt.Add(TokenRevealWindow)) {
		return value
	}
	if len(value) <= 8 {
		return strings.Repeat("•", len(value))
	}
	return value[:4] + "…" + value[len(value)-4:]
}
