package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPinMismatch is returned by Verify when the PIN does not match the hash.
var ErrPinMismatch = errors.New("pin mismatch")

// CredentialVerifier hashes and checks staff PINs.
type CredentialVerifier interface {
	Hash(pin string) (string, error)
	Verify(hash, pin string) error
}

// BcryptVerifier is the production CredentialVerifier.
type BcryptVerifier struct {
	cost int
}

// NewBcryptVerifier returns a verifier using the given bcrypt cost. Costs
// outside bcrypt's accepted range fall back to bcrypt.DefaultCost.
func NewBcryptVerifier(cost int) *BcryptVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptVerifier{cost: cost}
}

func (v *BcryptVerifier) Hash(pin string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hashed), nil
}

func (v *BcryptVerifier) Verify(hash, pin string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPinMismatch
	}
	return fmt.Errorf("verify pin: %w", err)
}

// ValidPin reports whether pin is 4 to 6 ASCII digits.
func ValidPin(pin string) bool {
	if len(pin) < 4 || len(pin) > 6 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// NewSessionID returns 32 random bytes, hex encoded.
func NewSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
