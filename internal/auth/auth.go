// Package auth hashes and verifies stored credentials and mints session
// tokens.
//
// A stored credential is "<scheme>$<payload>". The scheme used for new
// credentials is configurable, but Verify accepts any known scheme so
// accounts keep working when the setting changes.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type Scheme string

const (
	SchemeBcrypt Scheme = "bcrypt"
	SchemePlain  Scheme = "plain"
)

const tokenBytes = 32

var (
	ErrMismatch      = errors.New("credential mismatch")
	ErrUnknownScheme = errors.New("unknown credential scheme")
)

// ParseScheme defaults to bcrypt for an empty value.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemeBcrypt:
		return SchemeBcrypt, nil
	case SchemePlain:
		return SchemePlain, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, s)
}

// Hasher produces stored credentials in a single scheme.
type Hasher struct {
	scheme Scheme
	cost   int
}

func NewHasher(scheme Scheme) *Hasher {
	return &Hasher{scheme: scheme, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (h *Hasher) WithCost(cost int) *Hasher {
	h.cost = cost
	return h
}

func (h *Hasher) Scheme() Scheme { return h.scheme }

func (h *Hasher) Hash(password string) (string, error) {
	switch h.scheme {
	case SchemePlain:
		return string(SchemePlain) + "$" + password, nil
	case SchemeBcrypt:
		hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		return string(SchemeBcrypt) + "$" + string(hash), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScheme, h.scheme)
}

// Verify checks password against a stored credential. It returns
// ErrMismatch for a wrong password.
func Verify(stored, password string) error {
	scheme, payload, ok := strings.Cut(stored, "$")
	if !ok {
		return ErrUnknownScheme
	}
	switch Scheme(scheme) {
	case SchemePlain:
		if subtle.ConstantTimeCompare([]byte(payload), []byte(password)) != 1 {
			return ErrMismatch
		}
		return nil
	case SchemeBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(payload), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		if err != nil {
			return fmt.Errorf("compare hash: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

// NewToken returns a random hex session token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
