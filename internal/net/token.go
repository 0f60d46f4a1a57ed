package net

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"

	"coin-chase/internal/store"
)

var ErrInvalidToken = errors.New("invalid token")

// Tokens mints and verifies identity tokens of the form
// "<identity>.<base64url hmac-sha256(identity)>".
type Tokens struct {
	secret []byte
}

func NewTokens(secret string) *Tokens {
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		return &Tokens{secret: buf}
	}
	return &Tokens{secret: []byte(secret)}
}

// Mint creates a fresh identity and its token.
func (t *Tokens) Mint() (store.Identity, string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	identity := store.Identity(hex.EncodeToString(buf))
	return identity, t.Sign(identity), nil
}

func (t *Tokens) Sign(identity store.Identity) string {
	return string(identity) + "." + base64.RawURLEncoding.EncodeToString(t.mac(identity))
}

func (t *Tokens) Verify(token string) (store.Identity, error) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || id == "" {
		return "", ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidToken
	}
	identity := store.Identity(id)
	if !hmac.Equal(raw, t.mac(identity)) {
		return "", ErrInvalidToken
	}
	return identity, nil
}

func (t *Tokens) mac(identity store.Identity) []byte {
	m := hmac.New(sha256.New, t.secret)
	m.Write([]byte(identity))
	return m.Sum(nil)
}
