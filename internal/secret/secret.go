// Package secret encrypts credentials that are stored in the database.
package secret

import (
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

// ErrInvalidToken is returned when a stored token cannot be decrypted with the key.
var ErrInvalidToken = errors.New("invalid or tampered secret")

// noExpiry disables the token age check.
const noExpiry time.Duration = -1

// Box seals and opens secrets with a fernet key.
type Box struct {
	key *fernet.Key
}

// NewBox creates a Box from a base64 encoded 32 byte fernet key.
func NewBox(encodedKey string) (*Box, error) {
	key, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fernet key: %w", err)
	}
	return &Box{key: key}, nil
}

// GenerateKey returns a new random key in the encoding NewBox expects.
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", fmt.Errorf("failed to generate fernet key: %w", err)
	}
	return key.Encode(), nil
}

// Seal encrypts plain. An empty secret seals to an empty string.
func (b *Box) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	token, err := fernet.EncryptAndSign([]byte(plain), b.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt secret: %w", err)
	}
	return string(token), nil
}

// Open decrypts a token produced by Seal.
func (b *Box) Open(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), noExpiry, []*fernet.Key{b.key})
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}
