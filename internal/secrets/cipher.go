// Package secrets implements the symmetric cipher for stored credential secrets.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/vaultec/vaultcore/internal/errs"
)

// KeyLen is the required symmetric key length in bytes.
const KeyLen = chacha20poly1305.KeySize

// Cipher encrypts and decrypts secret strings with XChaCha20-Poly1305.
// The key is fixed at construction and never mutated.
type Cipher struct {
	key []byte
}

// NewCipher constructs a Cipher. A missing or wrong-length key is fatal:
// the process must not serve requests without one.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeyLen {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", errs.ErrCipher, KeyLen, len(key))
	}
	k := make([]byte, KeyLen)
	copy(k, key)
	return &Cipher{key: k}, nil
}

// Encrypt seals plaintext with a random nonce and returns base64(nonce||ct).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrCipher, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrCipher, err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, []byte(plaintext), nil)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Corrupt or tampered input yields ErrCipher;
// the caller treats the record as unreadable rather than failing the whole flow.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: not base64", errs.ErrCipher)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", fmt.Errorf("%w: ciphertext too short", errs.ErrCipher)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrCipher, err)
	}
	nonce := raw[:chacha20poly1305.NonceSizeX]
	ct := raw[chacha20poly1305.NonceSizeX:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: open: %v", errs.ErrCipher, err)
	}
	return string(pt), nil
}
