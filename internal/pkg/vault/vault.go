package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen     = 32 // AES-256
	iterations = 120_000
)

// The salt is a domain separator for key derivation, not a secret; the
// deployment secret itself provides the entropy.
var derivationSalt = []byte("revenueradar.credential.vault.v1")

var (
	ErrEmptySecret    = errors.New("vault: deployment secret is required")
	ErrMalformedToken = errors.New("vault: malformed ciphertext token")
	ErrDecryptFailed  = errors.New("vault: decryption failed")
)

// Vault encrypts processor credentials for storage. Each Encrypt call uses
// a fresh random nonce, so identical plaintexts never produce identical
// tokens. The derived key lives in memory for the process lifetime and is
// never persisted next to the ciphertext.
type Vault struct {
	aead cipher.AEAD
}

// New derives the vault key from the deployment secret and prepares the
// AES-GCM cipher.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := pbkdf2.Key([]byte(secret), derivationSalt, iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals the plaintext into a base64 token of nonce||ciphertext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt. Malformed or truncated tokens
// and wrong-key ciphertexts return an error; corrupted plaintext is never
// handed back to the caller.
func (v *Vault) Decrypt(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrMalformedToken
	}
	if len(raw) < v.aead.NonceSize()+v.aead.Overhead() {
		return "", ErrMalformedToken
	}
	nonce, ciphertext := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}
