package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New("test-deployment-secret")
	assert.NoError(t, err)

	for _, plaintext := range []string{"", "sk_live_abc123", "vendor:4711", "ümläut-ключ"} {
		token, err := v.Encrypt(plaintext)
		assert.NoError(t, err)

		got, err := v.Decrypt(token)
		assert.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	v, err := New("test-deployment-secret")
	assert.NoError(t, err)

	a, err := v.Encrypt("sk_live_abc123")
	assert.NoError(t, err)
	b, err := v.Encrypt("sk_live_abc123")
	assert.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsMalformedTokens(t *testing.T) {
	v, err := New("test-deployment-secret")
	assert.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%not-base64%%%"},
		{name: "empty", token: ""},
		{name: "too short for nonce", token: "YWJj"},
		{name: "truncated ciphertext", token: "YWJjZGVmZ2hpamts"},
	}

	for _, tt := range tests {
		if _, err := v.Decrypt(tt.token); err == nil {
			t.Fatalf("%s: expected decrypt error, got none", tt.name)
		}
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	v1, err := New("secret-one")
	assert.NoError(t, err)
	v2, err := New("secret-two")
	assert.NoError(t, err)

	token, err := v1.Encrypt("sk_live_abc123")
	assert.NoError(t, err)

	_, err = v2.Decrypt(token)
	assert.ErrorIs(t, err, ErrDecryptFailed)
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
