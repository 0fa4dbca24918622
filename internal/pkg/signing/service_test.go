package signing

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return &Service{keyPath: filepath.Join(t.TempDir(), "signing_key.json")}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	svc := newTestService(t)

	payload, err := svc.Sign(map[string]interface{}{"mrr": 100, "currency": "USD"})
	assert.NoError(t, err)
	assert.Equal(t, SignatureVersion, payload.Version)
	assert.True(t, Verify(payload))
}

func TestVerifyFailsOnTamperedData(t *testing.T) {
	svc := newTestService(t)

	payload, err := svc.Sign(map[string]interface{}{"mrr": 100})
	assert.NoError(t, err)

	tampered := *payload
	tampered.Data = json.RawMessage(`{"mrr":101}`)
	assert.False(t, Verify(&tampered))
}

func TestVerifyFailsOnTamperedSignature(t *testing.T) {
	svc := newTestService(t)

	payload, err := svc.Sign(map[string]interface{}{"mrr": 100})
	assert.NoError(t, err)

	sig, err := base64.StdEncoding.DecodeString(payload.Signature)
	assert.NoError(t, err)
	sig[0] ^= 0x01

	tampered := *payload
	tampered.Signature = base64.StdEncoding.EncodeToString(sig)
	assert.False(t, Verify(&tampered))
}

func TestVerifyFailsWithForeignPublicKey(t *testing.T) {
	svcA := newTestService(t)
	svcB := newTestService(t)

	payload, err := svcA.Sign(map[string]interface{}{"mrr": 100})
	assert.NoError(t, err)

	otherKey, err := svcB.PublicKey()
	assert.NoError(t, err)

	tampered := *payload
	tampered.PublicKey = otherKey
	assert.False(t, Verify(&tampered))
}

func TestKeyPairIsPersistedAndReused(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signing_key.json")

	first := &Service{keyPath: path}
	pub1, err := first.PublicKey()
	assert.NoError(t, err)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected key file to be persisted at %s: %v", path, err)
	}

	second := &Service{keyPath: path}
	pub2, err := second.PublicKey()
	assert.NoError(t, err)

	assert.Equal(t, pub1, pub2, "restart must reuse the persisted key pair")

	// A payload signed before the restart still verifies after it.
	payload, err := second.Sign(map[string]interface{}{"arr": 1200})
	assert.NoError(t, err)
	assert.True(t, Verify(payload))
}

func TestCanonicalJSONIsDeterministic(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{"b": 2, "a": 1})
	assert.NoError(t, err)
	b, err := CanonicalJSON(json.RawMessage(`{"b": 2, "a": 1}`))
	assert.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Equal(t, `{"a":1,"b":2}`, string(a))
}
