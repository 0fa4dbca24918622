package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OpenStartupHQ/RevenueRadar/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
)

// SignatureVersion is embedded in every payload so consumers can evolve
// verification without guessing.
const SignatureVersion = 1

var (
	ErrKeyUnavailable   = errors.New("signing: key pair unavailable")
	ErrInvalidSignature = errors.New("signing: signature verification failed")
)

// SignedPayload packages canonicalized data with a detached ed25519
// signature. Verification is a pure function of data, signature and public
// key; whose key this is (platform verified vs self reported) is decided by
// the consumer from how the data arrived, never from the signature alone.
type SignedPayload struct {
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
	PublicKey string          `json:"public_key"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int             `json:"version"`
}

type keyFile struct {
	PublicKeyB64  string `json:"public_key"`
	PrivateKeyB64 string `json:"private_key"`
}

// Service holds the deployment-wide ed25519 key pair. The pair is
// materialized lazily on first use, in priority order: configured secret,
// on-disk key file, freshly generated and persisted pair. Once persisted it
// is reused forever; regenerating would invalidate every signature already
// handed out.
type Service struct {
	keyPath string

	once    sync.Once
	initErr error
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
}

// NewServiceFromEnv creates a signing service configured from environment
// variables (SIGNING_PRIVATE_KEY, SIGNING_KEY_FILE).
func NewServiceFromEnv() *Service {
	return &Service{
		keyPath: env.GetEnv("SIGNING_KEY_FILE", "./data/signing_key.json"),
	}
}

func (s *Service) ensureKey() error {
	s.once.Do(func() {
		s.initErr = s.loadOrCreateKey()
	})
	return s.initErr
}

func (s *Service) loadOrCreateKey() error {
	// 1. Configured secret wins.
	if raw := env.GetEnv("SIGNING_PRIVATE_KEY", ""); raw != "" {
		priv, err := decodePrivateKey(raw)
		if err != nil {
			return fmt.Errorf("%w: SIGNING_PRIVATE_KEY: %v", ErrKeyUnavailable, err)
		}
		s.priv = priv
		s.pub = priv.Public().(ed25519.PublicKey)
		return nil
	}

	// 2. Existing on-disk key file.
	if data, err := os.ReadFile(s.keyPath); err == nil {
		var kf keyFile
		if err := json.Unmarshal(data, &kf); err != nil {
			return fmt.Errorf("%w: corrupt key file %s: %v", ErrKeyUnavailable, s.keyPath, err)
		}
		priv, err := decodePrivateKey(kf.PrivateKeyB64)
		if err != nil {
			return fmt.Errorf("%w: corrupt key file %s: %v", ErrKeyUnavailable, s.keyPath, err)
		}
		s.priv = priv
		s.pub = priv.Public().(ed25519.PublicKey)
		return nil
	}

	// 3. Generate once and persist.
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	kf := keyFile{
		PublicKeyB64:  base64.StdEncoding.EncodeToString(pub),
		PrivateKeyB64: base64.StdEncoding.EncodeToString(priv),
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	if err := os.WriteFile(s.keyPath, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	log.Infof("[Signing] Generated new key pair and persisted to %s", s.keyPath)

	s.priv = priv
	s.pub = pub
	return nil
}

func decodePrivateKey(b64 string) (ed25519.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("unexpected key length %d", len(raw))
	}
}

// PublicKey returns the base64-encoded public key of the deployment.
func (s *Service) PublicKey() (string, error) {
	if err := s.ensureKey(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(s.pub), nil
}

// Sign canonicalizes data to a deterministic byte string, signs it with the
// private key and packages the result.
func (s *Service) Sign(data interface{}) (*SignedPayload, error) {
	if err := s.ensureKey(); err != nil {
		return nil, err
	}
	canonical, err := CanonicalJSON(data)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(s.priv, canonical)
	return &SignedPayload{
		Data:      canonical,
		Signature: base64.StdEncoding.EncodeToString(sig),
		PublicKey: base64.StdEncoding.EncodeToString(s.pub),
		Timestamp: time.Now().UTC(),
		Version:   SignatureVersion,
	}, nil
}

// Verify checks a signed payload against its embedded public key. It proves
// only that these exact bytes were signed by the holder of the matching
// private key.
func Verify(p *SignedPayload) bool {
	if p == nil {
		return false
	}
	pub, err := base64.StdEncoding.DecodeString(p.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	canonical, err := CanonicalJSON(p.Data)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), canonical, sig)
}

// CanonicalJSON produces a deterministic JSON encoding: object keys are
// sorted (encoding/json sorts map keys) and no insignificant whitespace is
// emitted, so signing and verification see identical bytes.
func CanonicalJSON(data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}
