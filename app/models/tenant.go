package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	TenantStatusActive   = "active"
	TenantStatusDisabled = "disabled"
)

const tenantAPIKeyPrefix = "rr_live_"

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Tenant is the minimal identity a set of processor connections belongs to.
// Account/profile data lives in the upstream platform; this table only
// anchors ownership and API access.
type Tenant struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=3,max=150"`
	Status           string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active disabled"`
	APIKeyHash       string         `gorm:"type:char(64);uniqueIndex;default:''" json:"-"`
	APIKeyPrefix     string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt  *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt *time.Time     `json:"api_key_last_used_at"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// IssueAPIKey generates a new API key, persists metadata on the struct, and returns the raw secret.
// Callers must persist the struct via the database after invoking this method.
func (t *Tenant) IssueAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := tenantAPIKeyPrefix + encoded

	now := time.Now()
	t.APIKeyHash = HashAPIKey(rawKey)
	t.APIKeyPrefix = rawKey[:len(tenantAPIKeyPrefix)+4]
	t.APIKeyCreatedAt = &now
	t.APIKeyLastUsedAt = nil
	return rawKey, nil
}

// TouchAPIKeyUsage updates the last-used timestamp metadata.
func (t *Tenant) TouchAPIKeyUsage() {
	now := time.Now()
	t.APIKeyLastUsedAt = &now
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
