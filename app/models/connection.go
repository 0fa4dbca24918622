package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment processor identifiers used across connection-related models.
const (
	ProviderStripe       = "stripe"
	ProviderPaddle       = "paddle"
	ProviderPolar        = "polar"
	ProviderPayPal       = "paypal"
	ProviderLemonSqueezy = "lemonsqueezy"
)

// SupportedProviders lists every processor a connection may be created for.
var SupportedProviders = []string{
	ProviderStripe,
	ProviderPaddle,
	ProviderPolar,
	ProviderPayPal,
	ProviderLemonSqueezy,
}

// IsSupportedProvider reports whether the given provider type has an adapter.
func IsSupportedProvider(provider string) bool {
	for _, p := range SupportedProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// Connection links one tenant to one payment processor. The credential
// fields hold vault tokens, never plaintext; they are decrypted transiently
// during a sync and must not appear in logs or API responses.
type Connection struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	UUID               string         `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	TenantID           uint           `gorm:"not null;index:ix_connections_tenant_provider,priority:1" json:"tenant_id"`
	Provider           string         `gorm:"type:varchar(20);not null;index:ix_connections_tenant_provider,priority:2" json:"provider"`
	APIKeyEnc          string         `gorm:"type:text;not null" json:"-"`
	SecondarySecretEnc string         `gorm:"type:text" json:"-"` // webhook secret or vendor/store id, provider-dependent
	IsActive           bool           `gorm:"default:true" json:"is_active"`
	LastSyncedAt       *time.Time     `gorm:"type:timestamp;default:null" json:"last_synced_at,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a public identifier so internal row IDs never leak
// through the API.
func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	return nil
}
