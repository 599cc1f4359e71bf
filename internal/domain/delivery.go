package domain

import "time"

// WebhookDelivery records that a provider delivery (identified by the
// provider's own message or update id) has already been accepted. It is only
// written when duplicate suppression is enabled, and expires after a TTL so the
// table stays bounded.
type WebhookDelivery struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	Platform    string    `gorm:"type:varchar(16);not null;uniqueIndex:ux_delivery_platform_key,priority:1"`
	DeliveryKey string    `gorm:"type:varchar(128);not null;uniqueIndex:ux_delivery_platform_key,priority:2"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (WebhookDelivery) TableName() string { return "webhook_deliveries" }
