package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// CartSnapshot is the durable copy of a session cart (Postgres backend).
type CartSnapshot struct {
	Key        string         `json:"key" gorm:"type:varchar(255);primaryKey"`
	Data       datatypes.JSON `json:"data" gorm:"type:jsonb;not null"`
	ProductIDs pq.StringArray `json:"productIds" gorm:"type:text[]"` // Products referenced by the cart lines
	ExpiresAt  *time.Time     `json:"expiresAt" gorm:"type:timestamp;index"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// TableName returns the table name for the CartSnapshot model
func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
