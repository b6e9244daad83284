package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshLock is a distributed lock preventing two instances from launching
// the same company's scheduled refresh run
type RefreshLock struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	CompanyID primitive.ObjectID `json:"company_id" bson:"company_id"`
	LockedBy  string             `json:"locked_by" bson:"locked_by"`   // Instance identifier (hostname)
	LockedAt  time.Time          `json:"locked_at" bson:"locked_at"`   // Lock acquisition timestamp
	ExpiresAt time.Time          `json:"expires_at" bson:"expires_at"` // Lock expiration (TTL)
}
