package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/alihaidary/souqna-backend/pkg/enums"
)

// Notification is a persisted per-user in-app notification. Delivery is
// fire-and-forget; a failed insert is logged and never retried.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Type      enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title     string                 `gorm:"column:title;not null"`
	Message   string                 `gorm:"column:message;not null"`
	RelatedID *uuid.UUID             `gorm:"column:related_id;type:uuid"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
