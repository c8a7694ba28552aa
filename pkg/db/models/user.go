package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a marketplace account. Auth/session handling lives outside this
// service; the core only reads verification, ban, and bidding-limit state.
type User struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Phone           string     `gorm:"column:phone;not null;uniqueIndex"`
	DisplayName     string     `gorm:"column:display_name"`
	City            string     `gorm:"column:city"`
	PhoneVerified   bool       `gorm:"column:phone_verified;not null;default:false"`
	IsBanned        bool       `gorm:"column:is_banned;not null;default:false"`
	BiddingLimitIQD *int64     `gorm:"column:bidding_limit_iqd"`
	NoAnswerCount   int        `gorm:"column:no_answer_count;not null;default:0"`
	OrderBanUntil   *time.Time `gorm:"column:order_ban_until"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderBannedAt reports whether the user is under a temporary ordering ban.
func (u *User) OrderBannedAt(now time.Time) bool {
	return u.OrderBanUntil != nil && now.Before(*u.OrderBanUntil)
}
