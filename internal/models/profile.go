package models

import "time"

// DM delivery status constants
const (
	DMStatusOK      = "ok"
	DMStatusFail    = "fail"
	DMStatusUnknown = "unknown"
)

// UserProfile tracks per-user DM deliverability and timezone preference.
// Rows are created lazily: on the first delivery attempt or the first
// timezone submission, whichever comes first.
type UserProfile struct {
	DiscordUserID string     `gorm:"column:discord_user_id;primaryKey" json:"discord_user_id"`
	DMStatus      string     `gorm:"column:dm_status;not null;default:unknown" json:"dm_status"`
	DMLastError   string     `gorm:"column:dm_last_error;type:text" json:"dm_last_error"`
	DMOkAt        *time.Time `gorm:"column:dm_ok_at" json:"dm_ok_at"`
	Timezone      string     `gorm:"column:tz" json:"tz"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName matches the migration schema.
func (UserProfile) TableName() string { return "discord_users" }
