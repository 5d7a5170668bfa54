package models

import (
	"time"
)

// Timer kind constants. Each kind is a fixed cooldown with its own duration
// and notification text.
const (
	KindRudolph = "rudolph"
	KindBandage = "bandage"
)

// Timer status constants
const (
	TimerStatusScheduled = "scheduled"
	TimerStatusSent      = "sent"
	TimerStatusCanceled  = "canceled"
	TimerStatusFailed    = "failed"
)

// KindDurations maps each timer kind to its cooldown length.
var KindDurations = map[string]time.Duration{
	KindRudolph: 3 * time.Hour,
	KindBandage: 1 * time.Hour,
}

// KindLabels maps each timer kind to its user-facing Korean label.
var KindLabels = map[string]string{
	KindRudolph: "루돌프 코(3시간)",
	KindBandage: "반창고(1시간)",
}

// ValidKind reports whether kind names one of the two cooldown timers.
func ValidKind(kind string) bool {
	_, ok := KindDurations[kind]
	return ok
}

// Timer represents one cooldown timer for one user. There is at most one row
// per (user, kind) pair; arming a timer overwrites the existing row.
type Timer struct {
	DiscordUserID string    `gorm:"column:discord_user_id;primaryKey"`
	Kind          string    `gorm:"column:timer_type;primaryKey"`
	Status        string    `gorm:"not null;default:scheduled;index:idx_user_timers_due"`
	DueAt         time.Time `gorm:"not null;index:idx_user_timers_due"`
	LastSetAt     time.Time `gorm:"not null"`
	FailReason    string    `gorm:"type:text"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName keeps the table name the poller and migrations agree on.
func (Timer) TableName() string { return "user_timers" }
