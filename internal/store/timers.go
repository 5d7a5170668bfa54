// Package store provides the persistence layer for cooldown timers and
// user delivery profiles. All writes are last-writer-wins upserts; the API
// handlers and the delivery poller may race on the same row and the later
// write simply sticks.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ksumini/mapleland-2025-christmas-timer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxTimerFailReason bounds the fail_reason column; longer reasons are cut
// to exactly this many characters.
const maxTimerFailReason = 400

// TimerStore persists per-user, per-kind cooldown timers.
type TimerStore struct {
	db *gorm.DB
}

// NewTimerStore creates a TimerStore backed by db.
func NewTimerStore(db *gorm.DB) *TimerStore {
	return &TimerStore{db: db}
}

// Upsert arms (or re-arms) the timer for (userID, kind): status becomes
// scheduled, due_at is set, and any previous fail reason is cleared. First
// insert and overwrite are deliberately indistinguishable.
func (s *TimerStore) Upsert(ctx context.Context, userID, kind string, due time.Time) error {
	now := time.Now().UTC()
	timer := models.Timer{
		DiscordUserID: userID,
		Kind:          kind,
		Status:        models.TimerStatusScheduled,
		DueAt:         due.UTC(),
		LastSetAt:     now,
		FailReason:    "",
		UpdatedAt:     now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "discord_user_id"}, {Name: "timer_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "due_at", "last_set_at", "fail_reason", "updated_at",
		}),
	}).Create(&timer).Error
	if err != nil {
		return fmt.Errorf("upsert timer: %w", err)
	}
	return nil
}

// Cancel marks the timer canceled with the given reason, regardless of its
// current status. Canceling an already-canceled timer is a no-op in effect.
func (s *TimerStore) Cancel(ctx context.Context, userID, kind, reason string) error {
	err := s.db.WithContext(ctx).Model(&models.Timer{}).
		Where("discord_user_id = ? AND timer_type = ?", userID, kind).
		Updates(map[string]interface{}{
			"status":      models.TimerStatusCanceled,
			"fail_reason": truncate(reason, maxTimerFailReason),
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("cancel timer: %w", err)
	}
	return nil
}

// GetAll returns the user's timers keyed by kind. Kinds the user has never
// armed are simply absent from the map.
func (s *TimerStore) GetAll(ctx context.Context, userID string) (map[string]models.Timer, error) {
	var rows []models.Timer
	err := s.db.WithContext(ctx).
		Where("discord_user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get timers: %w", err)
	}

	timers := make(map[string]models.Timer, len(rows))
	for _, t := range rows {
		timers[t.Kind] = t
	}
	return timers, nil
}

// FetchDue returns up to limit scheduled timers whose due time has passed,
// oldest due first so a full batch never starves the longest-waiting user.
func (s *TimerStore) FetchDue(ctx context.Context, limit int) ([]models.Timer, error) {
	var rows []models.Timer
	err := s.db.WithContext(ctx).
		Where("status = ? AND due_at <= ?", models.TimerStatusScheduled, time.Now().UTC()).
		Order("due_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch due timers: %w", err)
	}
	return rows, nil
}

// MarkSent records successful delivery. Safe to call even if the row changed
// concurrently; the write wins either way.
func (s *TimerStore) MarkSent(ctx context.Context, userID, kind string) error {
	err := s.db.WithContext(ctx).Model(&models.Timer{}).
		Where("discord_user_id = ? AND timer_type = ?", userID, kind).
		Updates(map[string]interface{}{
			"status":      models.TimerStatusSent,
			"fail_reason": "",
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("mark timer sent: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure with the truncated reason. Failed is
// a terminal status distinct from user-driven cancellation.
func (s *TimerStore) MarkFailed(ctx context.Context, userID, kind, reason string) error {
	err := s.db.WithContext(ctx).Model(&models.Timer{}).
		Where("discord_user_id = ? AND timer_type = ?", userID, kind).
		Updates(map[string]interface{}{
			"status":      models.TimerStatusFailed,
			"fail_reason": truncate(reason, maxTimerFailReason),
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("mark timer failed: %w", err)
	}
	return nil
}

// truncate cuts s to at most n characters (runes, not bytes — reasons often
// carry Korean text).
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
