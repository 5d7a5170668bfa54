package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ksumini/mapleland-2025-christmas-timer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxProfileError bounds dm_last_error; the profile keeps a fuller error
// than the timer row does.
const maxProfileError = 800

// ProfileStore persists per-user DM deliverability and timezone preference.
// Rows are created lazily by the first delivery attempt or timezone
// submission.
type ProfileStore struct {
	db        *gorm.DB
	defaultTZ string
}

// NewProfileStore creates a ProfileStore backed by db. defaultTZ is returned
// by GetTimezone for users who never submitted one.
func NewProfileStore(db *gorm.DB, defaultTZ string) *ProfileStore {
	return &ProfileStore{db: db, defaultTZ: defaultTZ}
}

// Get returns the user's profile, or (nil, nil) when none exists yet.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).
		Where("discord_user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// IsDeliveryReady reports whether the user's last recorded delivery attempt
// succeeded. Unknown users are not ready.
func (s *ProfileStore) IsDeliveryReady(ctx context.Context, userID string) (bool, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return profile != nil && profile.DMStatus == models.DMStatusOK, nil
}

// RecordDeliveryResult upserts the outcome of a DM attempt. On success the
// error is cleared and dm_ok_at stamped; on failure the truncated error is
// stored and dm_ok_at cleared.
func (s *ProfileStore) RecordDeliveryResult(ctx context.Context, userID string, ok bool, errMsg string) error {
	now := time.Now().UTC()
	profile := models.UserProfile{
		DiscordUserID: userID,
		DMStatus:      models.DMStatusFail,
		DMLastError:   truncate(errMsg, maxProfileError),
		UpdatedAt:     now,
	}
	if ok {
		profile.DMStatus = models.DMStatusOK
		profile.DMLastError = ""
		profile.DMOkAt = &now
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "discord_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"dm_status", "dm_last_error", "dm_ok_at", "updated_at",
		}),
	}).Create(&profile).Error
	if err != nil {
		return fmt.Errorf("record delivery result: %w", err)
	}
	return nil
}

// SetTimezone upserts the user's preferred IANA zone. The caller is
// responsible for validating the format precondition before calling.
func (s *ProfileStore) SetTimezone(ctx context.Context, userID, tz string) error {
	profile := models.UserProfile{
		DiscordUserID: userID,
		DMStatus:      models.DMStatusUnknown,
		Timezone:      tz,
		UpdatedAt:     time.Now().UTC(),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tz", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		return fmt.Errorf("set timezone: %w", err)
	}
	return nil
}

// GetTimezone returns the user's stored zone, or the process-wide default
// when the user has none.
func (s *ProfileStore) GetTimezone(ctx context.Context, userID string) (string, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile == nil || profile.Timezone == "" {
		return s.defaultTZ, nil
	}
	return profile.Timezone, nil
}
