package database

import (
	"log"
	"time"

	"github.com/ksumini/mapleland-2025-christmas-timer/internal/models"
	"gorm.io/gorm"
)

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(db *gorm.DB) error {
	const devUserID = "000000000000000000"

	var existing models.UserProfile
	result := db.Where("discord_user_id = ?", devUserID).First(&existing)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}

	now := time.Now().UTC()

	profile := models.UserProfile{
		DiscordUserID: devUserID,
		DMStatus:      models.DMStatusOK,
		DMOkAt:        &now,
		Timezone:      "Asia/Seoul",
		UpdatedAt:     now,
	}
	if err := db.Create(&profile).Error; err != nil {
		return err
	}

	// One already-delivered timer and one still counting down.
	timers := []models.Timer{
		{
			DiscordUserID: devUserID,
			Kind:          models.KindBandage,
			Status:        models.TimerStatusSent,
			DueAt:         now.Add(-30 * time.Minute),
			LastSetAt:     now.Add(-90 * time.Minute),
			UpdatedAt:     now,
		},
		{
			DiscordUserID: devUserID,
			Kind:          models.KindRudolph,
			Status:        models.TimerStatusScheduled,
			DueAt:         now.Add(3 * time.Hour),
			LastSetAt:     now,
			UpdatedAt:     now,
		},
	}
	for i := range timers {
		if err := db.Create(&timers[i]).Error; err != nil {
			return err
		}
	}

	log.Println("Seeded dev data: 1 profile, 2 timers")
	return nil
}
