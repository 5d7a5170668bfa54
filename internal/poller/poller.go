// Package poller implements the due-timer delivery loop: a single
// long-lived background task that scans the timer table on a fixed interval
// and DMs users whose cooldowns have elapsed.
//
// Design constraints the loop is built around:
//   - records in a cycle are processed sequentially, never in parallel, so
//     the batch limit is the only bound on cycle duration
//   - one record failing delivery never aborts the rest of the batch
//   - a failed fetch abandons the whole cycle with no state change; the next
//     tick retries naturally
//   - the poller has no caller to report to — every per-record outcome is
//     persisted store state plus a log line
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/discord"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/models"
	"github.com/ksumini/mapleland-2025-christmas-timer/internal/timeutil"
)

// TimerQueue is the slice of the timer store the poller drives.
type TimerQueue interface {
	FetchDue(ctx context.Context, limit int) ([]models.Timer, error)
	MarkSent(ctx context.Context, userID, kind string) error
	MarkFailed(ctx context.Context, userID, kind, reason string) error
}

// ProfileDirectory resolves timezones and records delivery outcomes.
type ProfileDirectory interface {
	GetTimezone(ctx context.Context, userID string) (string, error)
	RecordDeliveryResult(ctx context.Context, userID string, ok bool, errMsg string) error
}

// Notifier delivers a direct message to a user.
type Notifier interface {
	SendDirectMessage(ctx context.Context, userID, text string) error
}

// Poller periodically delivers due timer notifications.
type Poller struct {
	timers    TimerQueue
	profiles  ProfileDirectory
	notifier  Notifier
	interval  time.Duration
	limit     int
	defaultTZ string
	log       *slog.Logger
}

// New constructs a Poller. All collaborators are injected; the poller owns
// no process-wide state.
func New(timers TimerQueue, profiles ProfileDirectory, notifier Notifier, interval time.Duration, limit int, defaultTZ string, log *slog.Logger) *Poller {
	return &Poller{
		timers:    timers,
		profiles:  profiles,
		notifier:  notifier,
		interval:  interval,
		limit:     limit,
		defaultTZ: defaultTZ,
		log:       log,
	}
}

// Run executes delivery cycles on the configured interval until ctx is
// cancelled. It never returns an error: cycle failures are logged and the
// loop carries on at the next tick.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("poller started",
		"interval", p.interval.String(),
		"batch_limit", p.limit,
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.runCycle(ctx)

		select {
		case <-ctx.Done():
			p.log.Info("poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// runCycle performs one fetch-and-deliver pass.
func (p *Poller) runCycle(ctx context.Context) {
	cycleID := uuid.New().String()
	log := p.log.With("cycle_id", cycleID)

	due, err := p.timers.FetchDue(ctx, p.limit)
	if err != nil {
		// Store unreachable: abandon the cycle, mutate nothing.
		log.Error("failed to fetch due timers", "error", err.Error())
		return
	}
	if len(due) == 0 {
		return
	}

	log.Info("processing due timers", "count", len(due))

	for _, timer := range due {
		p.deliver(ctx, log, timer)
	}
}

// deliver handles a single due timer. Failures are converted into persisted
// state and never propagate, so one bad record cannot block the batch.
func (p *Poller) deliver(ctx context.Context, log *slog.Logger, timer models.Timer) {
	tzName, err := p.profiles.GetTimezone(ctx, timer.DiscordUserID)
	if err != nil {
		// Fall back rather than skip: a missing zone must not cost the
		// user their notification.
		log.Warn("failed to resolve timezone, using default",
			"user_id", timer.DiscordUserID,
			"error", err.Error(),
		)
		tzName = p.defaultTZ
	}

	text := notificationText(timer.Kind, timeutil.FormatInZone(timer.DueAt, tzName, p.defaultTZ))

	if err := p.notifier.SendDirectMessage(ctx, timer.DiscordUserID, text); err != nil {
		reason := failReason(err)

		if merr := p.timers.MarkFailed(ctx, timer.DiscordUserID, timer.Kind, reason); merr != nil {
			log.Error("failed to mark timer failed",
				"user_id", timer.DiscordUserID,
				"timer_type", timer.Kind,
				"error", merr.Error(),
			)
		}
		// Each store write is independently best-effort; a half-recorded
		// outcome is accepted, not rolled back. The profile keeps the same
		// reason text, just under the looser 800-char cap.
		if merr := p.profiles.RecordDeliveryResult(ctx, timer.DiscordUserID, false, reason); merr != nil {
			log.Error("failed to record delivery failure",
				"user_id", timer.DiscordUserID,
				"error", merr.Error(),
			)
		}

		log.Warn("dm delivery failed",
			"user_id", timer.DiscordUserID,
			"timer_type", timer.Kind,
			"reason", reason,
		)
		return
	}

	if err := p.timers.MarkSent(ctx, timer.DiscordUserID, timer.Kind); err != nil {
		log.Error("failed to mark timer sent",
			"user_id", timer.DiscordUserID,
			"timer_type", timer.Kind,
			"error", err.Error(),
		)
	}
	if err := p.profiles.RecordDeliveryResult(ctx, timer.DiscordUserID, true, ""); err != nil {
		log.Error("failed to record delivery success",
			"user_id", timer.DiscordUserID,
			"error", err.Error(),
		)
	}

	log.Info("dm delivered",
		"user_id", timer.DiscordUserID,
		"timer_type", timer.Kind,
	)
}

// notificationText builds the kind-specific DM embedding the localized due
// time.
func notificationText(kind, dueLocal string) string {
	switch kind {
	case models.KindRudolph:
		return fmt.Sprintf("🦌 루돌프 코 쿨타임 끝! (%s)", dueLocal)
	default:
		return fmt.Sprintf("🩹 반창고 쿨타임 끝! (%s)", dueLocal)
	}
}

// failReason renders a delivery error for the timer row: Discord rejections
// keep their status code and body ("403 Cannot send messages to this user"),
// everything else is the error's string form.
func failReason(err error) string {
	var statusErr *discord.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("%d %s", statusErr.StatusCode, statusErr.Body)
	}
	return err.Error()
}
