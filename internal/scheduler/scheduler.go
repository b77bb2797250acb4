// Package scheduler runs the hourly sweep that decides, per user's tier,
// whether this is one of their poll hours, and if so dispatches a PollEngine
// run for each of their active campaigns.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
	"github.com/cheolwanpark/leadsignal/engine/internal/plan"
	"github.com/cheolwanpark/leadsignal/engine/internal/pollengine"
	"github.com/robfig/cron/v3"
)

// Stats summarizes one sweep.
type Stats struct {
	UsersChecked     int
	CampaignsPolled  int
	CampaignsFailed  int
	CampaignsSkipped int
}

// Scheduler is the Scheduler component: an hourly cron tick gated by
// per-tier poll hours, dispatching to PollEngine.
type Scheduler struct {
	cron    *cron.Cron
	db      *db.DB
	engine  *pollengine.Engine
	enabled bool

	starterHours []int
	premiumHours []int

	mu        sync.Mutex
	isRunning bool
}

// New builds a Scheduler. enabled mirrors ENABLE_SCHEDULED_POLLING; when
// false, Start is a no-op and only RunNow can trigger a sweep. starterHours
// and premiumHours are the configured POLL_TIMES_STARTER/POLL_TIMES_PREMIUM
// UTC hour lists that gate each tier's sweep.
func New(database *db.DB, engine *pollengine.Engine, enabled bool, starterHours, premiumHours []int) *Scheduler {
	return &Scheduler{
		db:           database,
		engine:       engine,
		starterHours: starterHours,
		premiumHours: premiumHours,
		enabled:      enabled,
		cron: cron.New(
			cron.WithChain(
				cron.SkipIfStillRunning(cron.DefaultLogger),
				cron.Recover(cron.DefaultLogger),
			),
		),
	}
}

// Start registers the hourly sweep and starts the cron runner. A no-op if
// scheduled polling is disabled.
func (s *Scheduler) Start() error {
	if !s.enabled {
		slog.Info("scheduled polling disabled, scheduler not starting")
		return nil
	}
	if _, err := s.cron.AddFunc("0 * * * *", func() {
		s.runSweep(context.Background())
	}); err != nil {
		return fmt.Errorf("register hourly sweep: %w", err)
	}
	s.cron.Start()
	slog.Info("scheduler started", "schedule", "hourly")
	return nil
}

// Stop stops the cron runner, waiting up to ctx's deadline for an
// in-flight tick to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown timeout")
	}
}

// RunNow triggers an immediate sweep in the background, single-flight: a
// second call while one is in progress returns an error instead of queuing.
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("a sweep is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		s.runSweep(context.Background())
	}()
	return nil
}

// runSweep loads every pollable user, gates each on whether the current
// UTC hour is one of their tier's poll hours, and runs each gated user's
// active campaigns sequentially.
func (s *Scheduler) runSweep(ctx context.Context) Stats {
	return s.runSweepAtHour(ctx, time.Now().UTC().Hour())
}

// runSweepAtHour is runSweep with the gating hour pinned, so tests can
// exercise the per-tier hour gate without depending on wall-clock time.
func (s *Scheduler) runSweepAtHour(ctx context.Context, hour int) Stats {
	now := time.Now()

	users, err := s.db.PollableUsers(now)
	if err != nil {
		slog.Error("sweep: failed to load pollable users", "error", err)
		return Stats{}
	}

	var stats Stats
	stats.UsersChecked = len(users)

	for _, user := range users {
		campaigns, err := s.db.ActiveCampaignsForUser(user.ID)
		if err != nil {
			slog.Error("sweep: failed to load campaigns", "user_id", user.ID, "error", err)
			continue
		}

		if !plan.PollsAt(user.Tier, hour, s.starterHours, s.premiumHours) {
			stats.CampaignsSkipped += len(campaigns)
			continue
		}

		for _, c := range campaigns {
			if _, err := s.engine.RunPoll(ctx, c.ID, db.TriggerScheduled, nil); err != nil {
				slog.Error("sweep: poll failed", "campaign_id", c.ID, "error", err)
				stats.CampaignsFailed++
				continue
			}
			stats.CampaignsPolled++
		}
	}

	slog.Info("sweep complete", "users_checked", stats.UsersChecked,
		"campaigns_polled", stats.CampaignsPolled, "campaigns_skipped", stats.CampaignsSkipped,
		"campaigns_failed", stats.CampaignsFailed)
	return stats
}
