package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"title_rotation_bot/internal/domain/guild"
	"title_rotation_bot/internal/domain/rotation"
	idb "title_rotation_bot/internal/infra/database" // For ErrGuildConfigNotFound

	"github.com/sirupsen/logrus"
)

// rotateTimeout bounds one cycle's store and gateway calls. Rotation
// cadences are daily or weekly; a cycle itself finishes in seconds.
const rotateTimeout = 2 * time.Minute

// RotationRunner executes one rotation cycle for one guild.
type RotationRunner interface {
	Rotate(ctx context.Context, guildID, roleID string) (*rotation.Outcome, error)
}

// RoleResolver checks that a configured title role still exists.
type RoleResolver interface {
	RoleExists(guildID, roleID string) (bool, error)
}

// JobScheduler keeps each guild's registry entry in sync with its
// persisted rotation settings. One guild's failure never disturbs
// another guild's entry.
type JobScheduler struct {
	registry *GuildJobRegistry
	configs  guild.ConfigRepository
	roles    RoleResolver
	rotation RotationRunner
	logger   *logrus.Entry
}

func NewJobScheduler(
	registry *GuildJobRegistry,
	configs guild.ConfigRepository,
	roles RoleResolver,
	runner RotationRunner,
	logger *logrus.Entry,
) *JobScheduler {
	return &JobScheduler{
		registry: registry,
		configs:  configs,
		roles:    roles,
		rotation: runner,
		logger:   logger,
	}
}

// ScheduleGuild reads the guild's settings and installs, replaces, or
// cancels its recurring job accordingly. Safe to call on every settings
// change; each call fully supersedes the previous schedule. A config
// read failure leaves the prior job (if any) untouched.
func (s *JobScheduler) ScheduleGuild(ctx context.Context, guildID string) error {
	log := s.logger.WithField("guild_id", guildID)

	cfg, err := s.configs.Get(ctx, guildID)
	if err != nil {
		if errors.Is(err, idb.ErrGuildConfigNotFound) {
			s.registry.Cancel(guildID)
			return nil
		}
		log.WithError(err).Error("Could not load guild settings; keeping existing schedule")
		return fmt.Errorf("load settings for guild %s: %w", guildID, err)
	}

	if !cfg.Eligible() {
		s.registry.Cancel(guildID)
		log.Debug("Rotation not eligible; schedule cancelled")
		return nil
	}

	ok, err := s.roles.RoleExists(guildID, cfg.TitleRoleID)
	if err != nil {
		log.WithError(err).Error("Could not resolve title role; keeping existing schedule")
		return fmt.Errorf("resolve title role for guild %s: %w", guildID, err)
	}
	if !ok {
		s.registry.Cancel(guildID)
		log.WithField("role_id", cfg.TitleRoleID).Warn("Configured title role no longer exists; schedule cancelled")
		return nil
	}

	roleID := cfg.TitleRoleID
	err = s.registry.Install(guildID, cfg.CronSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), rotateTimeout)
		defer cancel()
		if _, err := s.rotation.Rotate(ctx, guildID, roleID); err != nil {
			log.WithError(err).Error("Rotation cycle failed")
		}
	})
	if err != nil {
		log.WithError(err).WithField("cron_schedule", cfg.CronSchedule).Warn("Invalid schedule; job not installed")
		return err
	}

	log.WithFields(logrus.Fields{
		"cron_schedule": cfg.CronSchedule,
		"role_id":       roleID,
	}).Info("Rotation job scheduled")
	return nil
}

// ScheduleAll recomputes the schedule for every guild with stored
// settings. Used on process start: next fire times are derived from the
// expressions, never persisted.
func (s *JobScheduler) ScheduleAll(ctx context.Context) error {
	ids, err := s.configs.ListGuildIDs(ctx)
	if err != nil {
		return fmt.Errorf("list configured guilds: %w", err)
	}

	for _, id := range ids {
		if err := s.ScheduleGuild(ctx, id); err != nil {
			// Logged inside ScheduleGuild; keep going for the other guilds.
			continue
		}
	}
	s.logger.WithFields(logrus.Fields{
		"configured": len(ids),
		"scheduled":  s.registry.Len(),
	}).Info("Startup scheduling complete")
	return nil
}

// Start launches the underlying cron engine.
func (s *JobScheduler) Start() {
	s.registry.Start()
	s.logger.Info("Rotation scheduler started")
}

// Stop halts the engine, waiting for in-flight cycles.
func (s *JobScheduler) Stop() {
	s.registry.Stop()
	s.logger.Info("Rotation scheduler gracefully stopped")
}

// Has reports whether a guild currently has an installed job.
func (s *JobScheduler) Has(guildID string) bool {
	return s.registry.Has(guildID)
}
