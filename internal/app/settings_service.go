package app

import (
	"context"
	"errors"
	"fmt"

	"title_rotation_bot/internal/domain/guild"
	idb "title_rotation_bot/internal/infra/database"

	"github.com/robfig/cron/v3"
)

// Custom application-level errors for settings mutations
var ErrInvalidSchedule = errors.New("invalid cron schedule")

// Rescheduler is the slice of the job scheduler the settings service
// needs: every persisted change supersedes the guild's schedule.
type Rescheduler interface {
	ScheduleGuild(ctx context.Context, guildID string) error
	Has(guildID string) bool
}

// SettingsService applies guild rotation settings changes and keeps the
// scheduled job in sync with them.
type SettingsService struct {
	configs   guild.ConfigRepository
	scheduler Rescheduler
}

func NewSettingsService(configs guild.ConfigRepository, scheduler Rescheduler) *SettingsService {
	return &SettingsService{configs: configs, scheduler: scheduler}
}

// getOrDefault loads the guild's settings, falling back to an empty,
// disabled config for guilds seen for the first time.
func (s *SettingsService) getOrDefault(ctx context.Context, guildID string) (*guild.RotationConfig, error) {
	cfg, err := s.configs.Get(ctx, guildID)
	if err != nil {
		if errors.Is(err, idb.ErrGuildConfigNotFound) {
			return &guild.RotationConfig{GuildID: guildID}, nil
		}
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return cfg, nil
}

func (s *SettingsService) apply(ctx context.Context, guildID string, mutate func(*guild.RotationConfig)) (*guild.RotationConfig, error) {
	cfg, err := s.getOrDefault(ctx, guildID)
	if err != nil {
		return nil, err
	}
	mutate(cfg)
	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	if err := s.scheduler.ScheduleGuild(ctx, guildID); err != nil {
		return nil, fmt.Errorf("reschedule guild: %w", err)
	}
	return cfg, nil
}

func (s *SettingsService) SetEnabled(ctx context.Context, guildID string, enabled bool) (*guild.RotationConfig, error) {
	return s.apply(ctx, guildID, func(c *guild.RotationConfig) { c.RotationEnabled = enabled })
}

func (s *SettingsService) SetRole(ctx context.Context, guildID, roleID string) (*guild.RotationConfig, error) {
	return s.apply(ctx, guildID, func(c *guild.RotationConfig) { c.TitleRoleID = roleID })
}

// SetSchedule validates the expression with the same parser the
// registry uses before persisting it.
func (s *SettingsService) SetSchedule(ctx context.Context, guildID, expr string) (*guild.RotationConfig, error) {
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	return s.apply(ctx, guildID, func(c *guild.RotationConfig) { c.CronSchedule = expr })
}

func (s *SettingsService) SetChannel(ctx context.Context, guildID, channelID string) (*guild.RotationConfig, error) {
	return s.apply(ctx, guildID, func(c *guild.RotationConfig) { c.NotifyChannelID = channelID })
}

func (s *SettingsService) SetMessage(ctx context.Context, guildID, template string) (*guild.RotationConfig, error) {
	return s.apply(ctx, guildID, func(c *guild.RotationConfig) { c.GrantMessage = template })
}

// Status returns the stored settings and whether a job is currently
// installed for the guild.
func (s *SettingsService) Status(ctx context.Context, guildID string) (*guild.RotationConfig, bool, error) {
	cfg, err := s.getOrDefault(ctx, guildID)
	if err != nil {
		return nil, false, err
	}
	return cfg, s.scheduler.Has(guildID), nil
}
