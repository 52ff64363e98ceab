package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_SetScheduleValidatesExpression(t *testing.T) {
	configs := newFakeConfigRepo()
	resched := newFakeRescheduler()
	svc := NewSettingsService(configs, resched)

	_, err := svc.SetSchedule(context.Background(), "g1", "not a cron")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
	assert.Zero(t, configs.upserts, "invalid expression is never persisted")
	assert.Empty(t, resched.calls)
}

func TestSettings_MutationPersistsAndReschedules(t *testing.T) {
	configs := newFakeConfigRepo()
	resched := newFakeRescheduler()
	svc := NewSettingsService(configs, resched)

	cfg, err := svc.SetSchedule(context.Background(), "g1", "0 9 * * 1")
	require.NoError(t, err)
	assert.Equal(t, "0 9 * * 1", cfg.CronSchedule)

	cfg, err = svc.SetRole(context.Background(), "g1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", cfg.TitleRoleID)
	assert.Equal(t, "0 9 * * 1", cfg.CronSchedule, "earlier settings survive")

	cfg, err = svc.SetEnabled(context.Background(), "g1", true)
	require.NoError(t, err)
	assert.True(t, cfg.Eligible())

	assert.Equal(t, []string{"g1", "g1", "g1"}, resched.calls,
		"every persisted change supersedes the schedule")
}

func TestSettings_StatusForUnknownGuild(t *testing.T) {
	svc := NewSettingsService(newFakeConfigRepo(), newFakeRescheduler())

	cfg, scheduled, err := svc.Status(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, cfg.RotationEnabled)
	assert.False(t, scheduled)
	assert.Equal(t, "g1", cfg.GuildID)
}
