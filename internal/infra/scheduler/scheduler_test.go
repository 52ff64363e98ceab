package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"title_rotation_bot/internal/domain/guild"
	"title_rotation_bot/internal/domain/rotation"
	idb "title_rotation_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigs struct {
	mu      sync.Mutex
	configs map[string]*guild.RotationConfig
	getErr  error
	listErr error
}

func newFakeConfigs() *fakeConfigs {
	return &fakeConfigs{configs: make(map[string]*guild.RotationConfig)}
}

func (f *fakeConfigs) Get(_ context.Context, guildID string) (*guild.RotationConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	cfg, ok := f.configs[guildID]
	if !ok {
		return nil, idb.ErrGuildConfigNotFound
	}
	cp := *cfg
	return &cp, nil
}

func (f *fakeConfigs) Upsert(_ context.Context, cfg *guild.RotationConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *cfg
	f.configs[cfg.GuildID] = &cp
	return nil
}

func (f *fakeConfigs) ListGuildIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := make([]string, 0, len(f.configs))
	for id := range f.configs {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeRoles struct {
	exists bool
	err    error
}

func (f *fakeRoles) RoleExists(_, _ string) (bool, error) { return f.exists, f.err }

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) Rotate(_ context.Context, guildID, _ string) (*rotation.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, guildID)
	return &rotation.Outcome{GuildID: guildID, Result: rotation.ResultSuccess}, nil
}

func newSchedulerFixture() (*JobScheduler, *GuildJobRegistry, *fakeConfigs, *fakeRoles, *fakeRunner) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	registry := NewGuildJobRegistry(l)
	configs := newFakeConfigs()
	roles := &fakeRoles{exists: true}
	runner := &fakeRunner{}
	s := NewJobScheduler(registry, configs, roles, runner, logrus.NewEntry(l))
	return s, registry, configs, roles, runner
}

func eligibleConfig(guildID string) *guild.RotationConfig {
	return &guild.RotationConfig{
		GuildID:         guildID,
		RotationEnabled: true,
		TitleRoleID:     "role-1",
		CronSchedule:    "0 9 * * 1",
	}
}

func TestScheduleGuild_EligibleInstallsJob(t *testing.T) {
	s, registry, configs, _, _ := newSchedulerFixture()
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g1")))

	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))
	assert.True(t, registry.Has("g1"))
}

func TestScheduleGuild_IneligibleNeverInstalls(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*guild.RotationConfig)
	}{
		{"disabled", func(c *guild.RotationConfig) { c.RotationEnabled = false }},
		{"missing role", func(c *guild.RotationConfig) { c.TitleRoleID = "" }},
		{"missing schedule", func(c *guild.RotationConfig) { c.CronSchedule = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, registry, configs, _, _ := newSchedulerFixture()
			cfg := eligibleConfig("g1")
			tt.mutate(cfg)
			require.NoError(t, configs.Upsert(context.Background(), cfg))

			require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))
			assert.False(t, registry.Has("g1"), "no job for ineligible config")
		})
	}
}

func TestScheduleGuild_RepeatCallsKeepSingleHandle(t *testing.T) {
	s, registry, configs, _, _ := newSchedulerFixture()
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g1")))

	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))
	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))

	assert.Equal(t, 1, registry.Len(), "never two concurrent handles for one guild")
}

func TestScheduleGuild_DisablingCancelsExistingJob(t *testing.T) {
	s, registry, configs, _, _ := newSchedulerFixture()
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g1")))
	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))
	require.True(t, registry.Has("g1"))

	cfg := eligibleConfig("g1")
	cfg.RotationEnabled = false
	require.NoError(t, configs.Upsert(context.Background(), cfg))

	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))
	assert.False(t, registry.Has("g1"))
}

func TestScheduleGuild_ConfigErrorKeepsPriorJob(t *testing.T) {
	s, registry, configs, _, _ := newSchedulerFixture()
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g1")))
	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))

	configs.getErr = errors.New("store unavailable")
	err := s.ScheduleGuild(context.Background(), "g1")
	require.Error(t, err)
	assert.True(t, registry.Has("g1"), "prior job untouched on config failure")
}

func TestScheduleGuild_MissingConfigCancels(t *testing.T) {
	s, registry, configs, _, _ := newSchedulerFixture()
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g1")))
	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))

	configs.mu.Lock()
	delete(configs.configs, "g1")
	configs.mu.Unlock()

	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))
	assert.False(t, registry.Has("g1"))
}

func TestScheduleGuild_DeletedRoleCancels(t *testing.T) {
	s, registry, configs, roles, _ := newSchedulerFixture()
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g1")))
	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))

	roles.exists = false
	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))
	assert.False(t, registry.Has("g1"))
}

func TestScheduleGuild_RoleLookupErrorKeepsPriorJob(t *testing.T) {
	s, registry, configs, roles, _ := newSchedulerFixture()
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g1")))
	require.NoError(t, s.ScheduleGuild(context.Background(), "g1"))

	roles.err = errors.New("gateway timeout")
	err := s.ScheduleGuild(context.Background(), "g1")
	require.Error(t, err)
	assert.True(t, registry.Has("g1"))
}

func TestScheduleGuild_InvalidScheduleNotInstalled(t *testing.T) {
	s, registry, configs, _, _ := newSchedulerFixture()
	cfg := eligibleConfig("g1")
	cfg.CronSchedule = "every other blue moon"
	require.NoError(t, configs.Upsert(context.Background(), cfg))

	err := s.ScheduleGuild(context.Background(), "g1")
	require.Error(t, err)
	assert.False(t, registry.Has("g1"))
}

func TestScheduleAll_OneGuildFailureDoesNotStopOthers(t *testing.T) {
	s, registry, configs, _, _ := newSchedulerFixture()
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g1")))
	bad := eligibleConfig("g2")
	bad.CronSchedule = "not cron"
	require.NoError(t, configs.Upsert(context.Background(), bad))
	require.NoError(t, configs.Upsert(context.Background(), eligibleConfig("g3")))

	require.NoError(t, s.ScheduleAll(context.Background()))

	assert.True(t, registry.Has("g1"))
	assert.False(t, registry.Has("g2"))
	assert.True(t, registry.Has("g3"))
	assert.Equal(t, 2, registry.Len())
}
