package app

import (
	"context"
	"io"
	"sort"
	"sync"

	domainDiscord "title_rotation_bot/internal/domain/discord"
	"title_rotation_bot/internal/domain/guild"
	"title_rotation_bot/internal/domain/leaderboard"
	idb "title_rotation_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeConfigRepo struct {
	mu        sync.Mutex
	configs   map[string]*guild.RotationConfig
	getErr    error
	upsertErr error
	upserts   int
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{configs: make(map[string]*guild.RotationConfig)}
}

func (f *fakeConfigRepo) Get(_ context.Context, guildID string) (*guild.RotationConfig, error) {
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

func (f *fakeConfigRepo) Upsert(_ context.Context, cfg *guild.RotationConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	cp := *cfg
	f.configs[cfg.GuildID] = &cp
	f.upserts++
	return nil
}

func (f *fakeConfigRepo) ListGuildIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.configs))
	for id := range f.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

type fakeBoard struct {
	mu         sync.Mutex
	entries    []leaderboard.Entry
	topErr     error
	clearErr   error
	clearCalls []string
	addCalls   int
}

func (f *fakeBoard) Top(_ context.Context, guildID string, limit int) ([]leaderboard.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.topErr != nil {
		return nil, f.topErr
	}
	out := make([]leaderboard.Entry, 0, limit)
	for _, e := range f.entries {
		if e.GuildID != guildID {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeBoard) Score(_ context.Context, guildID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.GuildID == guildID && e.UserID == userID {
			return e.Points, nil
		}
	}
	return 0, nil
}

func (f *fakeBoard) AddPoints(_ context.Context, guildID, userID string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	for i, e := range f.entries {
		if e.GuildID == guildID && e.UserID == userID {
			f.entries[i].Points += delta
			return nil
		}
	}
	f.entries = append(f.entries, leaderboard.Entry{GuildID: guildID, UserID: userID, Points: delta})
	return nil
}

func (f *fakeBoard) Clear(_ context.Context, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.clearCalls = append(f.clearCalls, guildID)
	return nil
}

type sentMessage struct {
	channelID string
	text      string
}

// fakeGateway records every call and injects failures per user.
type fakeGateway struct {
	mu          sync.Mutex
	members     map[string]bool
	holders     []domainDiscord.Member
	roles       map[string]bool
	memberErr   error
	holdersErr  error
	removeErrs  map[string]error
	addErr      error
	sendErr     error
	removeCalls []string
	addCalls    []string
	sends       []sentMessage
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		members:    make(map[string]bool),
		roles:      make(map[string]bool),
		removeErrs: make(map[string]error),
	}
}

func (f *fakeGateway) Member(_, userID string) (*domainDiscord.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	if !f.members[userID] {
		return nil, domainDiscord.ErrMemberNotFound
	}
	return &domainDiscord.Member{UserID: userID}, nil
}

func (f *fakeGateway) RoleHolders(_, _ string) ([]domainDiscord.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.holdersErr != nil {
		return nil, f.holdersErr
	}
	return append([]domainDiscord.Member(nil), f.holders...), nil
}

func (f *fakeGateway) RoleExists(_, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[roleID], nil
}

func (f *fakeGateway) AddRole(_, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls = append(f.addCalls, userID)
	return f.addErr
}

func (f *fakeGateway) RemoveRole(_, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, userID)
	return f.removeErrs[userID]
}

func (f *fakeGateway) SendMessage(channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sends = append(f.sends, sentMessage{channelID: channelID, text: text})
	return nil
}

type fakeRescheduler struct {
	mu        sync.Mutex
	calls     []string
	installed map[string]bool
	err       error
}

func newFakeRescheduler() *fakeRescheduler {
	return &fakeRescheduler{installed: make(map[string]bool)}
}

func (f *fakeRescheduler) ScheduleGuild(_ context.Context, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, guildID)
	f.installed[guildID] = true
	return nil
}

func (f *fakeRescheduler) Has(guildID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed[guildID]
}
