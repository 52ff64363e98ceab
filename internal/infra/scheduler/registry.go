package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// GuildJobRegistry is a keyed timer table: at most one recurring cron
// entry per guild, all running on a single shared cron engine. The
// registry knows nothing about rotation semantics; jobs are opaque
// callbacks.
type GuildJobRegistry struct {
	mu      sync.Mutex
	engine  *cron.Cron
	entries map[string]cron.EntryID
}

func NewGuildJobRegistry(logger *logrus.Logger) *GuildJobRegistry {
	return &GuildJobRegistry{
		engine: cron.New(
			cron.WithLocation(time.Local), // Use server's local time for cron
			cron.WithChain(cron.Recover(cron.PrintfLogger(logger))),
		),
		entries: make(map[string]cron.EntryID),
	}
}

// Install registers a recurring job for the guild, replacing any
// existing entry. The expression is validated before the old entry is
// touched, so an invalid expression leaves the prior job running.
func (r *GuildJobRegistry) Install(guildID, spec string, job func()) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[guildID]; ok {
		r.engine.Remove(old)
		delete(r.entries, guildID)
	}

	id, err := r.engine.AddFunc(spec, job)
	if err != nil {
		// Unreachable after ParseStandard succeeded, but never leave a
		// stale map entry behind.
		return fmt.Errorf("could not add cron entry for guild %s: %w", guildID, err)
	}
	r.entries[guildID] = id
	return nil
}

// Cancel removes the guild's entry. Removing guarantees no further
// fires; an invocation already in progress runs to completion. Calling
// Cancel for a guild with no entry is a no-op.
func (r *GuildJobRegistry) Cancel(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.entries[guildID]; ok {
		r.engine.Remove(id)
		delete(r.entries, guildID)
	}
}

// Has reports whether the guild currently has an active entry.
func (r *GuildJobRegistry) Has(guildID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[guildID]
	return ok
}

// Len returns the number of active entries.
func (r *GuildJobRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// NextFire returns the next scheduled fire time for the guild, zero if
// the guild has no entry or the engine is not running.
func (r *GuildJobRegistry) NextFire(guildID string) time.Time {
	r.mu.Lock()
	id, ok := r.entries[guildID]
	r.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return r.engine.Entry(id).Next
}

// Start launches the cron engine. Entries installed before Start fire
// from their next scheduled instant.
func (r *GuildJobRegistry) Start() {
	r.engine.Start()
}

// Stop halts the engine and waits for in-flight jobs to finish.
func (r *GuildJobRegistry) Stop() {
	ctx := r.engine.Stop()
	<-ctx.Done()
}
