// internal/app/rotation_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domainDiscord "title_rotation_bot/internal/domain/discord"
	"title_rotation_bot/internal/domain/guild"
	"title_rotation_bot/internal/domain/leaderboard"
	"title_rotation_bot/internal/domain/rotation"
	idb "title_rotation_bot/internal/infra/database" // For ErrGuildConfigNotFound

	"github.com/sirupsen/logrus"
)

// diagnosticNotice is posted at most once per cycle, on the first strip
// failure or on a grant failure.
const diagnosticNotice = "I couldn't update the title role. Make sure my highest role sits above it and that I have the Manage Roles permission."

// RotationService executes rotation cycles: strip the title role from
// its current holders, grant it to the top scorer, clear the guild's
// points, announce. Partial failures are captured in the Outcome rather
// than propagated, so a failing guild never disturbs the scheduler.
type RotationService struct {
	configs guild.ConfigRepository
	board   leaderboard.Repository
	gateway domainDiscord.Gateway
	logger  *logrus.Entry
}

func NewRotationService(
	configs guild.ConfigRepository,
	board leaderboard.Repository,
	gateway domainDiscord.Gateway,
	logger *logrus.Entry,
) *RotationService {
	return &RotationService{
		configs: configs,
		board:   board,
		gateway: gateway,
		logger:  logger,
	}
}

type stripResult struct {
	userID string
	err    error
}

// Rotate runs exactly one rotation cycle for one guild. The returned
// error covers only store/gateway lookups that prevented the cycle from
// running at all; role-mutation failures land in the Outcome. Points
// are cleared if and only if the grant succeeded.
func (s *RotationService) Rotate(ctx context.Context, guildID, roleID string) (*rotation.Outcome, error) {
	log := s.logger.WithField("guild_id", guildID)
	out := &rotation.Outcome{GuildID: guildID}

	// Announcement channel and template are optional; their absence only
	// suppresses messages, never the cycle itself.
	var channelID, template string
	cfg, err := s.configs.Get(ctx, guildID)
	switch {
	case err == nil:
		channelID = cfg.NotifyChannelID
		template = cfg.GrantMessage
	case errors.Is(err, idb.ErrGuildConfigNotFound):
		// Job installed, settings since deleted. Rotate without notifications.
	default:
		log.WithError(err).Warn("Could not load guild settings; rotating without notifications")
	}

	entries, err := s.board.Top(ctx, guildID, 1)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard for guild %s: %w", guildID, err)
	}
	if len(entries) == 0 {
		out.Result = rotation.ResultNoWinner
		log.Debug("Leaderboard empty; nothing to rotate")
		s.emit(log, out)
		return out, nil
	}

	candidate := entries[0].UserID
	if _, err := s.gateway.Member(guildID, candidate); err != nil {
		if errors.Is(err, domainDiscord.ErrMemberNotFound) {
			// Points are deliberately kept so the next cycle can crown
			// whoever is on top then.
			out.Result = rotation.ResultNoWinner
			log.WithField("user_id", candidate).Info("Top scorer is no longer a guild member; cycle skipped")
			s.emit(log, out)
			return out, nil
		}
		return nil, fmt.Errorf("resolve member %s in guild %s: %w", candidate, guildID, err)
	}
	out.WinnerID = candidate

	holders, err := s.gateway.RoleHolders(guildID, roleID)
	if err != nil {
		return nil, fmt.Errorf("list title role holders for guild %s: %w", guildID, err)
	}

	// Strip phase: fan out over every current holder, collect every
	// result, and only then decide. A failure for one member never stops
	// the attempts on the others.
	results := make([]stripResult, len(holders))
	var wg sync.WaitGroup
	for i, m := range holders {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			results[i] = stripResult{userID: userID, err: s.gateway.RemoveRole(guildID, userID, roleID)}
		}(i, m.UserID)
	}
	wg.Wait()

	for _, res := range results {
		if res.err != nil {
			out.Failures = append(out.Failures, rotation.Failure{
				UserID: res.userID,
				Phase:  rotation.PhaseStrip,
				Cause:  res.err,
			})
		} else {
			out.Stripped = append(out.Stripped, res.userID)
		}
	}

	if len(out.Failures) > 0 {
		// The title may now be held by the members that failed to strip.
		// Accepted degraded state: the next cycle retries them.
		out.Result = rotation.ResultStripFailure
		s.sendDiagnostic(log, channelID)
		s.emit(log, out)
		return out, nil
	}

	if err := s.gateway.AddRole(guildID, candidate, roleID); err != nil {
		out.Failures = append(out.Failures, rotation.Failure{
			UserID: candidate,
			Phase:  rotation.PhaseGrant,
			Cause:  err,
		})
		out.Result = rotation.ResultGrantFailure
		s.sendDiagnostic(log, channelID)
		s.emit(log, out)
		return out, nil
	}

	out.Result = rotation.ResultSuccess

	if err := s.board.Clear(ctx, guildID); err != nil {
		log.WithError(err).Error("Points clear failed after grant; scores carry into the next cycle")
	}

	if template != "" && channelID != "" {
		text := RenderGrantMessage(template, UserMention(candidate), RoleMention(roleID))
		if err := s.gateway.SendMessage(channelID, text); err != nil {
			log.WithError(err).Warn("Grant announcement failed")
		}
	}

	log.WithFields(logrus.Fields{
		"winner_id": candidate,
		"stripped":  len(out.Stripped),
	}).Info("Title rotated")
	s.emit(log, out)
	return out, nil
}

// sendDiagnostic posts the permission/hierarchy hint to the guild's
// channel, at most once per cycle. Send failures are swallowed.
func (s *RotationService) sendDiagnostic(log *logrus.Entry, channelID string) {
	if channelID == "" {
		return
	}
	if err := s.gateway.SendMessage(channelID, diagnosticNotice); err != nil {
		log.WithError(err).Warn("Diagnostic notice failed to send")
	}
}

// emit writes the one structured operator event per completed or
// aborted cycle.
func (s *RotationService) emit(log *logrus.Entry, out *rotation.Outcome) {
	log.WithFields(logrus.Fields{
		"outcome":       out.Result,
		"winner_id":     out.WinnerID,
		"failure_count": out.FailureCount(),
	}).Info("Rotation cycle finished")
}
