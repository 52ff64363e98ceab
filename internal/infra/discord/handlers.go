package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"title_rotation_bot/internal/app"
	domainDiscord "title_rotation_bot/internal/domain/discord"
	"title_rotation_bot/internal/domain/rotation"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const commandTimeout = 15 * time.Second

// Scheduler is the slice of the job scheduler the handlers drive: a
// guild becoming ready recomputes its schedule.
type Scheduler interface {
	ScheduleGuild(ctx context.Context, guildID string) error
}

// Handler wires Discord events to the application services: settings
// commands, leaderboard display, points accrual, and guild-ready
// scheduling.
type Handler struct {
	settings  *app.SettingsService
	points    *app.PointsService
	rotation  *app.RotationService
	scheduler Scheduler
	gateway   domainDiscord.Gateway
	prefix    string
	logger    *logrus.Entry
}

func NewHandler(
	settings *app.SettingsService,
	points *app.PointsService,
	rotationSvc *app.RotationService,
	scheduler Scheduler,
	gateway domainDiscord.Gateway,
	prefix string,
	logger *logrus.Entry,
) *Handler {
	return &Handler{
		settings:  settings,
		points:    points,
		rotation:  rotationSvc,
		scheduler: scheduler,
		gateway:   gateway,
		prefix:    prefix,
		logger:    logger,
	}
}

// Register attaches the event handlers to the session.
func (h *Handler) Register(s *discordgo.Session) {
	s.AddHandler(h.onGuildCreate)
	s.AddHandler(h.onMessageCreate)
}

func (h *Handler) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := h.scheduler.ScheduleGuild(ctx, g.ID); err != nil {
		h.logger.WithError(err).WithField("guild_id", g.ID).Error("Failed to schedule guild on ready")
	}
}

func (h *Handler) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if !strings.HasPrefix(m.Content, h.prefix) {
		h.points.HandleMessage(ctx, m.GuildID, m.Author.ID)
		return
	}

	raw := strings.TrimSpace(strings.TrimPrefix(m.Content, h.prefix))
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "title":
		h.handleTitle(ctx, s, m, fields[1:], raw)
	case "points":
		h.handlePoints(ctx, s, m, fields[1:])
	}
}

func (h *Handler) handleTitle(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string, raw string) {
	log := h.logger.WithFields(logrus.Fields{
		"handler":   "title",
		"guild_id":  m.GuildID,
		"sender_id": m.Author.ID,
	})

	if len(args) == 0 {
		h.reply(s, m, "Usage: title enable|disable|role|schedule|channel|message|status|rotate")
		return
	}

	// status is read-only; everything else needs Manage Server.
	if args[0] != "status" && !h.canManage(s, m) {
		log.Warn("Unauthorized settings command")
		h.reply(s, m, "You need the Manage Server permission to change rotation settings.")
		return
	}

	switch args[0] {
	case "enable":
		cfg, err := h.settings.SetEnabled(ctx, m.GuildID, true)
		if err != nil {
			log.WithError(err).Error("Failed to enable rotation")
			h.reply(s, m, "Could not update the settings, try again later.")
			return
		}
		if !cfg.Eligible() {
			h.reply(s, m, "Rotation enabled. Set a title role and a schedule to start it.")
			return
		}
		h.reply(s, m, "Rotation enabled.")

	case "disable":
		if _, err := h.settings.SetEnabled(ctx, m.GuildID, false); err != nil {
			log.WithError(err).Error("Failed to disable rotation")
			h.reply(s, m, "Could not update the settings, try again later.")
			return
		}
		h.reply(s, m, "Rotation disabled.")

	case "role":
		if len(args) < 2 {
			h.reply(s, m, "Usage: title role <@role or role ID>")
			return
		}
		roleID := parseRoleRef(args[1])
		ok, err := h.gateway.RoleExists(m.GuildID, roleID)
		if err != nil {
			log.WithError(err).Error("Failed to resolve role")
			h.reply(s, m, "Could not look up that role, try again later.")
			return
		}
		if !ok {
			h.reply(s, m, "That role doesn't exist in this server.")
			return
		}
		if _, err := h.settings.SetRole(ctx, m.GuildID, roleID); err != nil {
			log.WithError(err).Error("Failed to set title role")
			h.reply(s, m, "Could not update the settings, try again later.")
			return
		}
		h.reply(s, m, fmt.Sprintf("Title role set to %s.", app.RoleMention(roleID)))

	case "schedule":
		if len(args) < 2 {
			h.reply(s, m, "Usage: title schedule <cron expression>, e.g. `0 9 * * 1` for Mondays at 09:00")
			return
		}
		expr := strings.Join(args[1:], " ")
		if _, err := h.settings.SetSchedule(ctx, m.GuildID, expr); err != nil {
			if errors.Is(err, app.ErrInvalidSchedule) {
				h.reply(s, m, fmt.Sprintf("`%s` is not a valid cron expression.", expr))
				return
			}
			log.WithError(err).Error("Failed to set schedule")
			h.reply(s, m, "Could not update the settings, try again later.")
			return
		}
		h.reply(s, m, fmt.Sprintf("Rotation schedule set to `%s`.", expr))

	case "channel":
		if len(args) < 2 {
			h.reply(s, m, "Usage: title channel <#channel or channel ID>")
			return
		}
		channelID := parseChannelRef(args[1])
		if _, err := h.settings.SetChannel(ctx, m.GuildID, channelID); err != nil {
			log.WithError(err).Error("Failed to set channel")
			h.reply(s, m, "Could not update the settings, try again later.")
			return
		}
		h.reply(s, m, fmt.Sprintf("Announcements will go to <#%s>.", channelID))

	case "message":
		// Take the template verbatim from the raw text so inner spacing
		// survives the argument split.
		idx := strings.Index(raw, "message")
		rest := strings.TrimSpace(raw[idx+len("message"):])
		if rest == "" {
			h.reply(s, m, "Usage: title message <template>. Placeholders: {user}, {role}.")
			return
		}
		if _, err := h.settings.SetMessage(ctx, m.GuildID, rest); err != nil {
			log.WithError(err).Error("Failed to set grant message")
			h.reply(s, m, "Could not update the settings, try again later.")
			return
		}
		h.reply(s, m, "Grant message template saved.")

	case "status":
		cfg, scheduled, err := h.settings.Status(ctx, m.GuildID)
		if err != nil {
			log.WithError(err).Error("Failed to load status")
			h.reply(s, m, "Could not load the settings, try again later.")
			return
		}
		h.reply(s, m, formatStatus(cfg.RotationEnabled, scheduled, cfg.TitleRoleID, cfg.CronSchedule, cfg.NotifyChannelID, cfg.GrantMessage))

	case "rotate":
		h.handleManualRotate(ctx, s, m, log)

	default:
		h.reply(s, m, "Unknown subcommand. Usage: title enable|disable|role|schedule|channel|message|status|rotate")
	}
}

// handleManualRotate runs one cycle immediately, outside the schedule.
func (h *Handler) handleManualRotate(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, log *logrus.Entry) {
	cfg, _, err := h.settings.Status(ctx, m.GuildID)
	if err != nil {
		log.WithError(err).Error("Failed to load settings for manual rotation")
		h.reply(s, m, "Could not load the settings, try again later.")
		return
	}
	if cfg.TitleRoleID == "" {
		h.reply(s, m, "Set a title role first: title role <@role>")
		return
	}

	out, err := h.rotation.Rotate(ctx, m.GuildID, cfg.TitleRoleID)
	if err != nil {
		log.WithError(err).Error("Manual rotation failed")
		h.reply(s, m, "The rotation could not run, try again later.")
		return
	}

	switch out.Result {
	case rotation.ResultSuccess:
		h.reply(s, m, fmt.Sprintf("Title rotated to %s.", app.UserMention(out.WinnerID)))
	case rotation.ResultNoWinner:
		h.reply(s, m, "No eligible winner right now; nothing changed.")
	default:
		h.reply(s, m, fmt.Sprintf("Rotation aborted (%d role update(s) failed). Check my role position and permissions.", out.FailureCount()))
	}
}

func (h *Handler) handlePoints(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	log := h.logger.WithFields(logrus.Fields{
		"handler":   "points",
		"guild_id":  m.GuildID,
		"sender_id": m.Author.ID,
	})

	sub := "top"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "top":
		entries, err := h.points.Top(ctx, m.GuildID)
		if err != nil {
			log.WithError(err).Error("Failed to load leaderboard")
			h.reply(s, m, "Could not load the leaderboard, try again later.")
			return
		}
		if len(entries) == 0 {
			h.reply(s, m, "The leaderboard is empty.")
			return
		}
		var b strings.Builder
		b.WriteString("**Leaderboard**\n")
		for i, e := range entries {
			fmt.Fprintf(&b, "%d. %s — %d pts\n", i+1, app.UserMention(e.UserID), e.Points)
		}
		h.reply(s, m, b.String())

	case "me":
		score, err := h.points.Score(ctx, m.GuildID, m.Author.ID)
		if err != nil {
			log.WithError(err).Error("Failed to load score")
			h.reply(s, m, "Could not load your score, try again later.")
			return
		}
		h.reply(s, m, fmt.Sprintf("You have %d point(s) this cycle.", score))

	default:
		h.reply(s, m, "Usage: points top|me")
	}
}

// canManage reports whether the sender holds Manage Server in the
// channel the command was issued from.
func (h *Handler) canManage(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		h.logger.WithError(err).WithField("sender_id", m.Author.ID).Warn("Permission lookup failed")
		return false
	}
	return perms&discordgo.PermissionManageServer != 0
}

func (h *Handler) reply(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSend(m.ChannelID, text); err != nil {
		h.logger.WithError(err).WithField("channel_id", m.ChannelID).Warn("Reply failed")
	}
}

func formatStatus(enabled, scheduled bool, roleID, schedule, channelID, template string) string {
	var b strings.Builder
	b.WriteString("**Title rotation settings**\n")
	fmt.Fprintf(&b, "Enabled: %t\n", enabled)
	fmt.Fprintf(&b, "Job installed: %t\n", scheduled)
	if roleID != "" {
		fmt.Fprintf(&b, "Title role: %s\n", app.RoleMention(roleID))
	} else {
		b.WriteString("Title role: not set\n")
	}
	if schedule != "" {
		fmt.Fprintf(&b, "Schedule: `%s`\n", schedule)
	} else {
		b.WriteString("Schedule: not set\n")
	}
	if channelID != "" {
		fmt.Fprintf(&b, "Announcement channel: <#%s>\n", channelID)
	} else {
		b.WriteString("Announcement channel: not set\n")
	}
	if template != "" {
		fmt.Fprintf(&b, "Grant message: %s\n", template)
	}
	return b.String()
}

// parseRoleRef accepts either a raw role ID or a <@&id> mention.
func parseRoleRef(arg string) string {
	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<@&"), ">")
	return strings.TrimSpace(arg)
}

// parseChannelRef accepts either a raw channel ID or a <#id> mention.
func parseChannelRef(arg string) string {
	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
	return strings.TrimSpace(arg)
}
