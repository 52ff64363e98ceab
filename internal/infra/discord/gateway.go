// internal/infra/discord/gateway.go
package discord

import (
	"context"
	"errors"
	"fmt"

	domainDiscord "title_rotation_bot/internal/domain/discord"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// memberPageSize is the REST page size for member listing (API maximum).
const memberPageSize = 1000

// defaultSendRPS paces mutating calls and message sends so a large
// strip fan-out doesn't trip Discord's rate limits.
const defaultSendRPS = 10

// SessionAdapter implements the domain Gateway interface using the
// bwmarrin/discordgo library.
type SessionAdapter struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

func NewSessionAdapter(s *discordgo.Session) *SessionAdapter {
	return &SessionAdapter{
		session: s,
		limiter: rate.NewLimiter(rate.Limit(defaultSendRPS), defaultSendRPS),
	}
}

// wait blocks until the limiter admits one more write call.
func (a *SessionAdapter) wait() {
	_ = a.limiter.Wait(context.Background())
}

// Member resolves a guild member, preferring the state cache and
// falling back to the REST API.
func (a *SessionAdapter) Member(guildID, userID string) (*domainDiscord.Member, error) {
	m, err := a.session.State.Member(guildID, userID)
	if err != nil {
		m, err = a.session.GuildMember(guildID, userID)
	}
	if err != nil {
		if isUnknownMember(err) {
			return nil, domainDiscord.ErrMemberNotFound
		}
		return nil, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return toMember(m), nil
}

// RoleHolders returns every guild member currently holding roleID.
func (a *SessionAdapter) RoleHolders(guildID, roleID string) ([]domainDiscord.Member, error) {
	members, err := a.allMembers(guildID)
	if err != nil {
		return nil, err
	}

	holders := make([]domainDiscord.Member, 0)
	for _, m := range members {
		for _, r := range m.Roles {
			if r == roleID {
				holders = append(holders, *toMember(m))
				break
			}
		}
	}
	return holders, nil
}

// allMembers returns the guild's full member list, from the state cache
// when it is complete and by paging the REST API otherwise.
func (a *SessionAdapter) allMembers(guildID string) ([]*discordgo.Member, error) {
	if g, err := a.session.State.Guild(guildID); err == nil && g.MemberCount == len(g.Members) {
		return g.Members, nil
	}

	var all []*discordgo.Member
	after := ""
	for {
		page, err := a.session.GuildMembers(guildID, after, memberPageSize)
		if err != nil {
			return nil, fmt.Errorf("list members of guild %s: %w", guildID, err)
		}
		all = append(all, page...)
		if len(page) < memberPageSize {
			return all, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (a *SessionAdapter) RoleExists(guildID, roleID string) (bool, error) {
	if _, err := a.session.State.Role(guildID, roleID); err == nil {
		return true, nil
	}
	roles, err := a.session.GuildRoles(guildID)
	if err != nil {
		return false, fmt.Errorf("list roles of guild %s: %w", guildID, err)
	}
	for _, r := range roles {
		if r.ID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (a *SessionAdapter) AddRole(guildID, userID, roleID string) error {
	a.wait()
	if err := a.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleID, userID, err)
	}
	return nil
}

func (a *SessionAdapter) RemoveRole(guildID, userID, roleID string) error {
	a.wait()
	if err := a.session.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleID, userID, err)
	}
	return nil
}

func (a *SessionAdapter) SendMessage(channelID, text string) error {
	a.wait()
	if _, err := a.session.ChannelMessageSend(channelID, text); err != nil {
		return fmt.Errorf("send message to channel %s: %w", channelID, err)
	}
	return nil
}

func toMember(m *discordgo.Member) *domainDiscord.Member {
	out := &domainDiscord.Member{RoleIDs: m.Roles}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Username = m.User.Username
	}
	return out
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMember
	}
	return false
}
