package discord

import "errors"

// ErrMemberNotFound is returned by Gateway.Member when the user has left
// the guild (or never belonged to it).
var ErrMemberNotFound = errors.New("member not found in guild")

// Member is the slice of guild membership the rotation logic needs.
type Member struct {
	UserID   string
	Username string
	RoleIDs  []string
}

// Gateway defines the chat platform operations the application consumes.
// This decouples the services from the specific Discord library; every
// mutating call may fail independently.
type Gateway interface {
	Member(guildID, userID string) (*Member, error)
	// RoleHolders returns the guild members currently holding roleID.
	RoleHolders(guildID, roleID string) ([]Member, error)
	RoleExists(guildID, roleID string) (bool, error)
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	// SendMessage is best effort; callers treat failures as non-fatal.
	SendMessage(channelID, text string) error
}
