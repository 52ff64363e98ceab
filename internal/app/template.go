package app

import (
	"fmt"
	"strings"
)

// Grant-message templates support exactly two placeholders.
const (
	PlaceholderUser = "{user}"
	PlaceholderRole = "{role}"
)

// RenderGrantMessage substitutes the winner and role mentions into a
// guild's announcement template. The scan is a single left-to-right
// pass and substituted content is never re-scanned, so a mention that
// happens to contain a placeholder token cannot trigger a second
// substitution.
func RenderGrantMessage(tmpl, userMention, roleMention string) string {
	var b strings.Builder
	b.Grow(len(tmpl))
	for len(tmpl) > 0 {
		i := strings.IndexByte(tmpl, '{')
		if i < 0 {
			b.WriteString(tmpl)
			break
		}
		b.WriteString(tmpl[:i])
		tmpl = tmpl[i:]
		switch {
		case strings.HasPrefix(tmpl, PlaceholderUser):
			b.WriteString(userMention)
			tmpl = tmpl[len(PlaceholderUser):]
		case strings.HasPrefix(tmpl, PlaceholderRole):
			b.WriteString(roleMention)
			tmpl = tmpl[len(PlaceholderRole):]
		default:
			b.WriteByte('{')
			tmpl = tmpl[1:]
		}
	}
	return b.String()
}

// UserMention formats a Discord user mention.
func UserMention(userID string) string { return fmt.Sprintf("<@%s>", userID) }

// RoleMention formats a Discord role mention.
func RoleMention(roleID string) string { return fmt.Sprintf("<@&%s>", roleID) }
