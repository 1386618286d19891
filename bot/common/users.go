package common

import (
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// ParseUserID converts a Discord user ID string to int64
func ParseUserID(userID string) (int64, error) {
	return strconv.ParseInt(userID, 10, 64)
}

// GetUserMention returns a Discord mention string for a user
func GetUserMention(userID int64) string {
	return "<@" + strconv.FormatInt(userID, 10) + ">"
}

// CommunityID returns the guild of the interaction as a community ID
func CommunityID(i *discordgo.InteractionCreate) (int64, error) {
	if i.GuildID == "" {
		return 0, NewUserError("This command can only be used in a server.", "interaction outside a guild")
	}
	id, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid guild ID %q: %w", i.GuildID, err)
	}
	return id, nil
}

// InvokerID returns the member who triggered the interaction
func InvokerID(i *discordgo.InteractionCreate) (int64, error) {
	if i.Member == nil || i.Member.User == nil {
		return 0, NewUserError("This command can only be used in a server.", "interaction without a member")
	}
	id, err := ParseUserID(i.Member.User.ID)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID %q: %w", i.Member.User.ID, err)
	}
	return id, nil
}

// IsOperator reports whether the member may run operator commands: either
// an administrator or the holder of one of the operator roles
func IsOperator(member *discordgo.Member, operatorRoleIDs []string) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, roleID := range member.Roles {
		for _, operatorRole := range operatorRoleIDs {
			if roleID == operatorRole {
				return true
			}
		}
	}
	return false
}
