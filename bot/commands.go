package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// registerCommands registers all slash commands with Discord. Commands are
// scoped to GuildID when it is set, which makes them available immediately.
func (b *Bot) registerCommands() error {
	var commands []*discordgo.ApplicationCommand
	for _, f := range b.features {
		commands = append(commands, f.Commands()...)
	}

	for _, cmd := range commands {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}

	log.WithFields(log.Fields{
		"count": len(commands),
		"guild": b.config.GuildID,
	}).Info("Registered slash commands")
	return nil
}
