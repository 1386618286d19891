package betting

import (
	"parimutuel/service"

	"github.com/bwmarrin/discordgo"
)

// Feature handles /bet
type Feature struct {
	rounds service.RoundService
}

// New creates a new betting feature instance
func New(rounds service.RoundService) *Feature {
	return &Feature{rounds: rounds}
}

// Commands lists the slash commands served by this feature
func (f *Feature) Commands() []*discordgo.ApplicationCommand {
	minOne := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "bet",
			Description: "Bet points on a contender in the current round",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "contender",
					Description: "Contender number",
					Required:    true,
					MinValue:    &minOne,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Points to bet",
					Required:    true,
					MinValue:    &minOne,
				},
			},
		},
	}
}

// HandleCommand handles the /bet command
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	f.handleBet(s, i)
}
