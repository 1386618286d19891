package balance

import (
	"parimutuel/service"

	"github.com/bwmarrin/discordgo"
)

type Feature struct {
	rounds        service.RoundService
	operatorRoles []string
}

func New(rounds service.RoundService, operatorRoles []string) *Feature {
	return &Feature{
		rounds:        rounds,
		operatorRoles: operatorRoles,
	}
}

// Commands lists the slash commands served by this feature
func (f *Feature) Commands() []*discordgo.ApplicationCommand {
	minOne := float64(1)
	adjustOptions := []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "member",
			Description: "Member whose balance changes",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "amount",
			Description: "Points",
			Required:    true,
			MinValue:    &minOne,
		},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: "Check a points balance",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to check (defaults to you)",
					Required:    false,
				},
			},
		},
		{
			Name:        "givepoints",
			Description: "Give points to a member (operators only)",
			Options:     adjustOptions,
		},
		{
			Name:        "takepoints",
			Description: "Take points from a member (operators only)",
			Options:     adjustOptions,
		},
	}
}

func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case "balance":
		f.handleBalance(s, i)
	case "givepoints":
		f.handleAdjust(s, i, 1)
	case "takepoints":
		f.handleAdjust(s, i, -1)
	}
}
