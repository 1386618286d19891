package rounds

import (
	"parimutuel/service"

	"github.com/bwmarrin/discordgo"
)

// Feature handles the round lifecycle commands
type Feature struct {
	rounds        service.RoundService
	renderer      *StatusRenderer
	operatorRoles []string
}

func New(rounds service.RoundService, renderer *StatusRenderer, operatorRoles []string) *Feature {
	return &Feature{
		rounds:        rounds,
		renderer:      renderer,
		operatorRoles: operatorRoles,
	}
}

// Commands lists the slash commands served by this feature
func (f *Feature) Commands() []*discordgo.ApplicationCommand {
	contenderOption := func(required bool, description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "contender",
			Description: description,
			Required:    required,
			MinValue:    floatPtr(1),
		}
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "open",
			Description: "Open a betting round (operators only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "What the round is about",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "How long betting stays open, e.g. 10m or 90 (minutes)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "contenders",
					Description: "Comma separated contender names",
					Required:    true,
				},
			},
		},
		{
			Name:        "close",
			Description: "Stop accepting bets (operators only)",
		},
		{
			Name:        "winner",
			Description: "Declare the winner and pay out (operators only)",
			Options: []*discordgo.ApplicationCommandOption{
				contenderOption(true, "Number of the winning contender"),
			},
		},
		{
			Name:        "refund",
			Description: "Cancel the round and refund every bet (operators only)",
		},
		{
			Name:        "status",
			Description: "Show the current round",
		},
		{
			Name:        "betlist",
			Description: "List the bets in the current round",
			Options: []*discordgo.ApplicationCommandOption{
				contenderOption(false, "Only list bets on this contender"),
			},
		},
		{
			Name:        "result",
			Description: "Show the outcome of the previous round",
		},
	}
}

// HandleCommand dispatches one of this feature's commands
func (f *Feature) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case "open":
		f.handleOpen(s, i)
	case "close":
		f.handleClose(s, i)
	case "winner":
		f.handleWinner(s, i)
	case "refund":
		f.handleRefund(s, i)
	case "status":
		f.handleStatus(s, i)
	case "betlist":
		f.handleBetList(s, i)
	case "result":
		f.handleResult(s, i)
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
