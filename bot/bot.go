package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"parimutuel/bot/features/balance"
	"parimutuel/bot/features/betting"
	"parimutuel/bot/features/rounds"
	"parimutuel/events"
	"parimutuel/infrastructure/observability"
	"parimutuel/models"
	"parimutuel/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token           string
	GuildID         string
	OperatorRoleIDs []string
}

// commandFeature serves a group of slash commands
type commandFeature interface {
	Commands() []*discordgo.ApplicationCommand
	HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate)
}

// communityRemover is implemented by round services that can drop a community
type communityRemover interface {
	RemoveCommunity(ctx context.Context, communityID int64) (*models.RefundReport, error)
}

// rendererSetter is implemented by round services that push live status updates
type rendererSetter interface {
	SetRenderer(r service.Renderer)
}

type Bot struct {
	config   Config
	session  *discordgo.Session
	rounds   service.RoundService
	renderer *rounds.StatusRenderer
	features []commandFeature
	handlers map[string]commandFeature
}

// New connects to Discord and registers the slash commands
func New(config Config, roundService service.RoundService, eventBus *events.Bus) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds

	bot := newBot(config, dg, roundService, eventBus)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	return bot, nil
}

// newBot wires features and handlers onto a session that is not open yet.
// The renderer reaches the round service here so no command can open a round
// before live status updates are available.
func newBot(config Config, dg *discordgo.Session, roundService service.RoundService, eventBus *events.Bus) *Bot {
	renderer := rounds.NewStatusRenderer(dg)
	if setter, ok := roundService.(rendererSetter); ok {
		setter.SetRenderer(renderer)
	}

	roundsFeature := rounds.New(roundService, renderer, config.OperatorRoleIDs)
	roundsFeature.Subscribe(eventBus)

	bot := &Bot{
		config:   config,
		session:  dg,
		rounds:   roundService,
		renderer: renderer,
		features: []commandFeature{
			roundsFeature,
			betting.New(roundService),
			balance.New(roundService, config.OperatorRoleIDs),
		},
	}
	bot.handlers = commandIndex(bot.features)

	dg.AddHandler(bot.handleCommands)
	dg.AddHandler(bot.handleGuildDelete)
	return bot
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func commandIndex(features []commandFeature) map[string]commandFeature {
	index := make(map[string]commandFeature)
	for _, f := range features {
		for _, cmd := range f.Commands() {
			index[cmd.Name] = f
		}
	}
	return index
}

func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	feature, ok := b.handlers[name]
	if !ok {
		log.Warnf("Received unknown command %q", name)
		return
	}

	start := time.Now()
	feature.HandleCommand(s, i)
	elapsed := time.Since(start)

	observability.GetMetrics().RecordCommand(name, elapsed)
	log.WithFields(log.Fields{
		"command":  name,
		"guild":    i.GuildID,
		"duration": elapsed,
	}).Debug("Handled command")
}

// handleGuildDelete refunds and forgets the round of a guild the bot left
func (b *Bot) handleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Unavailable {
		return
	}
	remover, ok := b.rounds.(communityRemover)
	if !ok {
		return
	}
	communityID, err := strconv.ParseInt(g.ID, 10, 64)
	if err != nil {
		log.Errorf("Error parsing guild ID %s: %v", g.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := remover.RemoveCommunity(ctx, communityID)
	if err != nil {
		log.WithFields(log.Fields{
			"community": communityID,
			"error":     err,
		}).Error("Failed to remove community")
		return
	}
	if report != nil {
		log.WithFields(log.Fields{
			"community": communityID,
			"round":     report.RoundID,
			"refunded":  report.Total,
		}).Info("Refunded round of departed guild")
	}
}
