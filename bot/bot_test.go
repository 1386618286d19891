package bot

import (
	"testing"

	"parimutuel/bot/features/balance"
	"parimutuel/bot/features/betting"
	"parimutuel/bot/features/rounds"
	"parimutuel/events"
	"parimutuel/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rendererRecorder is a round service that records the renderer it is given
type rendererRecorder struct {
	service.RoundService
	renderer service.Renderer
}

func (r *rendererRecorder) SetRenderer(renderer service.Renderer) {
	r.renderer = renderer
}

func TestCommandIndex(t *testing.T) {
	roundsFeature := rounds.New(nil, rounds.NewStatusRenderer(nil), nil)
	bettingFeature := betting.New(nil)
	balanceFeature := balance.New(nil, nil)

	index := commandIndex([]commandFeature{roundsFeature, bettingFeature, balanceFeature})

	for _, name := range []string{"open", "close", "winner", "refund", "status", "betlist", "result"} {
		assert.Same(t, roundsFeature, index[name], name)
	}
	assert.Same(t, bettingFeature, index["bet"])
	for _, name := range []string{"balance", "givepoints", "takepoints"} {
		assert.Same(t, balanceFeature, index[name], name)
	}
	assert.Len(t, index, 11)
}

func TestNewBot_SetsRendererBeforeOpen(t *testing.T) {
	dg, err := discordgo.New("Bot test-token")
	require.NoError(t, err)

	roundService := &rendererRecorder{}
	b := newBot(Config{GuildID: "1"}, dg, roundService, events.NewBus())

	require.NotNil(t, roundService.renderer)
	assert.Same(t, b.renderer, roundService.renderer)
	assert.Len(t, b.handlers, 11)
}
