package rounds

import (
	"context"
	"errors"
	"testing"
	"time"

	"parimutuel/events"
	"parimutuel/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDiscordAPI struct {
	mock.Mock
}

func (m *mockDiscordAPI) ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, messageID, embed)
	return nil, args.Error(0)
}

func (m *mockDiscordAPI) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, embed)
	return nil, args.Error(0)
}

func TestStatusRenderer_RenderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("untracked round is ignored", func(t *testing.T) {
		api := new(mockDiscordAPI)
		r := NewStatusRenderer(api)

		require.NoError(t, r.RenderStatus(ctx, testSnapshot(models.RoundStatusOpen)))
		api.AssertNotCalled(t, "ChannelMessageEditEmbed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("edits the tracked message", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("ChannelMessageEditEmbed", "chan", "msg", mock.MatchedBy(func(e *discordgo.MessageEmbed) bool {
			return e.Title == "🎲 Finals"
		})).Return(nil).Once()

		r := NewStatusRenderer(api)
		r.Track(42, "round-1", "chan", "msg")

		require.NoError(t, r.RenderStatus(ctx, testSnapshot(models.RoundStatusOpen)))
		api.AssertExpectations(t)
	})

	t.Run("stale round id is ignored", func(t *testing.T) {
		api := new(mockDiscordAPI)
		r := NewStatusRenderer(api)
		r.Track(42, "round-0", "chan", "msg")

		require.NoError(t, r.RenderStatus(ctx, testSnapshot(models.RoundStatusOpen)))
		api.AssertNotCalled(t, "ChannelMessageEditEmbed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("edit failures are returned", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("ChannelMessageEditEmbed", "chan", "msg", mock.Anything).Return(errors.New("unknown message"))

		r := NewStatusRenderer(api)
		r.Track(42, "round-1", "chan", "msg")

		err := r.RenderStatus(ctx, testSnapshot(models.RoundStatusOpen))
		assert.ErrorContains(t, err, "unknown message")
	})

	t.Run("forget only drops the matching round", func(t *testing.T) {
		api := new(mockDiscordAPI)
		r := NewStatusRenderer(api)
		r.Track(42, "round-1", "chan", "msg")

		r.Forget(42, "round-0")
		_, ok := r.lookup(42, "round-1")
		assert.True(t, ok)

		r.Forget(42, "round-1")
		_, ok = r.lookup(42, "round-1")
		assert.False(t, ok)
	})
}

func TestFeature_Announcer(t *testing.T) {
	ctx := context.Background()

	newFeature := func(api *mockDiscordAPI) *Feature {
		renderer := NewStatusRenderer(api)
		renderer.Track(42, "round-1", "chan", "msg")
		return New(nil, renderer, nil)
	}

	t.Run("deadline close renders and announces", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("ChannelMessageEditEmbed", "chan", "msg", mock.Anything).Return(nil).Once()
		api.On("ChannelMessageSendEmbed", "chan", mock.MatchedBy(func(e *discordgo.MessageEmbed) bool {
			return e.Title == "🔒 Betting closed for Finals"
		})).Return(nil).Once()

		f := newFeature(api)
		f.onRoundClosed(ctx, events.RoundClosedEvent{
			RoundID:     "round-1",
			CommunityID: 42,
			ByDeadline:  true,
			Snapshot:    testSnapshot(models.RoundStatusClosed),
		})

		api.AssertExpectations(t)
	})

	t.Run("operator close only renders", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("ChannelMessageEditEmbed", "chan", "msg", mock.Anything).Return(nil).Once()

		f := newFeature(api)
		f.onRoundClosed(ctx, events.RoundClosedEvent{
			RoundID:     "round-1",
			CommunityID: 42,
			Snapshot:    testSnapshot(models.RoundStatusClosed),
		})

		api.AssertExpectations(t)
		api.AssertNotCalled(t, "ChannelMessageSendEmbed", mock.Anything, mock.Anything)
	})

	t.Run("expiry announces the refund and forgets the round", func(t *testing.T) {
		api := new(mockDiscordAPI)
		api.On("ChannelMessageSendEmbed", "chan", mock.Anything).Return(nil).Once()

		f := newFeature(api)
		f.onRoundExpired(ctx, events.RoundExpiredEvent{Report: &models.RefundReport{
			RoundID:     "round-1",
			CommunityID: 42,
			Title:       "Finals",
			Expired:     true,
		}})

		api.AssertExpectations(t)
		_, ok := f.renderer.lookup(42, "round-1")
		assert.False(t, ok)
	})

	t.Run("subscribed settlement forgets the round", func(t *testing.T) {
		f := newFeature(new(mockDiscordAPI))
		bus := events.NewBus()
		f.Subscribe(bus)

		bus.Emit(ctx, events.RoundSettledEvent{Report: &models.PayoutReport{RoundID: "round-1", CommunityID: 42}})

		require.Eventually(t, func() bool {
			_, ok := f.renderer.lookup(42, "round-1")
			return !ok
		}, time.Second, time.Millisecond)
	})
}
