package rounds

import (
	"context"
	"fmt"
	"sync"

	"parimutuel/models"
	"parimutuel/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// discordAPI is the part of *discordgo.Session the renderer uses
type discordAPI interface {
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type statusMessage struct {
	roundID   string
	channelID string
	messageID string
}

// StatusRenderer keeps the status message of each community's round up to
// date. It never calls back into the round manager.
type StatusRenderer struct {
	api      discordAPI
	mu       sync.Mutex
	messages map[int64]statusMessage
}

// NewStatusRenderer creates a renderer posting through api
func NewStatusRenderer(api discordAPI) *StatusRenderer {
	return &StatusRenderer{
		api:      api,
		messages: make(map[int64]statusMessage),
	}
}

// Track records where the status message of a round lives
func (r *StatusRenderer) Track(communityID int64, roundID, channelID, messageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[communityID] = statusMessage{roundID: roundID, channelID: channelID, messageID: messageID}
}

// Forget stops tracking the round's status message
func (r *StatusRenderer) Forget(communityID int64, roundID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.messages[communityID]; ok && msg.roundID == roundID {
		delete(r.messages, communityID)
	}
}

func (r *StatusRenderer) lookup(communityID int64, roundID string) (statusMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[communityID]
	if !ok || msg.roundID != roundID {
		return statusMessage{}, false
	}
	return msg, true
}

// RenderStatus edits the tracked status message. Untracked rounds are ignored.
func (r *StatusRenderer) RenderStatus(ctx context.Context, snapshot *models.RoundSnapshot) error {
	msg, ok := r.lookup(snapshot.CommunityID, snapshot.RoundID)
	if !ok {
		return nil
	}

	if _, err := r.api.ChannelMessageEditEmbed(msg.channelID, msg.messageID, BuildStatusEmbed(snapshot),
		discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to edit status message %s: %w", msg.messageID, err)
	}
	return nil
}

// Announce posts an embed in the channel of the round's status message
func (r *StatusRenderer) Announce(ctx context.Context, communityID int64, roundID string, embed *discordgo.MessageEmbed) {
	msg, ok := r.lookup(communityID, roundID)
	if !ok {
		return
	}
	if _, err := r.api.ChannelMessageSendEmbed(msg.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		log.WithFields(log.Fields{
			"community": communityID,
			"round":     roundID,
			"error":     err,
		}).Warn("Failed to post round announcement")
	}
}

var _ service.Renderer = (*StatusRenderer)(nil)
