package common

import (
	"errors"
	"fmt"

	"parimutuel/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// BotError carries a user-facing message alongside the internal error
type BotError struct {
	UserMessage string // Message shown to Discord user
	LogMessage  string // Internal message for logging
	Err         error
}

func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.LogMessage, e.Err)
	}
	return e.LogMessage
}

func (e *BotError) Unwrap() error {
	return e.Err
}

// NewUserError creates an error for user-caused issues
func NewUserError(userMessage string, logMessage string) *BotError {
	return &BotError{UserMessage: userMessage, LogMessage: logMessage}
}

// UserMessage returns the text shown to a member for err. Rejected round
// operations carry their own message; anything else is a system failure.
func UserMessage(err error) (string, bool) {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.UserMessage, true
	}

	var roundErr *models.RoundError
	if errors.As(err, &roundErr) {
		if roundErr.Kind == models.ErrorKindAuthorization {
			return "Only round operators can do that.", true
		}
		return capitalize(roundErr.Msg) + ".", true
	}
	return "Something went wrong. Please try again later.", false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// RespondWithError sends an error message as an interaction response
func RespondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("❌ %s", message),
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Error sending error response: %v", err)
	}
}

// HandleError logs err and tells the member what went wrong
func HandleError(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	message, expected := UserMessage(err)

	fields := log.Fields{
		"command": i.ApplicationCommandData().Name,
		"guild":   i.GuildID,
		"error":   err,
	}
	if i.Member != nil && i.Member.User != nil {
		fields["user_id"] = i.Member.User.ID
	}
	if expected {
		log.WithFields(fields).Debug("Command rejected")
	} else {
		log.WithFields(fields).Error("Unexpected error in bot command")
	}

	RespondWithError(s, i, message)
}
