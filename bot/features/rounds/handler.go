package rounds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"parimutuel/bot/common"
	"parimutuel/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const commandTimeout = 10 * time.Second

var (
	errBadDuration   = errors.New("invalid duration")
	errNoContenders  = errors.New("no contenders")
	errMissingOption = errors.New("missing option")
)

// ParseRoundDuration accepts Go durations such as "10m" or "1h30m", or a
// bare number of minutes
func ParseRoundDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errBadDuration
	}
	if minutes, err := strconv.Atoi(raw); err == nil {
		if minutes <= 0 {
			return 0, errBadDuration
		}
		return time.Duration(minutes) * time.Minute, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errBadDuration
	}
	return d, nil
}

// ParseContenders splits a comma separated list, dropping empty entries.
// Duplicate and count checks happen when the round is created.
func ParseContenders(raw string) ([]string, error) {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errNoContenders
	}
	return names, nil
}

// caller resolves the community and operator flag of an interaction
func (f *Feature) caller(i *discordgo.InteractionCreate) (int64, bool, error) {
	communityID, err := common.CommunityID(i)
	if err != nil {
		return 0, false, err
	}
	return communityID, common.IsOperator(i.Member, f.operatorRoles), nil
}

func (f *Feature) handleOpen(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, isOperator, err := f.caller(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}
	if !isOperator {
		common.HandleError(s, i, models.ErrNotOperator)
		return
	}

	opts := common.OptionMap(i.ApplicationCommandData().Options)
	title, rawDuration, rawContenders := "", "", ""
	if opt, ok := opts["title"]; ok {
		title = strings.TrimSpace(opt.StringValue())
	}
	if opt, ok := opts["duration"]; ok {
		rawDuration = opt.StringValue()
	}
	if opt, ok := opts["contenders"]; ok {
		rawContenders = opt.StringValue()
	}

	duration, err := ParseRoundDuration(rawDuration)
	if err != nil {
		common.HandleError(s, i, common.NewUserError("Duration must look like `10m`, `1h30m` or a number of minutes.", err.Error()))
		return
	}
	contenders, err := ParseContenders(rawContenders)
	if err != nil {
		common.HandleError(s, i, common.NewUserError("List at least two contenders separated by commas.", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	snap, err := f.rounds.OpenRound(ctx, communityID, title, contenders, duration)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildStatusEmbed(snap), false); err != nil {
		log.WithError(err).Error("Failed to post round status")
		return
	}

	msg, err := s.InteractionResponse(i.Interaction)
	if err != nil {
		log.WithFields(log.Fields{
			"community": communityID,
			"round":     snap.RoundID,
			"error":     err,
		}).Warn("Could not fetch status message, live updates disabled")
		return
	}
	f.renderer.Track(communityID, snap.RoundID, msg.ChannelID, msg.ID)
}

func (f *Feature) handleClose(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, isOperator, err := f.caller(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	result, err := f.rounds.CloseRound(ctx, communityID, isOperator)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	if result.AlreadyClosed {
		_ = common.RespondWithSuccess(s, i, "Betting was already closed.", true)
		return
	}
	if err := common.RespondWithSuccess(s, i, fmt.Sprintf("Betting closed for **%s** with %s in the pool.",
		result.Snapshot.Title, common.FormatPoints(result.Snapshot.TotalPool)), false); err != nil {
		log.WithError(err).Error("Failed to respond to close command")
	}
}

func (f *Feature) handleWinner(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, isOperator, err := f.caller(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	opts := common.OptionMap(i.ApplicationCommandData().Options)
	opt, ok := opts["contender"]
	if !ok {
		common.HandleError(s, i, common.NewUserError("Pick the winning contender.", errMissingOption.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	report, err := f.rounds.DeclareWinner(ctx, communityID, int(opt.IntValue()), isOperator)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildPayoutEmbed(report), false); err != nil {
		log.WithError(err).Error("Failed to post payout")
	}
}

func (f *Feature) handleRefund(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, isOperator, err := f.caller(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	report, err := f.rounds.Refund(ctx, communityID, isOperator)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	if err := common.RespondWithEmbed(s, i, BuildRefundEmbed(report), false); err != nil {
		log.WithError(err).Error("Failed to post refund")
	}
}

func (f *Feature) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, err := common.CommunityID(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	snap, err := f.rounds.GetStatus(communityID)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}
	if err := common.RespondWithEmbed(s, i, BuildStatusEmbed(snap), true); err != nil {
		log.WithError(err).Error("Failed to post round status")
	}
}

func (f *Feature) handleBetList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, err := common.CommunityID(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	contender := 0
	if opt, ok := common.OptionMap(i.ApplicationCommandData().Options)["contender"]; ok {
		contender = int(opt.IntValue())
	}

	listings, err := f.rounds.ListWagers(communityID, contender)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	title := "the current round"
	if snap, err := f.rounds.GetStatus(communityID); err == nil {
		title = snap.Title
	}
	if err := common.RespondWithEmbed(s, i, BuildWagerListEmbed(title, listings), true); err != nil {
		log.WithError(err).Error("Failed to post wager list")
	}
}

func (f *Feature) handleResult(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, err := common.CommunityID(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	result := f.rounds.LastResult(communityID)
	if result == nil {
		common.RespondWithError(s, i, "No round has finished yet.")
		return
	}
	if err := common.RespondWithEmbed(s, i, BuildResultEmbed(result), true); err != nil {
		log.WithError(err).Error("Failed to post round result")
	}
}
