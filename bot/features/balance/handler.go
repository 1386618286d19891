package balance

import (
	"context"
	"fmt"
	"time"

	"parimutuel/bot/common"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const balanceTimeout = 5 * time.Second

// memberOption returns the ID of the "member" option, or ok=false when absent
func memberOption(i *discordgo.InteractionCreate) (int64, bool, error) {
	opt, ok := common.OptionMap(i.ApplicationCommandData().Options)["member"]
	if !ok {
		return 0, false, nil
	}
	user := opt.UserValue(nil)
	if user == nil {
		return 0, false, nil
	}
	id, err := common.ParseUserID(user.ID)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (f *Feature) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, err := common.CommunityID(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	memberID, explicit, err := memberOption(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}
	if !explicit {
		if memberID, err = common.InvokerID(i); err != nil {
			common.HandleError(s, i, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), balanceTimeout)
	defer cancel()

	balance, err := f.rounds.GetBalance(ctx, communityID, memberID)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	message := fmt.Sprintf("%s has **%s**", common.GetUserMention(memberID), common.FormatPoints(balance))
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         message,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		},
	})
	if err != nil {
		log.Errorf("Error responding to balance command: %v", err)
	}
}

// handleAdjust serves /givepoints (sign 1) and /takepoints (sign -1)
func (f *Feature) handleAdjust(s *discordgo.Session, i *discordgo.InteractionCreate, sign int64) {
	communityID, err := common.CommunityID(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	memberID, ok, err := memberOption(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}
	amountOpt, hasAmount := common.OptionMap(i.ApplicationCommandData().Options)["amount"]
	if !ok || !hasAmount {
		common.RespondWithError(s, i, "Provide both a member and an amount.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), balanceTimeout)
	defer cancel()

	delta := sign * amountOpt.IntValue()
	balance, err := f.rounds.AdjustBalance(ctx, communityID, memberID, delta, common.IsOperator(i.Member, f.operatorRoles))
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	if err := common.RespondWithSuccess(s, i, fmt.Sprintf("%s %s. New balance: %s.",
		common.GetUserMention(memberID), common.FormatSignedPoints(delta), common.FormatPoints(balance)), false); err != nil {
		log.WithError(err).Error("Failed to confirm balance adjustment")
	}
}
