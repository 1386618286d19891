package betting

import (
	"context"
	"fmt"
	"time"

	"parimutuel/bot/common"
	"parimutuel/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const betTimeout = 10 * time.Second

func (f *Feature) handleBet(s *discordgo.Session, i *discordgo.InteractionCreate) {
	communityID, err := common.CommunityID(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}
	memberID, err := common.InvokerID(i)
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	opts := common.OptionMap(i.ApplicationCommandData().Options)
	contenderOpt, hasContender := opts["contender"]
	amountOpt, hasAmount := opts["amount"]
	if !hasContender || !hasAmount {
		common.RespondWithError(s, i, "Provide both a contender and an amount.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), betTimeout)
	defer cancel()

	receipt, err := f.rounds.PlaceWager(ctx, communityID, memberID, int(contenderOpt.IntValue()), amountOpt.IntValue())
	if err != nil {
		common.HandleError(s, i, err)
		return
	}

	if err := common.RespondWithSuccess(s, i, ReceiptMessage(receipt), false); err != nil {
		log.WithFields(log.Fields{
			"community": communityID,
			"member":    memberID,
			"error":     err,
		}).Error("Failed to confirm wager")
	}
}

// ReceiptMessage describes an accepted wager
func ReceiptMessage(r *service.WagerReceipt) string {
	msg := fmt.Sprintf("Bet %s on **#%d %s**.", common.FormatPoints(r.Amount), r.ContenderNumber, r.ContenderName)
	if r.MemberTotal != r.Amount {
		msg += fmt.Sprintf(" Your total on this contender is %s.", common.FormatPoints(r.MemberTotal))
	}
	return msg + fmt.Sprintf(" Balance: %s.", common.FormatPoints(r.NewBalance))
}
