package rounds

import (
	"context"
	"fmt"

	"parimutuel/bot/common"
	"parimutuel/events"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Subscribe keeps status messages and announcements in step with round events
func (f *Feature) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeRoundClosed, f.onRoundClosed)
	bus.Subscribe(events.EventTypeRoundSettled, f.onRoundSettled)
	bus.Subscribe(events.EventTypeRoundRefunded, f.onRoundRefunded)
	bus.Subscribe(events.EventTypeRoundExpired, f.onRoundExpired)
}

func (f *Feature) onRoundClosed(ctx context.Context, event events.Event) {
	e, ok := event.(events.RoundClosedEvent)
	if !ok || e.Snapshot == nil {
		return
	}

	if err := f.renderer.RenderStatus(ctx, e.Snapshot); err != nil {
		log.WithFields(log.Fields{
			"community": e.CommunityID,
			"round":     e.RoundID,
			"error":     err,
		}).Warn("Failed to render closed round")
	}

	if e.ByDeadline {
		f.renderer.Announce(ctx, e.CommunityID, e.RoundID, &discordgo.MessageEmbed{
			Title: fmt.Sprintf("🔒 Betting closed for %s", e.Snapshot.Title),
			Description: fmt.Sprintf("The deadline passed with %s in the pool.",
				common.FormatPoints(e.Snapshot.TotalPool)),
			Color: common.ColorWarning,
		})
	}
}

func (f *Feature) onRoundSettled(ctx context.Context, event events.Event) {
	if e, ok := event.(events.RoundSettledEvent); ok && e.Report != nil {
		f.renderer.Forget(e.Report.CommunityID, e.Report.RoundID)
	}
}

func (f *Feature) onRoundRefunded(ctx context.Context, event events.Event) {
	if e, ok := event.(events.RoundRefundedEvent); ok && e.Report != nil {
		f.renderer.Forget(e.Report.CommunityID, e.Report.RoundID)
	}
}

// Expiry has no interaction to answer, so the refund is announced in the channel
func (f *Feature) onRoundExpired(ctx context.Context, event events.Event) {
	e, ok := event.(events.RoundExpiredEvent)
	if !ok || e.Report == nil {
		return
	}
	f.renderer.Announce(ctx, e.Report.CommunityID, e.Report.RoundID, BuildRefundEmbed(e.Report))
	f.renderer.Forget(e.Report.CommunityID, e.Report.RoundID)
}
