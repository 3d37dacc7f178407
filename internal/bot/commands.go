package bot

import (
	"context"
	"fmt"
	"time"

	"membership-bot/internal/api/checkout"
	"membership-bot/internal/domain/tiers"
	"membership-bot/internal/domain/training"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	tierChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(tiers.All()))
	for _, t := range tiers.All() {
		tierChoices = append(tierChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  string(t),
			Value: string(t),
		})
	}

	verdictChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "approve", Value: training.StatusApproved},
		{Name: "needs work", Value: training.StatusNeedsWork},
		{Name: "reject", Value: training.StatusRejected},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "ping",
			Description: "Check that the bot is alive",
		},
		{
			Name:        "start",
			Description: "Join the community as a member",
		},
		{
			Name:        "subscribe",
			Description: "Get a checkout link for a membership tier",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tier",
					Description: "Membership tier to buy",
					Required:    true,
					Choices:     tierChoices,
				},
			},
		},
		{
			Name:        "set_tier",
			Description: "Admin: grant or change a member's tier",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Member to update",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tier",
					Description: "Tier to grant",
					Required:    true,
					Choices:     tierChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "days",
					Description: "Days of access (default 30)",
					Required:    false,
				},
			},
		},
		{
			Name:        "review",
			Description: "Coach: review a training submission",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "submission_id",
					Description: "Submission to review",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "verdict",
					Description: "Review outcome",
					Required:    true,
					Choices:     verdictChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "note",
					Description: "Feedback for the member",
					Required:    false,
				},
			},
		},
		{
			Name:        "my_progress",
			Description: "Show your training streak and subscription status",
		},
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "ping":
		b.respond(s, i, "🏓 Pong!", true)
	case "start":
		b.handleStart(s, i)
	case "subscribe":
		b.handleSubscribe(s, i)
	case "set_tier":
		b.handleSetTier(s, i)
	case "review":
		b.handleReview(s, i)
	case "my_progress":
		b.handleMyProgress(s, i)
	}
}

func (b *Bot) handleStart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	memberID := interactionUserID(i)

	if b.cfg.VisitorRoleID != "" {
		if err := s.GuildMemberRoleRemove(b.cfg.DiscordGuildID, memberID, b.cfg.VisitorRoleID); err != nil {
			b.log.Debug("removing visitor role", zap.String("member_id", memberID), zap.Error(err))
		}
	}
	if b.cfg.MemberRoleID != "" {
		if err := s.GuildMemberRoleAdd(b.cfg.DiscordGuildID, memberID, b.cfg.MemberRoleID); err != nil {
			b.respond(s, i, "Couldn't set up your roles, please ping a moderator.", true)
			return
		}
	}

	b.respond(s, i, "Welcome aboard! 🎉 Check out /subscribe when you're ready to unlock a tier.", true)
}

func (b *Bot) handleSubscribe(s *discordgo.Session, i *discordgo.InteractionCreate) {
	tier, ok := tiers.Parse(optionString(i, "tier"))
	if !ok {
		b.respond(s, i, "Unknown tier.", true)
		return
	}

	url, err := checkout.SessionURL(b.cfg, interactionUserID(i), tier)
	if err != nil {
		b.log.Error("creating checkout from /subscribe", zap.Error(err))
		b.respond(s, i, "Couldn't create a checkout link right now, try again in a minute.", true)
		return
	}

	b.respond(s, i, fmt.Sprintf("Here's your **%s** checkout link:\n%s", tier, url), true)
}

func (b *Bot) handleSetTier(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.isAdmin(interactionUserID(i)) {
		b.respond(s, i, "You don't have permission to do that.", true)
		return
	}

	target := optionUserID(i, "member")
	tier, ok := tiers.Parse(optionString(i, "tier"))
	if target == "" || !ok {
		b.respond(s, i, "Usage: /set_tier member tier [days]", true)
		return
	}
	days := optionInt(i, "days")
	if days <= 0 {
		days = 30
	}

	ctx := context.Background()
	expiresAt, err := b.ledger.UpsertAndExtend(ctx, target, tier, time.Duration(days)*24*time.Hour)
	if err != nil {
		b.log.Error("set_tier ledger write", zap.String("member_id", target), zap.Error(err))
		b.respond(s, i, "Failed to update the subscription.", true)
		return
	}

	if err := b.syncer.SyncMember(ctx, target); err != nil {
		b.log.Warn("role sync after set_tier failed, sweep will retry",
			zap.String("member_id", target), zap.Error(err))
	}

	b.respond(s, i, fmt.Sprintf("<@%s> is now **%s** until %s.",
		target, tier, expiresAt.Format("2006-01-02")), true)
}

func (b *Bot) handleReview(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !b.isCoach(i) {
		b.respond(s, i, "Reviews are for coaches.", true)
		return
	}

	id := optionInt(i, "submission_id")
	verdict := optionString(i, "verdict")
	var note *string
	if n := optionString(i, "note"); n != "" {
		note = &n
	}

	sub, err := b.training.SetSubmissionStatus(context.Background(), uint(id), verdict, note)
	if err != nil {
		b.log.Error("review update", zap.Int64("submission_id", id), zap.Error(err))
		b.respond(s, i, "Failed to save the review.", true)
		return
	}
	if sub == nil {
		b.respond(s, i, fmt.Sprintf("No submission #%d.", id), true)
		return
	}

	msg := fmt.Sprintf("Your training video was reviewed: **%s**", verdict)
	if note != nil {
		msg += "\n> " + *note
	}
	b.dm.DirectMessage(sub.MemberID, msg)

	b.respond(s, i, fmt.Sprintf("Submission #%d marked **%s**, member notified.", id, verdict), true)
}

func (b *Bot) handleMyProgress(s *discordgo.Session, i *discordgo.InteractionCreate) {
	memberID := interactionUserID(i)
	ctx := context.Background()

	since := time.Now().UTC().AddDate(0, 0, -b.cfg.ConsistentWindowDays)
	week, err := b.training.CompletionsSince(ctx, memberID, since)
	if err != nil {
		b.respond(s, i, "Couldn't load your progress.", true)
		return
	}
	total, err := b.training.CompletionsTotal(ctx, memberID)
	if err != nil {
		b.respond(s, i, "Couldn't load your progress.", true)
		return
	}

	status := "no active subscription"
	if rec, err := b.ledger.Get(ctx, memberID); err == nil && rec != nil && rec.Active(time.Now().UTC()) {
		status = fmt.Sprintf("**%s** until %s", rec.Tier, rec.ExpiresAt.Format("2006-01-02"))
	}

	b.respond(s, i, fmt.Sprintf(
		"📊 Your progress\nSessions this week: **%d** / %d\nTotal sessions: **%d**\nSubscription: %s",
		week, b.cfg.ConsistentRequired, total, status), true)
}

func (b *Bot) isAdmin(memberID string) bool {
	return b.cfg.AdminDiscordIDs[memberID]
}

func (b *Bot) isCoach(i *discordgo.InteractionCreate) bool {
	if b.isAdmin(interactionUserID(i)) {
		return true
	}
	if i.Member == nil || b.cfg.CoachRoleID == "" {
		return false
	}
	for _, roleID := range i.Member.Roles {
		if roleID == b.cfg.CoachRoleID {
			return true
		}
	}
	return false
}

func (b *Bot) respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		b.log.Debug("interaction respond failed", zap.Error(err))
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func optionString(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

func optionInt(i *discordgo.InteractionCreate, name string) int64 {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionInteger {
			return opt.IntValue()
		}
	}
	return 0
}

func optionUserID(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionUser {
			return opt.Value.(string)
		}
	}
	return ""
}
