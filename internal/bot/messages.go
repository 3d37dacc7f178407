package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// onMessage watches the training channel for DONE check-ins and video
// submissions. Everything else is ignored.
func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID != b.cfg.DiscordGuildID {
		return
	}

	ch, err := s.State.Channel(m.ChannelID)
	if err != nil {
		if ch, err = s.Channel(m.ChannelID); err != nil {
			return
		}
	}
	if ch.Name != b.cfg.TrainingChannel {
		return
	}

	ctx := context.Background()

	if strings.EqualFold(strings.TrimSpace(m.Content), "DONE") {
		if err := b.training.AddCompletion(ctx, m.Author.ID, "done"); err != nil {
			b.log.Error("logging completion",
				zap.String("member_id", m.Author.ID), zap.Error(err))
			return
		}
		if err := s.MessageReactionAdd(m.ChannelID, m.ID, "✅"); err != nil {
			b.log.Debug("reacting to DONE", zap.Error(err))
		}
		return
	}

	if hasVideo(m) {
		url := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", m.GuildID, m.ChannelID, m.ID)
		id, err := b.training.AddSubmission(ctx, m.Author.ID, url)
		if err != nil {
			b.log.Error("recording submission",
				zap.String("member_id", m.Author.ID), zap.Error(err))
			return
		}
		if err := s.MessageReactionAdd(m.ChannelID, m.ID, "🎥"); err != nil {
			b.log.Debug("reacting to submission", zap.Error(err))
		}
		b.log.Info("training submission recorded",
			zap.Uint("submission_id", id), zap.String("member_id", m.Author.ID))
	}
}

func hasVideo(m *discordgo.MessageCreate) bool {
	for _, a := range m.Attachments {
		if strings.HasPrefix(a.ContentType, "video/") {
			return true
		}
	}
	return false
}
