// Package bot runs the Discord side of the membership service: slash
// commands, training-channel message handling, and scheduled guild tasks.
package bot

import (
	"context"

	"membership-bot/config"
	"membership-bot/internal/discord"
	"membership-bot/internal/store"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Syncer reconciles one member's roles against the ledger.
type Syncer interface {
	SyncMember(ctx context.Context, memberID string) error
}

type Bot struct {
	session  *discordgo.Session
	cfg      *config.Config
	ledger   *store.LedgerStore
	training *store.TrainingStore
	dm       *discord.Service
	syncer   Syncer
	log      *zap.Logger
}

func New(session *discordgo.Session, cfg *config.Config, ledger *store.LedgerStore, training *store.TrainingStore, dm *discord.Service, syncer Syncer, log *zap.Logger) *Bot {
	b := &Bot{
		session:  session,
		cfg:      cfg,
		ledger:   ledger,
		training: training,
		dm:       dm,
		syncer:   syncer,
		log:      log,
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	session.AddHandler(b.onReady)
	session.AddHandler(b.onInteraction)
	session.AddHandler(b.onMessage)

	return b
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	b.log.Info("discord session ready",
		zap.String("user", s.State.User.Username),
		zap.String("guild_id", b.cfg.DiscordGuildID))

	if _, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, b.cfg.DiscordGuildID, commandDefinitions()); err != nil {
		b.log.Error("registering slash commands", zap.Error(err))
	}
}

// channelByName resolves a guild channel by its configured name, preferring
// gateway state.
func (b *Bot) channelByName(name string) (*discordgo.Channel, error) {
	guild, err := b.session.State.Guild(b.cfg.DiscordGuildID)
	if err == nil {
		for _, ch := range guild.Channels {
			if ch.Name == name {
				return ch, nil
			}
		}
	}

	channels, err := b.session.GuildChannels(b.cfg.DiscordGuildID)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		if ch.Name == name {
			return ch, nil
		}
	}
	return nil, nil
}
