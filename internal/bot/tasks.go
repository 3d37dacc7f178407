package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	weeklyPostHourUTC  = 9
	leaderboardHourUTC = 18
	maintenanceHourUTC = 10

	expiryReminderDays = 3
	leaderboardSize    = 10
)

// WeeklyVideo is one entry of the rotating video catalogue on disk.
type WeeklyVideo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// RunTasks drives the scheduled guild jobs off a one-minute tick. Each job
// keeps a per-day guard so a restart can't double-post.
func (b *Bot) RunTasks(ctx context.Context) {
	var lastWeekly, lastLeaderboard, lastMaintenance string

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			today := now.Format("2006-01-02")

			if now.Weekday() == time.Monday && now.Hour() >= weeklyPostHourUTC && lastWeekly != today {
				lastWeekly = today
				b.postWeeklyVideo(now)
			}
			if now.Weekday() == time.Sunday && now.Hour() >= leaderboardHourUTC && lastLeaderboard != today {
				lastLeaderboard = today
				b.postLeaderboard(ctx, now)
			}
			if now.Hour() >= maintenanceHourUTC && lastMaintenance != today {
				lastMaintenance = today
				b.runDailyMaintenance(ctx, now)
			}
		}
	}
}

// postWeeklyVideo rotates through the catalogue by ISO week: the previous
// pinned post moves to the archive channel, the new one gets pinned.
func (b *Bot) postWeeklyVideo(now time.Time) {
	videos, err := b.loadWeeklyVideos()
	if err != nil {
		b.log.Error("loading weekly videos", zap.Error(err))
		return
	}
	if len(videos) == 0 {
		b.log.Warn("weekly video catalogue is empty")
		return
	}

	weekly, err := b.channelByName(b.cfg.WeeklyChannel)
	if err != nil || weekly == nil {
		b.log.Error("weekly channel not found",
			zap.String("channel", b.cfg.WeeklyChannel), zap.Error(err))
		return
	}

	b.archivePinned(weekly)

	_, week := now.ISOWeek()
	video := videos[(week-1)%len(videos)]

	msg, err := b.session.ChannelMessageSend(weekly.ID,
		fmt.Sprintf("📺 **Video of the week: %s**\n%s", video.Title, video.URL))
	if err != nil {
		b.log.Error("posting weekly video", zap.Error(err))
		return
	}
	if err := b.session.ChannelMessagePin(weekly.ID, msg.ID); err != nil {
		b.log.Warn("pinning weekly video", zap.Error(err))
	}

	b.log.Info("weekly video posted",
		zap.Int("week", week), zap.String("title", video.Title))
}

// archivePinned moves this bot's pinned posts out of the weekly channel into
// the archive channel.
func (b *Bot) archivePinned(weekly *discordgo.Channel) {
	pinned, err := b.session.ChannelMessagesPinned(weekly.ID)
	if err != nil {
		b.log.Warn("listing pinned messages", zap.Error(err))
		return
	}

	archive, err := b.channelByName(b.cfg.ArchiveChannel)
	if err != nil {
		b.log.Warn("archive channel lookup", zap.Error(err))
	}

	botID := b.session.State.User.ID
	for _, msg := range pinned {
		if msg.Author == nil || msg.Author.ID != botID {
			continue
		}
		if err := b.session.ChannelMessageUnpin(weekly.ID, msg.ID); err != nil {
			b.log.Warn("unpinning previous video", zap.Error(err))
			continue
		}
		if archive != nil {
			if _, err := b.session.ChannelMessageSend(archive.ID, msg.Content); err != nil {
				b.log.Warn("archiving previous video", zap.Error(err))
			}
		}
	}
}

func (b *Bot) loadWeeklyVideos() ([]WeeklyVideo, error) {
	data, err := os.ReadFile(b.cfg.WeeklyVideosPath)
	if err != nil {
		return nil, err
	}
	var videos []WeeklyVideo
	if err := json.Unmarshal(data, &videos); err != nil {
		return nil, err
	}
	return videos, nil
}

// postLeaderboard posts the week's DONE counts to the training channel.
func (b *Bot) postLeaderboard(ctx context.Context, now time.Time) {
	since := now.AddDate(0, 0, -7)
	rows, err := b.training.Leaderboard(ctx, since, leaderboardSize)
	if err != nil {
		b.log.Error("building leaderboard", zap.Error(err))
		return
	}

	ch, err := b.channelByName(b.cfg.TrainingChannel)
	if err != nil || ch == nil {
		b.log.Error("training channel not found",
			zap.String("channel", b.cfg.TrainingChannel), zap.Error(err))
		return
	}

	if len(rows) == 0 {
		if _, err := b.session.ChannelMessageSend(ch.ID, "🏆 No training sessions logged this week. Next week is yours!"); err != nil {
			b.log.Error("posting leaderboard", zap.Error(err))
		}
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 **This week's training leaderboard**\n")
	medals := []string{"🥇", "🥈", "🥉"}
	for idx, row := range rows {
		prefix := fmt.Sprintf("%d.", idx+1)
		if idx < len(medals) {
			prefix = medals[idx]
		}
		fmt.Fprintf(&sb, "%s <@%s> — %d sessions\n", prefix, row.MemberID, row.Count)
	}

	if _, err := b.session.ChannelMessageSend(ch.ID, sb.String()); err != nil {
		b.log.Error("posting leaderboard", zap.Error(err))
	}
}

// runDailyMaintenance sends expiry reminders and settles the Consistent role.
func (b *Bot) runDailyMaintenance(ctx context.Context, now time.Time) {
	b.sendExpiryReminders(ctx, now)
	if b.cfg.ConsistentRoleID != "" {
		b.settleConsistentRole(ctx, now)
	}
}

func (b *Bot) sendExpiryReminders(ctx context.Context, now time.Time) {
	recs, err := b.ledger.All(ctx)
	if err != nil {
		b.log.Error("reading ledger for reminders", zap.Error(err))
		return
	}

	for _, rec := range recs {
		if !rec.Active(now) {
			continue
		}
		left := rec.ExpiresAt.Sub(now)
		if left > time.Duration(expiryReminderDays)*24*time.Hour {
			continue
		}
		days := int(left.Hours()/24) + 1
		b.dm.DirectMessage(rec.MemberID, fmt.Sprintf(
			"⏰ Your **%s** subscription expires in %d day(s), on %s. Renew to keep your access.",
			rec.Tier, days, rec.ExpiresAt.Format("2006-01-02")))
	}
}

// settleConsistentRole grants the Consistent role to members who hit the
// weekly session target and removes it from those who fell below.
func (b *Bot) settleConsistentRole(ctx context.Context, now time.Time) {
	since := now.AddDate(0, 0, -b.cfg.ConsistentWindowDays)

	after := ""
	for {
		members, err := b.session.GuildMembers(b.cfg.DiscordGuildID, after, 1000)
		if err != nil {
			b.log.Error("listing guild members", zap.Error(err))
			return
		}
		if len(members) == 0 {
			return
		}

		for _, m := range members {
			if m.User == nil || m.User.Bot {
				continue
			}

			count, err := b.training.CompletionsSince(ctx, m.User.ID, since)
			if err != nil {
				b.log.Warn("counting completions",
					zap.String("member_id", m.User.ID), zap.Error(err))
				continue
			}

			has := false
			for _, roleID := range m.Roles {
				if roleID == b.cfg.ConsistentRoleID {
					has = true
					break
				}
			}

			switch {
			case count >= int64(b.cfg.ConsistentRequired) && !has:
				if err := b.session.GuildMemberRoleAdd(b.cfg.DiscordGuildID, m.User.ID, b.cfg.ConsistentRoleID); err != nil {
					b.log.Warn("granting consistent role",
						zap.String("member_id", m.User.ID), zap.Error(err))
					continue
				}
				b.dm.DirectMessage(m.User.ID,
					"🔥 You trained every day this week. The **Consistent** role is yours!")
			case count < int64(b.cfg.ConsistentRequired) && has:
				if err := b.session.GuildMemberRoleRemove(b.cfg.DiscordGuildID, m.User.ID, b.cfg.ConsistentRoleID); err != nil {
					b.log.Warn("removing consistent role",
						zap.String("member_id", m.User.ID), zap.Error(err))
				}
			}
		}

		if len(members) < 1000 {
			return
		}
		after = members[len(members)-1].User.ID
	}
}
