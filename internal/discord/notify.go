package discord

import "go.uber.org/zap"

// DirectMessage DMs the member. Fire-and-forget: notification failures are
// logged, never propagated, so a closed-DM user can't fail a reconciliation.
func (s *Service) DirectMessage(memberID, content string) {
	ch, err := s.session.UserChannelCreate(memberID)
	if err != nil {
		s.log.Debug("dm channel create failed",
			zap.String("member_id", memberID), zap.Error(err))
		return
	}
	if _, err := s.session.ChannelMessageSend(ch.ID, content); err != nil {
		s.log.Debug("dm send failed",
			zap.String("member_id", memberID), zap.Error(err))
	}
}
