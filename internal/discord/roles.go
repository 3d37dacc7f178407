// Package discord adapts the discordgo session to the narrow surfaces the
// reconciler and bot need: member role reads/writes and best-effort DMs.
package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// ErrMemberNotFound is returned when the guild no longer has the member
// (left or was kicked). Callers skip the member instead of failing a sweep.
var ErrMemberNotFound = errors.New("member not found in guild")

type Service struct {
	session *discordgo.Session
	log     *zap.Logger
}

func NewService(session *discordgo.Session, log *zap.Logger) *Service {
	return &Service{session: session, log: log}
}

// MemberRoles returns the member's current role IDs, preferring gateway state
// over a REST fetch.
func (s *Service) MemberRoles(ctx context.Context, guildID, memberID string) ([]string, error) {
	if m, err := s.session.State.Member(guildID, memberID); err == nil {
		return m.Roles, nil
	}

	m, err := s.session.GuildMember(guildID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return m.Roles, nil
}

func (s *Service) AddRole(ctx context.Context, guildID, memberID, roleID string) error {
	err := s.session.GuildMemberRoleAdd(guildID, memberID, roleID, discordgo.WithContext(ctx))
	if isUnknownMember(err) {
		return ErrMemberNotFound
	}
	return err
}

func (s *Service) RemoveRole(ctx context.Context, guildID, memberID, roleID string) error {
	err := s.session.GuildMemberRoleRemove(guildID, memberID, roleID, discordgo.WithContext(ctx))
	if isUnknownMember(err) {
		return ErrMemberNotFound
	}
	return err
}

func isUnknownMember(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		return rest.Message.Code == discordgo.ErrCodeUnknownMember ||
			rest.Message.Code == discordgo.ErrCodeUnknownUser
	}
	return false
}
