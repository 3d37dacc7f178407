// Package reconciler converges Discord role state to the subscription ledger.
//
// Each member is in one of two time-driven states: Active (now < expires_at)
// or Expired. A sweep reads every ledger row, computes the desired role set
// for the member's state, diffs it against the roles the member actually
// holds (restricted to the managed tier roles), and issues the minimal
// remove-then-add operations. Expired members lose their tier roles and then
// their ledger row.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"membership-bot/config"
	"membership-bot/internal/discord"
	"membership-bot/internal/domain/subscriptions"
	"membership-bot/internal/domain/tiers"

	"go.uber.org/zap"
)

// Ledger is the slice of the ledger store the reconciler needs.
type Ledger interface {
	All(ctx context.Context) ([]subscriptions.Subscription, error)
	Get(ctx context.Context, memberID string) (*subscriptions.Subscription, error)
	Delete(ctx context.Context, memberID string) error
}

// RoleManager performs role reads and writes against the chat server.
// Implementations return discord.ErrMemberNotFound for departed members.
type RoleManager interface {
	MemberRoles(ctx context.Context, guildID, memberID string) ([]string, error)
	AddRole(ctx context.Context, guildID, memberID, roleID string) error
	RemoveRole(ctx context.Context, guildID, memberID, roleID string) error
}

// Notifier sends best-effort direct messages. Failures never propagate.
type Notifier interface {
	DirectMessage(memberID, content string)
}

type Reconciler struct {
	guildID      string
	tierRoles    map[tiers.Tier]string
	verifiedRole string
	interval     time.Duration

	ledger Ledger
	roles  RoleManager
	notify Notifier
	log    *zap.Logger

	sweeping atomic.Bool
}

func New(cfg *config.Config, ledger Ledger, roles RoleManager, notify Notifier, log *zap.Logger) *Reconciler {
	return &Reconciler{
		guildID:      cfg.DiscordGuildID,
		tierRoles:    cfg.TierRoles,
		verifiedRole: cfg.VerifiedRoleID,
		interval:     cfg.SweepInterval,
		ledger:       ledger,
		roles:        roles,
		notify:       notify,
		log:          log,
	}
}

// Run sweeps once immediately, then on every interval tick until ctx is done.
// A tick that arrives while a sweep is still running is dropped.
func (r *Reconciler) Run(ctx context.Context) {
	r.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep reconciles every ledger row. A failure on one member is logged and
// skipped; the remaining members are still processed this tick.
func (r *Reconciler) Sweep(ctx context.Context) {
	if !r.sweeping.CompareAndSwap(false, true) {
		r.log.Debug("sweep already running, skipping tick")
		return
	}
	defer r.sweeping.Store(false)

	recs, err := r.ledger.All(ctx)
	if err != nil {
		r.log.Error("sweep: reading ledger", zap.Error(err))
		return
	}

	var failed int
	for _, rec := range recs {
		if err := r.reconcile(ctx, rec); err != nil {
			failed++
			r.log.Warn("sweep: member skipped",
				zap.String("member_id", rec.MemberID), zap.Error(err))
		}
	}
	if failed > 0 {
		r.log.Info("sweep finished with skips",
			zap.Int("members", len(recs)), zap.Int("skipped", failed))
	}
}

// SyncMember reconciles a single member right away, bypassing the sweep.
// Used by the webhook path after a payment and by admin overrides, so role
// grants are not gated on the sweep interval.
func (r *Reconciler) SyncMember(ctx context.Context, memberID string) error {
	rec, err := r.ledger.Get(ctx, memberID)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return r.reconcile(ctx, *rec)
}

func (r *Reconciler) reconcile(ctx context.Context, rec subscriptions.Subscription) error {
	now := time.Now().UTC()
	active := rec.Active(now)

	actual, err := r.roles.MemberRoles(ctx, r.guildID, rec.MemberID)
	if errors.Is(err, discord.ErrMemberNotFound) {
		// Member left; keep the row so a rejoin before expiry still counts.
		r.log.Debug("member not in guild", zap.String("member_id", rec.MemberID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("listing roles: %w", err)
	}

	desired := r.desiredTierRoles(rec, active)
	held := r.heldTierRoles(actual)

	// Remove before add: during a tier switch the member must never hold two
	// tier roles at once. A crash in between leaves zero tier roles until the
	// next tick, which self-heals.
	for roleID := range held {
		if _, want := desired[roleID]; want {
			continue
		}
		if err := r.roles.RemoveRole(ctx, r.guildID, rec.MemberID, roleID); err != nil {
			return fmt.Errorf("removing role %s: %w", roleID, err)
		}
	}
	for roleID := range desired {
		if _, has := held[roleID]; has {
			continue
		}
		if err := r.roles.AddRole(ctx, r.guildID, rec.MemberID, roleID); err != nil {
			return fmt.Errorf("adding role %s: %w", roleID, err)
		}
	}

	if active && r.verifiedRole != "" && !contains(actual, r.verifiedRole) {
		// Verified buyer badge: granted once, never revoked here.
		if err := r.roles.AddRole(ctx, r.guildID, rec.MemberID, r.verifiedRole); err != nil {
			return fmt.Errorf("adding verified role: %w", err)
		}
	}

	if !active {
		// Revocation succeeded; only now may the row go, so a failed removal
		// is retried next tick.
		if err := r.ledger.Delete(ctx, rec.MemberID); err != nil {
			return fmt.Errorf("deleting expired record: %w", err)
		}
		r.notify.DirectMessage(rec.MemberID,
			"⚠️ Your subscription has expired and your tier access was removed. Renew any time to get it back.")
		r.log.Info("subscription expired",
			zap.String("member_id", rec.MemberID), zap.String("tier", rec.Tier))
	}

	return nil
}

// desiredTierRoles is the managed-role subset the member should hold:
// the single role mapped to their tier while active, nothing when expired.
func (r *Reconciler) desiredTierRoles(rec subscriptions.Subscription, active bool) map[string]struct{} {
	out := map[string]struct{}{}
	if !active {
		return out
	}
	if roleID, ok := r.tierRoles[tiers.Tier(rec.Tier)]; ok {
		out[roleID] = struct{}{}
	} else {
		r.log.Warn("no role mapped for tier",
			zap.String("tier", rec.Tier), zap.String("member_id", rec.MemberID))
	}
	return out
}

// heldTierRoles restricts the member's actual roles to the managed tier
// roles. Unrelated roles are never touched.
func (r *Reconciler) heldTierRoles(actual []string) map[string]struct{} {
	managed := map[string]struct{}{}
	for _, roleID := range r.tierRoles {
		managed[roleID] = struct{}{}
	}
	out := map[string]struct{}{}
	for _, roleID := range actual {
		if _, ok := managed[roleID]; ok {
			out[roleID] = struct{}{}
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
