package profile_refresh

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	jobrt "github.com/yungbote/rewardcore-backend/internal/jobs/runtime"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/profile"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// Window of fraud signals feeding the authenticity aggregate.
const trustSignalWindow = 30 * 24 * time.Hour

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	userID, ok := jc.PayloadUUID("user_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("profile_refresh: missing user_id"))
		return nil
	}
	if p.db == nil || p.states == nil || p.profiles == nil || p.badges == nil || p.actions == nil {
		jc.Fail("validate", fmt.Errorf("profile_refresh: missing deps"))
		return nil
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	trigger := jc.PayloadString("trigger")
	now := time.Now().UTC()

	state, err := p.states.Get(dbc, userID)
	if err != nil {
		jc.Fail("load", err)
		return nil
	}
	if state == nil {
		jc.Complete("done", map[string]any{"status": "no_state"})
		return nil
	}

	existing, err := p.profiles.Get(dbc, userID)
	if err != nil {
		jc.Fail("load", err)
		return nil
	}
	// Watermark skip: nothing new to derive from.
	if existing != nil && existing.DerivedFromStateAt != nil &&
		existing.ProfileVersion == profile.Version &&
		!existing.DerivedFromStateAt.Before(state.UpdatedAt) {
		observability.Current().IncProfileRefresh("unchanged")
		jc.Complete("done", map[string]any{"status": "unchanged"})
		return nil
	}

	jc.Progress("derive", 20)

	st, err := sequence.Unmarshal(state.Vector)
	if err != nil {
		jc.Fail("derive", err)
		return nil
	}
	catalog, err := p.actions.ListSelectable(dbc)
	if err != nil {
		jc.Fail("derive", err)
		return nil
	}
	derived := profile.Derive(st, catalog, profile.DefaultBadgeRules())

	persisted, err := p.badges.ListByUser(dbc, userID)
	if err != nil {
		jc.Fail("derive", err)
		return nil
	}
	had := make(map[string]bool, len(persisted))
	for _, b := range persisted {
		if b != nil {
			had[b.BadgeKey] = true
		}
	}

	newBadges := 0
	for _, b := range derived.Badges {
		if err := p.badges.Award(dbc, &types.ProfileBadge{
			UserID:    userID,
			BadgeKey:  b.Key,
			Label:     b.Label,
			Rarity:    b.Rarity,
			Prestige:  b.Prestige,
			AwardedAt: now,
		}); err != nil {
			jc.Fail("award", err)
			return nil
		}
		if !had[b.Key] {
			newBadges++
			observability.Current().IncBadgeAwarded(b.Key)
		}
	}

	merged := profile.MergeBadges(persisted, derived.Badges)
	prestige := profile.TotalPrestige(merged)
	tier := p.trustTier(dbc, userID, state, now)

	jc.Progress("render", 60)
	assetKey, assetURL := p.renderCard(dbc, userID, tier, prestige, merged, state.UpdatedAt)
	if assetKey == "" && existing != nil {
		assetKey = existing.AssetBucketKey
		assetURL = existing.AssetURL
	}

	badgesJSON, err := json.Marshal(merged)
	if err != nil {
		jc.Fail("persist", err)
		return nil
	}

	derivedAt := state.UpdatedAt
	sp := &types.SocialProfile{
		UserID:             userID,
		TrustTier:          tier,
		Prestige:           prestige,
		Badges:             datatypes.JSON(badgesJSON),
		AssetBucketKey:     assetKey,
		AssetURL:           assetURL,
		DerivedFromStateAt: &derivedAt,
		ProfileVersion:     profile.Version,
	}
	if existing != nil {
		sp.ID = existing.ID
		sp.CreatedAt = existing.CreatedAt
	}
	if err := p.profiles.Upsert(dbc, sp); err != nil {
		jc.Fail("persist", err)
		return nil
	}

	if p.bus != nil {
		if err := p.bus.Publish(jc.Ctx, bus.Event{
			Kind:   bus.EventProfileChanged,
			UserID: &userID,
			At:     now,
			Data: map[string]any{
				"trust_tier":  tier,
				"prestige":    prestige,
				"badge_count": len(merged),
				"trigger":     trigger,
			},
		}); err != nil {
			p.log.Warn("profile_refresh: publish failed", "user_id", userID.String(), "error", err)
		}
	}

	observability.Current().IncProfileRefresh("refreshed")
	jc.Complete("done", map[string]any{
		"status":     "refreshed",
		"trust_tier": tier,
		"prestige":   prestige,
		"badges":     len(merged),
		"new_badges": newBadges,
	})
	return nil
}

// trustTier folds recent authenticity evidence and account tenure into a
// tier. State row age stands in for account age; both start at the first
// ingested event.
func (p *Pipeline) trustTier(dbc dbctx.Context, userID uuid.UUID, state *types.UserState, now time.Time) string {
	var risks []float64
	if p.fraudSignals != nil {
		rows, err := p.fraudSignals.ListByUserSince(dbc, userID, now.Add(-trustSignalWindow), 200)
		if err != nil {
			p.log.Warn("profile_refresh: fraud signal scan failed", "user_id", userID.String(), "error", err)
		}
		for _, s := range rows {
			if s != nil {
				risks = append(risks, s.Severity)
			}
		}
	}
	return profile.TrustTier(profile.Authenticity(risks), now.Sub(state.CreatedAt), p.trustCfg)
}

// renderCard paints and uploads the display asset. Failures degrade to a
// profile without an asset rather than failing the refresh.
func (p *Pipeline) renderCard(dbc dbctx.Context, userID uuid.UUID, tier string, prestige int, badges []profile.Badge, watermark time.Time) (string, string) {
	if p.renderer == nil || p.buckets == nil {
		return "", ""
	}
	byStrength := make([]profile.Badge, len(badges))
	copy(byStrength, badges)
	sort.Slice(byStrength, func(i, j int) bool { return byStrength[i].Prestige > byStrength[j].Prestige })

	buf, err := p.renderer.Render(tier, prestige, byStrength)
	if err != nil {
		p.log.Warn("profile_refresh: card render failed", "user_id", userID.String(), "error", err)
		return "", ""
	}
	key := fmt.Sprintf("profile_card/%s/%d.png", userID, watermark.UTC().Unix())
	if err := p.buckets.UploadFile(dbc, key, &buf); err != nil {
		p.log.Warn("profile_refresh: card upload failed", "user_id", userID.String(), "key", key, "error", err)
		return "", ""
	}
	return key, p.buckets.GetPublicURL(key)
}
