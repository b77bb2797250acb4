// Package plan implements PlanLimits: a pure, side-effect-free lookup from
// subscription tier to the caps the rest of the pipeline gates on.
package plan

import "github.com/cheolwanpark/leadsignal/engine/internal/db"

// Unbounded is the sentinel used for "no cap" (maxSubredditsPerProfile on PRO).
const Unbounded = 999

// Limits is one row of the PlanLimits table.
type Limits struct {
	MaxProfiles             int
	MaxSubredditsPerProfile int
	MaxPostsPerPoll         int
	MaxAutoSuggestions      int
}

var table = map[db.Tier]Limits{
	db.TierFreeTrial: {MaxProfiles: 1, MaxSubredditsPerProfile: 15, MaxPostsPerPoll: 40, MaxAutoSuggestions: 5},
	db.TierStarter:   {MaxProfiles: 1, MaxSubredditsPerProfile: 15, MaxPostsPerPoll: 40, MaxAutoSuggestions: 5},
	db.TierGrowth:    {MaxProfiles: 3, MaxSubredditsPerProfile: 20, MaxPostsPerPoll: 100, MaxAutoSuggestions: 15},
	db.TierPro:       {MaxProfiles: 10, MaxSubredditsPerProfile: Unbounded, MaxPostsPerPoll: 300, MaxAutoSuggestions: 30},
	db.TierExpired:   {MaxProfiles: 0, MaxSubredditsPerProfile: 0, MaxPostsPerPoll: 0, MaxAutoSuggestions: 0},
}

// Resolve returns the Limits row for a tier. Unknown tiers resolve to the
// STARTER row, the same "legacy" bucket spec.md groups FREE_TRIAL/STARTER
// under.
func Resolve(tier db.Tier) Limits {
	if l, ok := table[tier]; ok {
		return l
	}
	return table[db.TierStarter]
}

// NextTier names the upgrade target for a tier that just hit a plan limit,
// mirroring plan_limits.py's PLAN_LIMITS.next_tier column: FREE_TRIAL and
// STARTER both point at GROWTH, GROWTH points at PRO, PRO has nowhere to
// go (""), and EXPIRED points back at STARTER (resubscribe).
func NextTier(tier db.Tier) db.Tier {
	switch tier {
	case db.TierFreeTrial, db.TierStarter:
		return db.TierGrowth
	case db.TierGrowth:
		return db.TierPro
	case db.TierExpired:
		return db.TierStarter
	default:
		return ""
	}
}

// IsPremiumTier reports whether tier uses the premium (GROWTH/PRO) poll
// schedule rather than the starter one. EXPIRED never polls regardless.
func IsPremiumTier(tier db.Tier) bool {
	switch tier {
	case db.TierGrowth, db.TierPro:
		return true
	default:
		return false
	}
}

// PollHours selects tier's configured poll hours (UTC), choosing between
// the starter and premium schedules loaded from POLL_TIMES_STARTER and
// POLL_TIMES_PREMIUM at startup. EXPIRED accounts never poll.
func PollHours(tier db.Tier, starterHours, premiumHours []int) []int {
	if tier == db.TierExpired {
		return nil
	}
	if IsPremiumTier(tier) {
		return premiumHours
	}
	return starterHours
}

// PollsAt reports whether currentHourUTC is one of tier's configured poll
// hours.
func PollsAt(tier db.Tier, currentHourUTC int, starterHours, premiumHours []int) bool {
	for _, h := range PollHours(tier, starterHours, premiumHours) {
		if h == currentHourUTC {
			return true
		}
	}
	return false
}
