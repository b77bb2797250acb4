package plan

import (
	"testing"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
)

var starterHours = []int{7, 16}
var premiumHours = []int{7, 11, 16, 22}

func TestResolveShape(t *testing.T) {
	cases := []struct {
		tier        db.Tier
		maxProfiles int
		hours       []int
	}{
		{db.TierStarter, 1, starterHours},
		{db.TierFreeTrial, 1, starterHours},
		{db.TierGrowth, 3, premiumHours},
		{db.TierPro, 10, premiumHours},
		{db.TierExpired, 0, nil},
	}

	for _, tc := range cases {
		l := Resolve(tc.tier)
		if l.MaxProfiles != tc.maxProfiles {
			t.Errorf("%s: MaxProfiles = %d, want %d", tc.tier, l.MaxProfiles, tc.maxProfiles)
		}
		for _, h := range tc.hours {
			if !PollsAt(tc.tier, h, starterHours, premiumHours) {
				t.Errorf("%s: expected hour %d to be a poll hour", tc.tier, h)
			}
		}
	}
}

func TestProUnbounded(t *testing.T) {
	l := Resolve(db.TierPro)
	if l.MaxSubredditsPerProfile != Unbounded {
		t.Errorf("PRO MaxSubredditsPerProfile = %d, want sentinel %d", l.MaxSubredditsPerProfile, Unbounded)
	}
}

func TestExpiredHasNoPollHours(t *testing.T) {
	for h := 0; h < 24; h++ {
		if PollsAt(db.TierExpired, h, starterHours, premiumHours) {
			t.Errorf("EXPIRED should never poll, but hour %d matched", h)
		}
	}
}

func TestUnknownTierFallsBackToStarter(t *testing.T) {
	l := Resolve(db.Tier("bogus"))
	if l.MaxProfiles != Resolve(db.TierStarter).MaxProfiles {
		t.Errorf("unknown tier did not fall back to STARTER shape")
	}
}

func TestIsPremiumTier(t *testing.T) {
	if IsPremiumTier(db.TierStarter) || IsPremiumTier(db.TierFreeTrial) {
		t.Error("STARTER/FREE_TRIAL should not be premium")
	}
	if !IsPremiumTier(db.TierGrowth) || !IsPremiumTier(db.TierPro) {
		t.Error("GROWTH/PRO should be premium")
	}
}
