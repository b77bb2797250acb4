package source

import "testing"

func TestDedupCommunitiesPrefersHighestSubscribers(t *testing.T) {
	in := []Community{
		{Name: "golang", Subscribers: 100},
		{Name: "golang", Subscribers: 500},
		{Name: "rust", Subscribers: 50, IsNSFW: true},
		{Name: "python", Subscribers: 200},
	}

	out := dedupCommunities(in, 10)
	if len(out) != 2 {
		t.Fatalf("expected NSFW dropped and golang de-duped, got %d communities", len(out))
	}
	if out[0].Name != "golang" || out[0].Subscribers != 500 {
		t.Errorf("expected golang to keep the 500-subscriber record and sort first, got %+v", out[0])
	}
	if out[1].Name != "python" || out[1].Subscribers != 200 {
		t.Errorf("expected python (200 subs) second, got %+v", out[1])
	}
}

func TestDedupCommunitiesTruncatesToLimit(t *testing.T) {
	in := []Community{
		{Name: "a", Subscribers: 300},
		{Name: "b", Subscribers: 200},
		{Name: "c", Subscribers: 100},
	}
	out := dedupCommunities(in, 2)
	if len(out) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(out))
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("[deleted]", "", "", "author3"); got != "author3" {
		t.Errorf("firstNonEmpty = %q, want author3", got)
	}
	if got := firstNonEmpty("[deleted]", "", ""); got != "[deleted]" {
		t.Errorf("firstNonEmpty = %q, want fallback", got)
	}
}

func TestValidateEnum(t *testing.T) {
	if err := validateEnum("new", []string{"hot", "new", "top"}, "sort"); err != nil {
		t.Errorf("expected valid enum, got error: %v", err)
	}
	if err := validateEnum("bogus", []string{"hot", "new", "top"}, "sort"); err == nil {
		t.Error("expected error for invalid enum value")
	}
}

func TestValidateScrapeParams(t *testing.T) {
	if err := validateScrapeParams("new", "day"); err != nil {
		t.Errorf("expected valid params, got error: %v", err)
	}
	if err := validateScrapeParams("new", ""); err != nil {
		t.Errorf("expected empty time filter to be accepted, got error: %v", err)
	}
	if err := validateScrapeParams("bogus", "day"); err == nil {
		t.Error("expected error for invalid sort")
	}
	if err := validateScrapeParams("new", "bogus"); err == nil {
		t.Error("expected error for invalid time filter")
	}
}
