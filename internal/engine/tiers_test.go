package engine

import (
	"errors"
	"testing"
	"time"
)

func TestTierSpecLookup(t *testing.T) {
	tiers := DefaultTiers()

	spec, err := tiers.Spec("")
	if err != nil || spec.Name != TierOverview {
		t.Errorf("empty tier = %v, %v; want overview", spec.Name, err)
	}

	spec, err = tiers.Spec(TierDeep)
	if err != nil {
		t.Fatalf("Spec(deep): %v", err)
	}
	if !spec.Rerank || spec.RerankDepth != 200 || spec.GraphHops != 3 {
		t.Errorf("deep spec = %+v", spec)
	}

	if _, err := tiers.Spec("bogus"); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestTierContracts(t *testing.T) {
	tiers := DefaultTiers()

	if tiers.Overview.GraphHops != 0 || tiers.Overview.Rerank {
		t.Errorf("overview = %+v, want no graph and no rerank", tiers.Overview)
	}
	if tiers.Overview.Limit != 3 || tiers.Exploration.Limit != 20 || tiers.Deep.Limit != 50 {
		t.Error("tier limits drifted from 3/20/50")
	}
	if tiers.Overview.Budget >= tiers.Exploration.Budget || tiers.Exploration.Budget >= tiers.Deep.Budget {
		t.Error("budgets must increase with tier depth")
	}
	if tiers.Overview.Budget != 50*time.Millisecond {
		t.Errorf("overview budget = %v", tiers.Overview.Budget)
	}
}
