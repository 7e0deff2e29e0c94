package book

import (
	"testing"

	"tapebook/internal/domain"
)

func TestSideIndexOrdering(t *testing.T) {
	t.Run("Bids Best First", func(t *testing.T) {
		si := NewSideIndex(domain.Buy)
		for _, s := range []string{"34.48", "34.52", "34.50"} {
			si.GetOrCreate(px(t, s))
		}
		best, ok := si.BestPrice()
		if !ok || !best.Equal(px(t, "34.52")) {
			t.Errorf("best = %v, want 34.52", best)
		}
		worst, _ := si.WorstPrice()
		if !worst.Equal(px(t, "34.48")) {
			t.Errorf("worst = %v, want 34.48", worst)
		}
		prices := si.Prices()
		want := []string{"34.52", "34.5", "34.48"}
		for i, p := range prices {
			if p.String() != want[i] {
				t.Fatalf("prices = %v, want %v", prices, want)
			}
		}
	})

	t.Run("Asks Best First", func(t *testing.T) {
		si := NewSideIndex(domain.Sell)
		for _, s := range []string{"34.55", "34.52", "34.60"} {
			si.GetOrCreate(px(t, s))
		}
		best, _ := si.BestPrice()
		if !best.Equal(px(t, "34.52")) {
			t.Errorf("best = %v, want 34.52", best)
		}
		worst, _ := si.WorstPrice()
		if !worst.Equal(px(t, "34.60")) {
			t.Errorf("worst = %v, want 34.60", worst)
		}
	})
}

func TestSideIndexStructuralChanges(t *testing.T) {
	si := NewSideIndex(domain.Buy)
	si.GetOrCreate(px(t, "34.50"))
	si.GetOrCreate(px(t, "34.52"))

	// Re-fetching an existing level must not create a duplicate.
	si.GetOrCreate(px(t, "34.50"))
	if si.NumLevels() != 2 {
		t.Fatalf("levels = %d, want 2", si.NumLevels())
	}

	si.Delete(px(t, "34.52"))
	best, ok := si.BestPrice()
	if !ok || !best.Equal(px(t, "34.50")) {
		t.Errorf("best after delete = %v, want 34.50", best)
	}

	si.Delete(px(t, "34.50"))
	if !si.Empty() {
		t.Error("index should be empty")
	}
	if _, ok := si.BestPrice(); ok {
		t.Error("empty index has no best price")
	}
	if len(si.Prices()) != 0 {
		t.Error("empty index has no prices")
	}
}
