package book

import (
	"sort"

	"tapebook/internal/domain"
)

// SideIndex maps price to PriceLevel for one side of a book. Best and
// worst prices and the sorted price list are cached scalars, invalidated
// only on structural change (a brand-new price inserted or a price
// deleted), never on quantity-only updates. Per-fill hot paths therefore
// never touch the sort.
type SideIndex struct {
	side   domain.Side
	levels map[string]*PriceLevel

	sorted    []domain.Price // best-first once recomputed
	sortDirty bool

	best      *domain.Price
	worst     *domain.Price
	bestDirty bool
}

// NewSideIndex creates an empty index for the given side.
func NewSideIndex(side domain.Side) *SideIndex {
	return &SideIndex{
		side:   side,
		levels: make(map[string]*PriceLevel),
	}
}

// Side returns which half of the book this index holds.
func (s *SideIndex) Side() domain.Side { return s.side }

// Level returns the level at the given price, if present.
func (s *SideIndex) Level(price domain.Price) (*PriceLevel, bool) {
	l, ok := s.levels[price.Key()]
	return l, ok
}

// GetOrCreate returns the level at the given price, inserting an empty
// one (a structural change) if absent.
func (s *SideIndex) GetOrCreate(price domain.Price) *PriceLevel {
	key := price.Key()
	if l, ok := s.levels[key]; ok {
		return l
	}
	l := NewPriceLevel(price)
	s.levels[key] = l
	s.invalidate()
	return l
}

// Delete removes the level at the given price, a structural change.
func (s *SideIndex) Delete(price domain.Price) {
	key := price.Key()
	if _, ok := s.levels[key]; !ok {
		return
	}
	delete(s.levels, key)
	s.invalidate()
}

// BestPrice returns the most aggressive resting price: the maximum for
// bids, the minimum for asks. ok is false when the side is empty.
func (s *SideIndex) BestPrice() (domain.Price, bool) {
	s.recomputeBest()
	if s.best == nil {
		return domain.Price{}, false
	}
	return *s.best, true
}

// WorstPrice returns the least aggressive resting price.
func (s *SideIndex) WorstPrice() (domain.Price, bool) {
	s.recomputeBest()
	if s.worst == nil {
		return domain.Price{}, false
	}
	return *s.worst, true
}

// Prices returns all resting prices, best first. The slice is the cached
// one; callers must not modify it.
func (s *SideIndex) Prices() []domain.Price {
	if s.sortDirty || s.sorted == nil {
		s.sorted = make([]domain.Price, 0, len(s.levels))
		for _, l := range s.levels {
			s.sorted = append(s.sorted, l.price)
		}
		sort.Slice(s.sorted, func(i, j int) bool {
			return s.sorted[i].BetterThan(s.sorted[j], s.side)
		})
		s.sortDirty = false
	}
	return s.sorted
}

// Levels returns every level on the side in no particular order, for
// full-side scans.
func (s *SideIndex) Levels() []*PriceLevel {
	out := make([]*PriceLevel, 0, len(s.levels))
	for _, l := range s.levels {
		out = append(out, l)
	}
	return out
}

// NumLevels returns the number of distinct resting prices.
func (s *SideIndex) NumLevels() int { return len(s.levels) }

// Empty reports whether no prices rest on the side.
func (s *SideIndex) Empty() bool { return len(s.levels) == 0 }

func (s *SideIndex) invalidate() {
	s.bestDirty = true
	s.sortDirty = true
}

func (s *SideIndex) recomputeBest() {
	if !s.bestDirty {
		return
	}
	s.best = nil
	s.worst = nil
	for _, l := range s.levels {
		p := l.price
		if s.best == nil || p.BetterThan(*s.best, s.side) {
			best := p
			s.best = &best
		}
		if s.worst == nil || p.WorseThan(*s.worst, s.side) {
			worst := p
			s.worst = &worst
		}
	}
	s.bestDirty = false
}
