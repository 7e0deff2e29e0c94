// Package listener provides the analytics consumers that hang off the
// router and the order books: traded-volume counting, OHLC bars, depth
// snapshots, top-of-book impact and chain archival. They observe the
// reconstruction core and never mutate it.
package listener

import (
	"tapebook/internal/chain"
	"tapebook/internal/domain"
	"tapebook/internal/event"
	"tapebook/internal/router"
)

// VolumeCounter tallies traded volume and trade count per market from
// fill reports. Only aggressive fills are counted, so each match
// contributes exactly once however many passive counterparties it had.
type VolumeCounter struct {
	router.NopListener
	volume map[domain.Market]int64
	trades map[domain.Market]int
}

// NewVolumeCounter creates an empty counter.
func NewVolumeCounter() *VolumeCounter {
	return &VolumeCounter{
		volume: make(map[domain.Market]int64),
		trades: make(map[domain.Market]int),
	}
}

func (v *VolumeCounter) OnPartialFill(ev *event.PartialFill, _ *chain.Chain) {
	if !ev.Aggressor {
		return
	}
	v.record(ev.Market, ev.FillQty)
}

func (v *VolumeCounter) OnFullFill(ev *event.FullFill, _ *chain.Chain) {
	if !ev.Aggressor {
		return
	}
	v.record(ev.Market, ev.FillQty)
}

func (v *VolumeCounter) record(m domain.Market, qty int64) {
	v.volume[m] += qty
	v.trades[m]++
}

// Volume returns the total traded quantity seen for a market.
func (v *VolumeCounter) Volume(m domain.Market) int64 { return v.volume[m] }

// Trades returns the number of matches seen for a market.
func (v *VolumeCounter) Trades(m domain.Market) int { return v.trades[m] }
