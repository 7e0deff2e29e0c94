package listener

import (
	"log/slog"

	"tapebook/internal/chain"
	"tapebook/internal/domain"
	"tapebook/internal/event"
	"tapebook/internal/infra/storage"
	"tapebook/internal/router"
)

// BarSink receives completed bars. *storage.Storage satisfies it.
type BarSink interface {
	SaveBar(bar *storage.Bar) error
}

// OHLCBuilder aggregates fill prices into fixed-interval OHLC bars per
// market. Completed bars are handed to the sink, if any, and kept in
// memory. Only aggressive fills contribute, so each match counts once.
type OHLCBuilder struct {
	router.NopListener
	interval int64 // bar width, unix micros
	sink     BarSink
	open     map[domain.Market]*storage.Bar
	done     map[domain.Market][]storage.Bar
}

// NewOHLCBuilder creates a builder with the given bar width. sink may be
// nil to keep bars in memory only.
func NewOHLCBuilder(interval int64, sink BarSink) *OHLCBuilder {
	return &OHLCBuilder{
		interval: interval,
		sink:     sink,
		open:     make(map[domain.Market]*storage.Bar),
		done:     make(map[domain.Market][]storage.Bar),
	}
}

func (o *OHLCBuilder) OnPartialFill(ev *event.PartialFill, _ *chain.Chain) {
	if !ev.Aggressor {
		return
	}
	o.update(ev.Market, ev.Ts, ev.FillPrice, ev.FillQty)
}

func (o *OHLCBuilder) OnFullFill(ev *event.FullFill, _ *chain.Chain) {
	if !ev.Aggressor {
		return
	}
	o.update(ev.Market, ev.Ts, ev.FillPrice, ev.FillQty)
}

func (o *OHLCBuilder) update(m domain.Market, ts int64, price domain.Price, qty int64) {
	start := ts - ts%o.interval
	cur := o.open[m]
	if cur != nil && cur.StartTs != start {
		o.flush(m, cur)
		cur = nil
	}
	p := price.Decimal()
	if cur == nil {
		o.open[m] = &storage.Bar{
			Market:   m.String(),
			StartTs:  start,
			Open:     p,
			High:     p,
			Low:      p,
			Close:    p,
			Volume:   qty,
			NumFills: 1,
		}
		return
	}
	if p.GreaterThan(cur.High) {
		cur.High = p
	}
	if p.LessThan(cur.Low) {
		cur.Low = p
	}
	cur.Close = p
	cur.Volume += qty
	cur.NumFills++
}

func (o *OHLCBuilder) flush(m domain.Market, bar *storage.Bar) {
	o.done[m] = append(o.done[m], *bar)
	delete(o.open, m)
	if o.sink == nil {
		return
	}
	if err := o.sink.SaveBar(bar); err != nil {
		slog.Error("failed to persist bar",
			slog.String("market", bar.Market), slog.Any("error", err))
	}
}

// Flush closes and emits all open bars, e.g. at end of tape.
func (o *OHLCBuilder) Flush() {
	for m, bar := range o.open {
		o.flush(m, bar)
	}
}

// Bars returns the completed bars for a market, oldest first.
func (o *OHLCBuilder) Bars(m domain.Market) []storage.Bar { return o.done[m] }
