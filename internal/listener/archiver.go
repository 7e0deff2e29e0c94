package listener

import (
	"log/slog"

	"tapebook/internal/chain"
	"tapebook/internal/infra/storage"
	"tapebook/internal/router"
)

// ChainSink receives summaries of closed chains. *storage.Storage
// satisfies it.
type ChainSink interface {
	ArchiveChain(sum *storage.ChainSummary) error
}

// ChainArchiver persists a summary of every chain as it closes. The
// router drops closed chains from its live map, so the close
// notification is the last chance to capture them.
type ChainArchiver struct {
	router.NopListener
	sink ChainSink
}

// NewChainArchiver creates an archiver writing to sink.
func NewChainArchiver(sink ChainSink) *ChainArchiver {
	return &ChainArchiver{sink: sink}
}

func (a *ChainArchiver) OnChainClose(ch *chain.Chain) {
	events := ch.Events()
	var closedTs int64
	if len(events) > 0 {
		closedTs = events[len(events)-1].GetTs()
	}
	sum := &storage.ChainSummary{
		ChainID:     ch.ID(),
		Market:      ch.Market().String(),
		Side:        ch.Side().String(),
		CloseReason: ch.CloseReason().String(),
		NumEvents:   len(events),
		NumSubChain: len(ch.SubChains()),
		NumMatches:  len(ch.Matches()),
		ClosedTs:    closedTs,
	}
	if err := a.sink.ArchiveChain(sum); err != nil {
		slog.Error("failed to archive chain",
			slog.String("chain", ch.ID()), slog.Any("error", err))
	}
}
