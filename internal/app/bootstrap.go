package app

import (
	"log/slog"

	"tapebook/internal/book"
	"tapebook/internal/domain"
	"tapebook/internal/infra"
	"tapebook/internal/infra/storage"
	"tapebook/internal/listener"
	"tapebook/internal/router"

	"github.com/shopspring/decimal"
)

// Bootstrap orchestrates the application startup sequence: config,
// logger, storage, router, one book per configured market, and the
// analytics listeners.
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Router  *router.Router
	Markets []domain.Market

	Volume *listener.VolumeCounter
	OHLC   *listener.OHLCBuilder
	Depth  *listener.DepthTracker
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping tapebook...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (optional)
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		slog.Info("✅ Archive database initialized")
	}

	// 4. Parse markets
	for _, s := range cfg.Replay.Markets {
		m, err := domain.ParseMarket(s)
		if err != nil {
			return err
		}
		b.Markets = append(b.Markets, m)
	}

	return b.wire()
}

// wire builds the router, registers a book per market and attaches the
// analytics listeners.
func (b *Bootstrap) wire() error {
	cfg := b.Config
	b.Router = router.New()

	barInterval := int64(cfg.Analytics.BarIntervalSec) * 1_000_000
	if barInterval <= 0 {
		barInterval = 60 * 1_000_000
	}
	depthLevels := cfg.Analytics.DepthLevels
	if depthLevels <= 0 {
		depthLevels = 10
	}

	b.Volume = listener.NewVolumeCounter()
	var sink listener.BarSink
	if b.Storage != nil {
		sink = b.Storage
	}
	b.OHLC = listener.NewOHLCBuilder(barInterval, sink)
	b.Depth = listener.NewDepthTracker(depthLevels)
	impact := listener.NewImpactGauge(decimal.NewFromFloat(0.01))

	if err := b.Router.RegisterListener("volume", b.Volume); err != nil {
		return err
	}
	if err := b.Router.RegisterListener("ohlc", b.OHLC); err != nil {
		return err
	}
	if b.Storage != nil {
		if err := b.Router.RegisterListener("archiver", listener.NewChainArchiver(b.Storage)); err != nil {
			return err
		}
	}

	for _, m := range b.Markets {
		ob := book.NewOrderBook("main", m)
		if err := ob.RegisterListener("depth", b.Depth); err != nil {
			return err
		}
		if err := ob.RegisterListener("impact", impact); err != nil {
			return err
		}
		if err := b.Router.RegisterBook(m, ob); err != nil {
			return err
		}
		slog.Info("✅ Book registered", slog.String("market", m.String()))
	}
	return nil
}

// Close flushes listeners and releases resources.
func (b *Bootstrap) Close() {
	if b.OHLC != nil {
		b.OHLC.Flush()
	}
}
