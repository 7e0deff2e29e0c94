package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Bar is one persisted OHLC bar for a market.
type Bar struct {
	ID       uint   `gorm:"primarykey"`
	Market   string `gorm:"index"`
	StartTs  int64  `gorm:"index"` // bar open, unix micros market time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   int64
	NumFills int
}

// ChainSummary is the archived record of a closed order chain.
type ChainSummary struct {
	ID          uint   `gorm:"primarykey"`
	ChainID     string `gorm:"index"`
	Market      string `gorm:"index"`
	Side        string
	CloseReason string
	NumEvents   int
	NumSubChain int
	NumMatches  int
	ClosedTs    int64
}

// Storage archives analytics output (bars, closed chains) in SQLite.
// The reconstruction core itself never persists anything.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance at the given path.
func NewStorage(path string) (*Storage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&Bar{}, &ChainSummary{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// SaveBar persists one completed bar.
func (s *Storage) SaveBar(bar *Bar) error {
	return s.db.Create(bar).Error
}

// BarsByMarket retrieves all bars for a market, oldest first.
func (s *Storage) BarsByMarket(market string) ([]Bar, error) {
	var bars []Bar
	err := s.db.Where("market = ?", market).Order("start_ts asc").Find(&bars).Error
	return bars, err
}

// ArchiveChain persists a summary of a closed chain.
func (s *Storage) ArchiveChain(sum *ChainSummary) error {
	return s.db.Create(sum).Error
}

// ClosedChains retrieves archived chain summaries for a market, in close
// order.
func (s *Storage) ClosedChains(market string) ([]ChainSummary, error) {
	var sums []ChainSummary
	err := s.db.Where("market = ?", market).Order("closed_ts asc").Find(&sums).Error
	return sums, err
}
