package storage

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return s
}

func TestSaveBar(t *testing.T) {
	s := setupTestDB(t)

	bars := []Bar{
		{Market: "XEUR:FDAX", StartTs: 60_000_000, Open: decimal.RequireFromString("34.55"),
			High: decimal.RequireFromString("34.60"), Low: decimal.RequireFromString("34.50"),
			Close: decimal.RequireFromString("34.52"), Volume: 30, NumFills: 4},
		{Market: "XEUR:FDAX", StartTs: 0, Open: decimal.RequireFromString("34.50"),
			High: decimal.RequireFromString("34.52"), Low: decimal.RequireFromString("34.48"),
			Close: decimal.RequireFromString("34.52"), Volume: 120, NumFills: 9},
		{Market: "XEUR:FGBL", StartTs: 0, Open: decimal.RequireFromString("129.41"),
			High: decimal.RequireFromString("129.41"), Low: decimal.RequireFromString("129.41"),
			Close: decimal.RequireFromString("129.41"), Volume: 5, NumFills: 1},
	}
	for i := range bars {
		if err := s.SaveBar(&bars[i]); err != nil {
			t.Fatalf("save bar %d: %v", i, err)
		}
	}

	got, err := s.BarsByMarket("XEUR:FDAX")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("bars = %d, want 2", len(got))
	}
	if got[0].StartTs != 0 || got[1].StartTs != 60_000_000 {
		t.Error("bars not ordered oldest first")
	}
	if !got[0].Open.Equal(decimal.RequireFromString("34.50")) {
		t.Errorf("open = %s, want 34.50", got[0].Open)
	}
	if got[0].Volume != 120 || got[0].NumFills != 9 {
		t.Errorf("bar = %+v", got[0])
	}
}

func TestArchiveChain(t *testing.T) {
	s := setupTestDB(t)

	sums := []ChainSummary{
		{ChainID: "C2", Market: "XEUR:FDAX", Side: "SELL", CloseReason: "CANCEL_CONFIRM",
			NumEvents: 5, NumSubChain: 2, NumMatches: 0, ClosedTs: 9000},
		{ChainID: "C1", Market: "XEUR:FDAX", Side: "BUY", CloseReason: "FULL_FILL",
			NumEvents: 3, NumSubChain: 1, NumMatches: 1, ClosedTs: 3000},
	}
	for i := range sums {
		if err := s.ArchiveChain(&sums[i]); err != nil {
			t.Fatalf("archive %d: %v", i, err)
		}
	}

	got, err := s.ClosedChains("XEUR:FDAX")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("chains = %d, want 2", len(got))
	}
	if got[0].ChainID != "C1" || got[1].ChainID != "C2" {
		t.Error("chains not ordered by close time")
	}
	if got[0].CloseReason != "FULL_FILL" || got[0].NumMatches != 1 {
		t.Errorf("summary = %+v", got[0])
	}

	empty, err := s.ClosedChains("XEUR:FESX")
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("unexpected chains for unseen market: %v", empty)
	}
}
