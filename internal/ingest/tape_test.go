package ingest

import (
	"errors"
	"io"
	"strings"
	"testing"

	"tapebook/internal/domain"
	"tapebook/internal/event"
	"tapebook/internal/router"
)

const tapeHeader = "seq,ts,kind,chain_id,market,side,tif,price,qty,peak_qty,fill_qty,leaves_qty,causing_seq,match_id,aggressor,reason\n"

func TestTapeReader(t *testing.T) {
	t.Run("New Order", func(t *testing.T) {
		tape := NewTapeReader(strings.NewReader(tapeHeader +
			"1,1000,NEW_ORDER,C1,XEUR:FDAX,BUY,GTC,34.50,50,0,,,,,,\n"))
		ev, err := tape.Next()
		if err != nil {
			t.Fatal(err)
		}
		no, ok := ev.(*event.NewOrder)
		if !ok {
			t.Fatalf("decoded %T, want *event.NewOrder", ev)
		}
		if no.Seq != 1 || no.ChainID != "C1" || no.Qty != 50 {
			t.Errorf("decoded %+v", no)
		}
		if no.Market != (domain.Market{Venue: "XEUR", Symbol: "FDAX"}) {
			t.Errorf("market = %v", no.Market)
		}
		if no.Side != domain.Buy || no.TIF != domain.GoodTillCancel {
			t.Errorf("side/tif = %v/%v", no.Side, no.TIF)
		}
		if no.Price == nil || no.Price.String() != "34.5" {
			t.Errorf("price = %v", no.Price)
		}
		if _, err := tape.Next(); err != io.EOF {
			t.Errorf("expected EOF, got %v", err)
		}
	})

	t.Run("Market Order Has No Price", func(t *testing.T) {
		tape := NewTapeReader(strings.NewReader(
			"1,1000,NEW_ORDER,C1,XEUR:FDAX,SELL,FAK,,100,0,,,,,,\n"))
		ev, err := tape.Next()
		if err != nil {
			t.Fatal(err)
		}
		if ev.(*event.NewOrder).Price != nil {
			t.Error("empty price field should decode to nil")
		}
	})

	t.Run("Partial Fill", func(t *testing.T) {
		tape := NewTapeReader(strings.NewReader(
			"7,9000,PARTIAL_FILL,C1,XEUR:FDAX,,,34.52,,,40,960,3,M77,1,\n"))
		ev, err := tape.Next()
		if err != nil {
			t.Fatal(err)
		}
		pf, ok := ev.(*event.PartialFill)
		if !ok {
			t.Fatalf("decoded %T, want *event.PartialFill", ev)
		}
		if pf.FillQty != 40 || pf.LeavesQty != 960 || pf.MatchID != "M77" {
			t.Errorf("decoded %+v", pf)
		}
		if !pf.Aggressor {
			t.Error("aggressor flag not decoded")
		}
		if pf.GetCausingSeq() != 3 {
			t.Errorf("causing seq = %d, want 3", pf.GetCausingSeq())
		}
	})

	t.Run("Bad Rows", func(t *testing.T) {
		rows := []string{
			"x,1000,NEW_ORDER,C1,XEUR:FDAX,BUY,GTC,34.50,50,0,,,,,,",
			"1,1000,NEW_ORDER,C1,badmarket,BUY,GTC,34.50,50,0,,,,,,",
			"1,1000,TRADE_BUST,C1,XEUR:FDAX,,,,,,,,,,,",
			"1,1000,PARTIAL_FILL,C1,XEUR:FDAX,,,,,,40,0,,M1,0,",
		}
		for _, row := range rows {
			tape := NewTapeReader(strings.NewReader(row + "\n"))
			if _, err := tape.Next(); err == nil {
				t.Errorf("row %q should fail to decode", row)
			}
		}
	})
}

func TestReplay(t *testing.T) {
	tape := tapeHeader +
		"1,1000,NEW_ORDER,C1,XEUR:FDAX,BUY,GTC,34.50,50,0,,,,,,\n" +
		"2,2000,ACK,C1,XEUR:FDAX,,,34.50,50,0,,,1,,,\n" +
		"3,3000,FULL_FILL,C1,XEUR:FDAX,,,34.50,,,50,0,,M1,0,\n"

	rt := router.New()
	n, err := Replay(rt, strings.NewReader(tape))
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("processed = %d, want 3", n)
	}
	if rt.NumChains() != 0 {
		t.Errorf("live chains = %d, want 0 after full fill", rt.NumChains())
	}
}

func TestReplaySkipsMalformedRows(t *testing.T) {
	tape := "1,1000,NEW_ORDER,C1,XEUR:FDAX,BUY,GTC,34.50,50,0,,,,,,\n" +
		"bogus,2000,ACK,C1,XEUR:FDAX,,,34.50,50,0,,,1,,,\n" +
		"3,3000,ACK,C1,XEUR:FDAX,,,34.50,50,0,,,1,,,\n"

	rt := router.New()
	n, err := Replay(rt, strings.NewReader(tape))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("processed = %d, want 2", n)
	}
	ch, ok := rt.Chain("C1")
	if !ok || ch.ExposedQty() != 50 {
		t.Error("ack after the malformed row should still apply")
	}
}

func TestReplayHaltsOnContractViolation(t *testing.T) {
	tape := "1,1000,ACK,GHOST,XEUR:FDAX,,,34.50,50,0,,,1,,,\n"

	rt := router.New()
	_, err := Replay(rt, strings.NewReader(tape))
	if !domain.IsContractViolation(err) || !errors.Is(err, domain.ErrUnknownChain) {
		t.Errorf("got %v, want unknown-chain violation", err)
	}
}
