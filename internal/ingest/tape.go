// Package ingest turns external serialized event logs into tape events.
// It is a collaborator of the reconstruction core: the core consumes
// events and knows nothing about file or wire formats.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"tapebook/internal/domain"
	"tapebook/internal/event"
	"tapebook/internal/infra"
	"tapebook/internal/router"
)

// Tape CSV column layout. A header row is permitted and skipped.
//
//	seq,ts,kind,chain_id,market,side,tif,price,qty,peak_qty,
//	fill_qty,leaves_qty,causing_seq,match_id,aggressor,reason
const (
	colSeq = iota
	colTs
	colKind
	colChainID
	colMarket
	colSide
	colTIF
	colPrice
	colQty
	colPeakQty
	colFillQty
	colLeavesQty
	colCausingSeq
	colMatchID
	colAggressor
	colReason
	numCols
)

// TapeReader reads a CSV event tape sequentially.
type TapeReader struct {
	r    *csv.Reader
	line int
}

// NewTapeReader wraps a CSV stream.
func NewTapeReader(r io.Reader) *TapeReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numCols
	return &TapeReader{r: cr}
}

// Next returns the next event on the tape, io.EOF at the end.
func (t *TapeReader) Next() (event.Event, error) {
	for {
		row, err := t.r.Read()
		if err != nil {
			return nil, err
		}
		t.line++
		if t.line == 1 && row[colSeq] == "seq" {
			continue // header
		}
		rec := event.AcquireTapeRecord()
		err = fillRecord(rec, row)
		if err == nil {
			var ev event.Event
			ev, err = DecodeRecord(rec)
			if err == nil {
				event.ReleaseTapeRecord(rec)
				return ev, nil
			}
		}
		event.ReleaseTapeRecord(rec)
		return nil, fmt.Errorf("tape line %d: %w", t.line, err)
	}
}

func fillRecord(rec *event.TapeRecord, row []string) error {
	var err error
	if rec.Seq, err = strconv.ParseUint(row[colSeq], 10, 64); err != nil {
		return fmt.Errorf("seq: %w", err)
	}
	if rec.Ts, err = strconv.ParseInt(row[colTs], 10, 64); err != nil {
		return fmt.Errorf("ts: %w", err)
	}
	rec.Kind = row[colKind]
	rec.ChainID = row[colChainID]
	rec.Market = row[colMarket]
	rec.Side = row[colSide]
	rec.TIF = row[colTIF]
	rec.Price = row[colPrice]
	if rec.Qty, err = parseInt(row[colQty]); err != nil {
		return fmt.Errorf("qty: %w", err)
	}
	if rec.PeakQty, err = parseInt(row[colPeakQty]); err != nil {
		return fmt.Errorf("peak_qty: %w", err)
	}
	if rec.FillQty, err = parseInt(row[colFillQty]); err != nil {
		return fmt.Errorf("fill_qty: %w", err)
	}
	if rec.LeavesQty, err = parseInt(row[colLeavesQty]); err != nil {
		return fmt.Errorf("leaves_qty: %w", err)
	}
	if row[colCausingSeq] != "" {
		if rec.CausingSeq, err = strconv.ParseUint(row[colCausingSeq], 10, 64); err != nil {
			return fmt.Errorf("causing_seq: %w", err)
		}
	}
	rec.MatchID = row[colMatchID]
	rec.Aggressor = row[colAggressor] == "1" || row[colAggressor] == "true"
	rec.Reason = row[colReason]
	return nil
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// DecodeRecord converts a raw tape record into a concrete event.
func DecodeRecord(rec *event.TapeRecord) (event.Event, error) {
	market, err := domain.ParseMarket(rec.Market)
	if err != nil {
		return nil, err
	}
	base := event.BaseEvent{
		Seq:     rec.Seq,
		Ts:      rec.Ts,
		ChainID: rec.ChainID,
		Market:  market,
	}
	report := event.BaseReport{BaseEvent: base, CausingSeq: rec.CausingSeq}

	var price *domain.Price
	if rec.Price != "" {
		p, err := domain.PriceFromString(rec.Price)
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		price = &p
	}

	switch rec.Kind {
	case "NEW_ORDER":
		side, err := domain.ParseSide(rec.Side)
		if err != nil {
			return nil, err
		}
		tif, err := domain.ParseTimeInForce(rec.TIF)
		if err != nil {
			return nil, err
		}
		return &event.NewOrder{
			BaseEvent: base, Side: side, Price: price,
			Qty: rec.Qty, PeakQty: rec.PeakQty, TIF: tif,
		}, nil

	case "CANCEL_REPLACE":
		side, err := domain.ParseSide(rec.Side)
		if err != nil {
			return nil, err
		}
		return &event.CancelReplace{
			BaseEvent: base, Side: side, Price: price,
			Qty: rec.Qty, PeakQty: rec.PeakQty,
		}, nil

	case "CANCEL":
		return &event.Cancel{BaseEvent: base, Reason: rec.Reason}, nil

	case "ACK":
		return &event.Ack{
			BaseReport: report, Price: price,
			Qty: rec.Qty, PeakQty: rec.PeakQty,
		}, nil

	case "REJECT":
		return &event.Reject{BaseReport: report, Reason: rec.Reason}, nil

	case "PARTIAL_FILL":
		if price == nil {
			return nil, fmt.Errorf("partial fill without price")
		}
		return &event.PartialFill{
			BaseReport: report, FillPrice: *price, FillQty: rec.FillQty,
			LeavesQty: rec.LeavesQty, MatchID: rec.MatchID, Aggressor: rec.Aggressor,
		}, nil

	case "FULL_FILL":
		if price == nil {
			return nil, fmt.Errorf("full fill without price")
		}
		return &event.FullFill{
			BaseReport: report, FillPrice: *price, FillQty: rec.FillQty,
			MatchID: rec.MatchID, Aggressor: rec.Aggressor,
		}, nil

	case "CANCEL_CONFIRM":
		return &event.CancelConfirm{BaseReport: report, Reason: rec.Reason}, nil
	}
	return nil, fmt.Errorf("unknown event kind %q", rec.Kind)
}

// Replay streams a whole tape through the router. Malformed rows are
// logged and skipped; contract violations abort and are returned. The
// processed event count is returned either way.
func Replay(rt *router.Router, src io.Reader) (int, error) {
	tape := NewTapeReader(src)
	processed := 0
	for {
		ev, err := tape.Next()
		if err == io.EOF {
			return processed, nil
		}
		if err != nil {
			slog.Warn("skipping malformed tape row", slog.Any("error", err))
			infra.GlobalMetrics.RecordAnomaly()
			continue
		}
		if _, _, err := rt.Process(ev); err != nil {
			return processed, err
		}
		processed++
	}
}
