package event

import (
	"sync"
)

// TapeRecord is the raw, still-stringly form of one tape row before it is
// decoded into a concrete Event. Ingest sources acquire one per row and
// release it after decoding; events themselves are never pooled because
// chains retain them in their history.
//
// Usage:
//
//	rec := AcquireTapeRecord()
//	// ... populate, decode ...
//	ReleaseTapeRecord(rec)
type TapeRecord struct {
	Seq        uint64
	Ts         int64
	Kind       string
	ChainID    string
	Market     string
	Side       string
	TIF        string
	Price      string
	Qty        int64
	PeakQty    int64
	FillQty    int64
	LeavesQty  int64
	CausingSeq uint64
	MatchID    string
	Aggressor  bool
	Reason     string
}

var tapeRecordPool = sync.Pool{
	New: func() interface{} {
		return &TapeRecord{}
	},
}

// AcquireTapeRecord gets a TapeRecord from the pool.
// The returned record has zero values and must be initialized.
func AcquireTapeRecord() *TapeRecord {
	return tapeRecordPool.Get().(*TapeRecord)
}

// ReleaseTapeRecord returns a TapeRecord to the pool.
// The record is reset to zero values before being pooled.
func ReleaseTapeRecord(rec *TapeRecord) {
	if rec == nil {
		return
	}
	*rec = TapeRecord{}
	tapeRecordPool.Put(rec)
}

// Warmup pre-allocates tape records to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 1000

	recs := make([]*TapeRecord, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		recs = append(recs, AcquireTapeRecord())
	}
	for _, rec := range recs {
		ReleaseTapeRecord(rec)
	}
}
