package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tapebook/internal/domain"
	"tapebook/internal/event"
	"tapebook/internal/infra"
)

const (
	maxRetries  = 10
	readTimeout = 60 * time.Second
)

// feedFrame is one event on the wire, the JSON twin of the CSV tape row.
type feedFrame struct {
	Seq        uint64 `json:"seq"`
	Ts         int64  `json:"ts"`
	Kind       string `json:"kind"`
	ChainID    string `json:"chain_id"`
	Market     string `json:"market"`
	Side       string `json:"side,omitempty"`
	TIF        string `json:"tif,omitempty"`
	Price      string `json:"price,omitempty"`
	Qty        int64  `json:"qty,omitempty"`
	PeakQty    int64  `json:"peak_qty,omitempty"`
	FillQty    int64  `json:"fill_qty,omitempty"`
	LeavesQty  int64  `json:"leaves_qty,omitempty"`
	CausingSeq uint64 `json:"causing_seq,omitempty"`
	MatchID    string `json:"match_id,omitempty"`
	Aggressor  bool   `json:"aggressor,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// FeedWorker consumes a live event feed over WebSocket and forwards
// decoded events into a single inbox channel, preserving arrival order.
// One goroutine must drain the inbox and feed the router; the worker
// itself never touches the core.
type FeedWorker struct {
	url       string
	markets   []domain.Market
	inbox     chan<- event.Event
	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewFeedWorker creates a worker for the given feed URL and market
// subscriptions.
func NewFeedWorker(url string, markets []domain.Market, inbox chan<- event.Event) *FeedWorker {
	return &FeedWorker{
		url:     url,
		markets: markets,
		inbox:   inbox,
	}
}

// Connect starts the connection loop in the background.
func (w *FeedWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// IsConnected reports whether the websocket is currently up.
func (w *FeedWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *FeedWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("feed connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *FeedWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.url, make(http.Header))
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	infra.GlobalMetrics.IncrementFeeds()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	slog.Info("feed connected", slog.Int("subs", len(w.markets)))
	return nil
}

func (w *FeedWorker) subscribe() error {
	codes := make([]string, len(w.markets))
	for i, m := range w.markets {
		codes[i] = m.String()
	}
	msg := map[string]interface{}{
		"op":      "subscribe",
		"markets": codes,
	}
	b, _ := json.Marshal(msg)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *FeedWorker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return fmt.Errorf("no conn")
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *FeedWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		if w.conn == nil {
			w.mu.RUnlock()
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		w.mu.RUnlock()

		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *FeedWorker) handleMessage(msg []byte) {
	var frame feedFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		slog.Warn("dropping undecodable feed frame", slog.Any("error", err))
		infra.GlobalMetrics.RecordAnomaly()
		return
	}

	rec := event.AcquireTapeRecord()
	rec.Seq = frame.Seq
	rec.Ts = frame.Ts
	rec.Kind = frame.Kind
	rec.ChainID = frame.ChainID
	rec.Market = frame.Market
	rec.Side = frame.Side
	rec.TIF = frame.TIF
	rec.Price = frame.Price
	rec.Qty = frame.Qty
	rec.PeakQty = frame.PeakQty
	rec.FillQty = frame.FillQty
	rec.LeavesQty = frame.LeavesQty
	rec.CausingSeq = frame.CausingSeq
	rec.MatchID = frame.MatchID
	rec.Aggressor = frame.Aggressor
	rec.Reason = frame.Reason

	ev, err := DecodeRecord(rec)
	event.ReleaseTapeRecord(rec)
	if err != nil {
		slog.Warn("dropping invalid feed event", slog.Any("error", err))
		infra.GlobalMetrics.RecordAnomaly()
		return
	}

	// Block rather than drop: the tape is a total order and a gap would
	// trip the router's contract checks downstream.
	w.inbox <- ev
}

func (w *FeedWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
		infra.GlobalMetrics.DecrementFeeds()
	}
	w.connected = false
}

// Disconnect stops the worker and waits for its goroutine to exit.
func (w *FeedWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
