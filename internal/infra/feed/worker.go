// Package feed maintains the websocket market data connection: it
// subscribes to the configured instruments, decodes tick frames and
// pushes them onto the engine's inbound channel.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quant_go/internal/domain"
	"quant_go/internal/infra"
)

const (
	feedMaxRetries   = 10
	feedBaseDelay    = 1 * time.Second
	feedMaxDelay     = 60 * time.Second
	feedReadTimeout  = 60 * time.Second
	handshakeTimeout = 10 * time.Second
)

// tickFrame is one market data frame on the wire.
type tickFrame struct {
	Type string `json:"type"` // "tick"

	UnifiedSymbol   string `json:"unified_symbol"`
	GatewayID       string `json:"gateway_id"`
	TradingDay      string `json:"trading_day"`
	ActionDay       string `json:"action_day"`
	ActionTime      string `json:"action_time"`
	ActionTimestamp int64  `json:"action_timestamp"`

	LastPrice float64 `json:"last_price"`
	HighPrice float64 `json:"high_price"`
	LowPrice  float64 `json:"low_price"`
	OpenPrice float64 `json:"open_price"`

	Volume            int64   `json:"volume"`
	VolumeDelta       int64   `json:"volume_delta"`
	OpenInterest      float64 `json:"open_interest"`
	OpenInterestDelta float64 `json:"open_interest_delta"`
	Turnover          float64 `json:"turnover"`
	TurnoverDelta     float64 `json:"turnover_delta"`

	AskPrices  []float64 `json:"ask_prices"`
	AskVolumes []int64   `json:"ask_volumes"`
	BidPrices  []float64 `json:"bid_prices"`
	BidVolumes []int64   `json:"bid_volumes"`
}

// Worker handles the market data WebSocket connection.
type Worker struct {
	wsURL    string
	token    string
	symbols  []string
	tickChan chan<- domain.Tick
	logger   *slog.Logger
	meters   *infra.Metrics

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a feed worker pushing decoded ticks onto tickChan.
func NewWorker(wsURL, token string, symbols []string, tickChan chan<- domain.Tick, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		wsURL:    wsURL,
		token:    token,
		symbols:  symbols,
		tickChan: tickChan,
		logger:   logger,
		meters:   infra.GlobalMetrics,
	}
}

// Connect starts the WebSocket connection with automatic reconnection.
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.connectionLoop(ctx)

	return nil
}

// connectionLoop handles connection and reconnection with exponential backoff.
func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("feed panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("feed connection loop stopped")
			return
		default:
		}

		err := w.connect(ctx)
		if err != nil {
			w.logger.Warn("feed connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount),
			)

			delay := w.calculateBackoff(retryCount)
			retryCount++
			if retryCount > feedMaxRetries {
				w.logger.Error("feed max retries exceeded, resetting counter")
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		// Connection successful, reset retry counter
		retryCount = 0

		w.readLoop(ctx)
	}
}

// calculateBackoff returns the delay for the current retry attempt.
func (w *Worker) calculateBackoff(retryCount int) time.Duration {
	delay := feedBaseDelay * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > feedMaxDelay {
		delay = feedMaxDelay
	}
	return delay
}

// connect establishes the WebSocket connection and subscribes.
func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	header := make(http.Header)
	if w.token != "" {
		header.Add("Authorization", "Bearer "+w.token)
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	w.meters.IncrementFeeds()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	w.logger.Info("feed WebSocket connected", slog.Int("symbols", len(w.symbols)))
	return nil
}

// subscribe sends the subscription message for all configured symbols.
func (w *Worker) subscribe() error {
	subscribeMsg := map[string]any{
		"op":      "subscribe",
		"ticket":  fmt.Sprintf("quant-go-%d", time.Now().UnixNano()),
		"symbols": w.symbols,
	}

	msgBytes, err := json.Marshal(subscribeMsg)
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, msgBytes)
}

// threadSafeWrite serializes writes to the WebSocket connection.
func (w *Worker) threadSafeWrite(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	return conn.WriteMessage(messageType, data)
}

// readLoop reads messages until an error closes the connection.
func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(feedReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.logger.Warn("feed WebSocket read error", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}

		w.handleMessage(message)
	}
}

// handleMessage parses one frame and forwards the tick.
func (w *Worker) handleMessage(message []byte) {
	var frame tickFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		w.logger.Debug("feed message parse error", slog.Any("error", err))
		return
	}

	if frame.Type != "tick" {
		return
	}

	tick := frame.toTick()
	if w.tickChan != nil {
		select {
		case w.tickChan <- tick:
		default:
			w.logger.Warn("feed tick channel full, dropping data",
				slog.String("symbol", tick.UnifiedSymbol))
		}
	}
}

func (f tickFrame) toTick() domain.Tick {
	tick := domain.Tick{
		UnifiedSymbol:     f.UnifiedSymbol,
		GatewayID:         f.GatewayID,
		TradingDay:        f.TradingDay,
		ActionDay:         f.ActionDay,
		ActionTime:        f.ActionTime,
		ActionTimestamp:   f.ActionTimestamp,
		LastPrice:         f.LastPrice,
		HighPrice:         f.HighPrice,
		LowPrice:          f.LowPrice,
		OpenPrice:         f.OpenPrice,
		Volume:            f.Volume,
		VolumeDelta:       f.VolumeDelta,
		OpenInterest:      f.OpenInterest,
		OpenInterestDelta: f.OpenInterestDelta,
		Turnover:          f.Turnover,
		TurnoverDelta:     f.TurnoverDelta,
	}
	for i := 0; i < domain.DepthLevels; i++ {
		if i < len(f.AskPrices) {
			tick.AskPrices[i] = f.AskPrices[i]
		}
		if i < len(f.AskVolumes) {
			tick.AskVolumes[i] = f.AskVolumes[i]
		}
		if i < len(f.BidPrices) {
			tick.BidPrices[i] = f.BidPrices[i]
		}
		if i < len(f.BidVolumes) {
			tick.BidVolumes[i] = f.BidVolumes[i]
		}
	}
	return tick
}

// closeConnection safely closes the WebSocket connection.
func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	if w.connected {
		w.meters.DecrementFeeds()
	}
	w.connected = false
}

// Disconnect closes the WebSocket connection and waits for the loop.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	w.logger.Info("feed WebSocket disconnected")
}

// IsConnected returns connection status.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}
