package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vietddude/dexwatch/internal/core/domain"
	"github.com/vietddude/dexwatch/internal/indexing/metrics"
	"github.com/vietddude/dexwatch/internal/infra/chain"
	"github.com/vietddude/dexwatch/internal/infra/rpc/provider"
)

var (
	// ErrNotConnected is returned when a request is made while the stream is down.
	ErrNotConnected = errors.New("log stream not connected")

	// ErrNotSubscribed is returned when unsubscribing an unknown id.
	ErrNotSubscribed = errors.New("not subscribed")
)

// StreamConfig configures a LogStream.
type StreamConfig struct {
	URL            string
	RequestTimeout time.Duration
	PingInterval   time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

func (c *StreamConfig) withDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReconnectMin == 0 {
		c.ReconnectMin = time.Second
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = time.Minute
	}
}

type logSub struct {
	address  string
	handler  chain.LogHandler
	remoteID uint64
	live     bool
	inflight bool
}

type pendingRequest struct {
	reply chan wsReply
	// sub is set for logsSubscribe requests so the reader can bind the
	// server id before any notification for it is dispatched.
	sub chain.SubscriptionID
}

type wsReply struct {
	result json.RawMessage
	err    error
}

type wsMessage struct {
	ID     *uint64            `json:"id"`
	Result json.RawMessage    `json:"result"`
	Error  *provider.RPCError `json:"error"`
	Method string             `json:"method"`
	Params *struct {
		Subscription uint64 `json:"subscription"`
		Result       struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string `json:"signature"`
				Err       any    `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// LogStream multiplexes logsSubscribe subscriptions over one WebSocket.
// Local subscription ids survive reconnects; every subscription is
// re-established after the connection comes back.
type LogStream struct {
	cfg    StreamConfig
	dialer *websocket.Dialer
	logger *slog.Logger

	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	nextReq   uint64
	nextSub   uint64
	pending   map[uint64]*pendingRequest
	subs      map[chain.SubscriptionID]*logSub
	remote    map[uint64]chain.SubscriptionID
	connected chan struct{}
	cancel    context.CancelFunc
}

// NewLogStream creates a stream. Run must be called to connect.
func NewLogStream(cfg StreamConfig) *LogStream {
	cfg.withDefaults()
	return &LogStream{
		cfg:       cfg,
		dialer:    websocket.DefaultDialer,
		logger:    slog.Default().With("component", "logstream"),
		pending:   make(map[uint64]*pendingRequest),
		subs:      make(map[chain.SubscriptionID]*logSub),
		remote:    make(map[uint64]chain.SubscriptionID),
		connected: make(chan struct{}),
	}
}

// Connected is closed once the first connection is established.
func (s *LogStream) Connected() <-chan struct{} {
	return s.connected
}

// Run connects and keeps the stream alive until ctx is cancelled.
func (s *LogStream) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	attempt := 0
	first := true
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := s.backoff(attempt)
			attempt++
			s.logger.Warn("Log stream dial failed", "url", s.cfg.URL, "error", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}
		attempt = 0

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		if first {
			close(s.connected)
			first = false
		} else {
			metrics.WSReconnects.Inc()
		}
		s.logger.Info("Log stream connected", "url", s.cfg.URL)

		done := make(chan struct{})
		go s.keepalive(ctx, conn, done)
		go s.resubscribeAll(ctx)

		err = s.readLoop(ctx, conn)
		close(done)
		s.disconnect(conn, err)

		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn("Log stream disconnected", "error", err)
		if !sleepCtx(ctx, s.backoff(0)) {
			return nil
		}
	}
}

// Subscribe registers handler for transactions mentioning address. When the
// stream is down the subscription is established on the next connect.
func (s *LogStream) Subscribe(ctx context.Context, address string, handler chain.LogHandler) (chain.SubscriptionID, error) {
	s.mu.Lock()
	s.nextSub++
	id := chain.SubscriptionID(s.nextSub)
	online := s.conn != nil
	s.subs[id] = &logSub{address: address, handler: handler, inflight: online}
	s.mu.Unlock()

	if !online {
		return id, nil
	}
	if err := s.subscribeRemote(ctx, id, address); err != nil && !errors.Is(err, ErrNotConnected) {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		return 0, err
	}
	return id, nil
}

// Unsubscribe removes the local handler first so no notification is
// delivered after it returns, then cancels the server subscription.
func (s *LogStream) Unsubscribe(ctx context.Context, id chain.SubscriptionID) error {
	s.mu.Lock()
	sub, ok := s.subs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotSubscribed, id)
	}
	delete(s.subs, id)
	if sub.live {
		delete(s.remote, sub.remoteID)
	}
	s.mu.Unlock()

	if !sub.live {
		return nil
	}
	if _, err := s.request(ctx, "logsUnsubscribe", []any{sub.remoteID}, 0); err != nil {
		return fmt.Errorf("failed to unsubscribe %d: %w", sub.remoteID, err)
	}
	return nil
}

// Count returns the number of registered subscriptions.
func (s *LogStream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close stops Run and closes the current connection.
func (s *LogStream) Close() error {
	s.mu.Lock()
	conn := s.conn
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	s.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return conn.Close()
}

func (s *LogStream) subscribeRemote(ctx context.Context, id chain.SubscriptionID, address string) error {
	params := []any{
		map[string]any{"mentions": []string{address}},
		map[string]any{"commitment": domain.CommitmentConfirmed},
	}
	if _, err := s.request(ctx, "logsSubscribe", params, id); err != nil {
		s.mu.Lock()
		if sub, ok := s.subs[id]; ok {
			sub.inflight = false
		}
		s.mu.Unlock()
		return fmt.Errorf("failed to subscribe %s: %w", address, err)
	}
	return nil
}

func (s *LogStream) resubscribeAll(ctx context.Context) {
	s.mu.Lock()
	todo := make(map[chain.SubscriptionID]string)
	for id, sub := range s.subs {
		if !sub.live && !sub.inflight {
			sub.inflight = true
			todo[id] = sub.address
		}
	}
	s.mu.Unlock()

	for id, address := range todo {
		if err := s.subscribeRemote(ctx, id, address); err != nil {
			s.logger.Error("Resubscribe failed", "subscription", id, "address", address, "error", err)
		}
	}
}

func (s *LogStream) request(ctx context.Context, method string, params []any, sub chain.SubscriptionID) (json.RawMessage, error) {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	s.nextReq++
	reqID := s.nextReq
	p := &pendingRequest{reply: make(chan wsReply, 1), sub: sub}
	s.pending[reqID] = p
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, reqID)
		s.mu.Unlock()
	}()

	s.writeMu.Lock()
	err := conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      reqID,
		"method":  method,
		"params":  params,
	})
	s.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	timer := time.NewTimer(s.cfg.RequestTimeout)
	defer timer.Stop()
	select {
	case r := <-p.reply:
		return r.result, r.err
	case <-timer.C:
		return nil, fmt.Errorf("%s timed out after %s", method, s.cfg.RequestTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *LogStream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingInterval))

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("Ignoring malformed message", "error", err)
			continue
		}
		switch {
		case msg.ID != nil:
			s.handleReply(ctx, &msg)
		case msg.Method == "logsNotification" && msg.Params != nil:
			s.dispatch(&msg)
		}
	}
}

func (s *LogStream) handleReply(ctx context.Context, msg *wsMessage) {
	s.mu.Lock()
	p, ok := s.pending[*msg.ID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, *msg.ID)
	reply := wsReply{result: msg.Result}
	if msg.Error != nil {
		reply.err = msg.Error
	}

	orphan := uint64(0)
	hasOrphan := false
	if p.sub != 0 && reply.err == nil {
		var remoteID uint64
		if err := json.Unmarshal(msg.Result, &remoteID); err != nil {
			reply.err = fmt.Errorf("invalid subscription id %s: %w", msg.Result, err)
		} else if sub, ok := s.subs[p.sub]; ok && !sub.live {
			sub.remoteID = remoteID
			sub.live = true
			sub.inflight = false
			s.remote[remoteID] = p.sub
		} else {
			// Unsubscribed or already bound while the request was in flight.
			orphan, hasOrphan = remoteID, true
		}
	}
	s.mu.Unlock()

	p.reply <- reply
	if hasOrphan {
		go s.request(ctx, "logsUnsubscribe", []any{orphan}, 0)
	}
}

func (s *LogStream) dispatch(msg *wsMessage) {
	s.mu.Lock()
	var handler chain.LogHandler
	if id, ok := s.remote[msg.Params.Subscription]; ok {
		if sub, ok := s.subs[id]; ok {
			handler = sub.handler
		}
	}
	s.mu.Unlock()

	if handler == nil {
		return
	}
	value := msg.Params.Result.Value
	handler(domain.LogNotification{
		Signature: value.Signature,
		Slot:      msg.Params.Result.Context.Slot,
		Failed:    value.Err != nil,
	})
}

func (s *LogStream) disconnect(conn *websocket.Conn, cause error) {
	conn.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
	}
	for _, sub := range s.subs {
		sub.live = false
		sub.inflight = false
		sub.remoteID = 0
	}
	s.remote = make(map[uint64]chain.SubscriptionID)
	for id, p := range s.pending {
		p.reply <- wsReply{err: fmt.Errorf("%w: %v", ErrNotConnected, cause)}
		delete(s.pending, id)
	}
}

// keepalive pings the server and closes conn when ctx ends so the reader
// unblocks.
func (s *LogStream) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.RequestTimeout))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("Ping failed", "error", err)
				return
			}
		}
	}
}

func (s *LogStream) backoff(attempt int) time.Duration {
	delay := float64(s.cfg.ReconnectMin) * math.Pow(2, float64(attempt))
	if delay > float64(s.cfg.ReconnectMax) {
		delay = float64(s.cfg.ReconnectMax)
	}
	return time.Duration(delay)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
