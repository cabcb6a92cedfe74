package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSClientConfig configures the account subscription client.
type WSClientConfig struct {
	// ReconnectDelay is the first wait after a dropped connection; it doubles
	// up to MaxReconnectDelay while dials keep failing.
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	// PingInterval must be shorter than ReadTimeout: pongs extend the read deadline.
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	DialTimeout      time.Duration
	SubscribeTimeout time.Duration
	Commitment       string
}

// DefaultWSConfig returns the default configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		DialTimeout:       10 * time.Second,
		SubscribeTimeout:  10 * time.Second,
		Commitment:        DefaultCommitment,
	}
}

// notificationBuffer is small: a notification only means "re-check now",
// so dropping one while another is queued loses nothing.
const notificationBuffer = 4

var errClientClosed = errors.New("websocket client closed")

type accountSub struct {
	id       uint64
	pubkey   string
	serverID int64
	ch       chan AccountNotification
}

// pendingSub is an accountSubscribe awaiting confirmation. The read loop
// maps sub to its server id in the same critical section that confirms it,
// so no notification can arrive unrouted.
type pendingSub struct {
	sub   *accountSub
	resub bool
	reply chan error
}

// AccountWSClient keeps one WebSocket open to the node and multiplexes
// accountSubscribe handles over it. Handles survive reconnects: after a
// new dial every live handle is subscribed again under a new server id.
type AccountWSClient struct {
	endpoint string
	cfg      WSClientConfig
	logger   zerolog.Logger

	connMu sync.Mutex // guards conn and serializes writes
	conn   *websocket.Conn

	mu       sync.Mutex
	subs     map[uint64]*accountSub
	byServer map[int64]*accountSub
	pending  map[uint64]*pendingSub // request id -> waiter

	requestID atomic.Uint64
	localID   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
}

var _ WSClient = (*AccountWSClient)(nil)

// NewWSClient dials endpoint and starts the read and ping loops.
// config may be nil for defaults.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig, logger zerolog.Logger) (*AccountWSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &AccountWSClient{
		endpoint: endpoint,
		cfg:      cfg,
		logger:   logger.With().Str("component", "solana_ws").Logger(),
		subs:     make(map[uint64]*accountSub),
		byServer: make(map[int64]*accountSub),
		pending:  make(map[uint64]*pendingSub),
		done:     make(chan struct{}),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.run(conn)
	go c.pingLoop()
	return c, nil
}

func (c *AccountWSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", c.endpoint, err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed.Load() {
		conn.Close()
		return nil, errClientClosed
	}
	c.conn = conn
	return conn, nil
}

// run reads from conn until it fails, then redials with backoff and
// resubscribes every live handle. It exits once the client is closed.
func (c *AccountWSClient) run(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		err := c.readUntilError(conn)
		if c.closed.Load() {
			return
		}
		c.logger.Warn().Err(err).Msg("websocket connection lost")
		c.failPending(err)

		conn = c.redial()
		if conn == nil {
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.resubscribeAll()
		}()
	}
}

func (c *AccountWSClient) readUntilError(conn *websocket.Conn) error {
	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleMessage(msg)
	}
}

// redial returns a fresh connection, or nil once the client is closed.
func (c *AccountWSClient) redial() *websocket.Conn {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	delay := c.cfg.ReconnectDelay
	for {
		select {
		case <-c.done:
			return nil
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			c.logger.Info().Msg("websocket reconnected")
			return conn
		}
		if errors.Is(err, errClientClosed) {
			return nil
		}
		c.logger.Warn().Err(err).Dur("retry_in", delay).Msg("websocket reconnect failed")

		delay *= 2
		if delay > c.cfg.MaxReconnectDelay {
			delay = c.cfg.MaxReconnectDelay
		}
	}
}

// SubscribeAccount subscribes to changes of pubkey.
func (c *AccountWSClient) SubscribeAccount(ctx context.Context, pubkey string) (*AccountSubscription, error) {
	sub := &accountSub{
		id:     c.localID.Add(1),
		pubkey: pubkey,
		ch:     make(chan AccountNotification, notificationBuffer),
	}
	if err := c.subscribe(ctx, sub, false); err != nil {
		return nil, err
	}
	return &AccountSubscription{ID: sub.id, Pubkey: pubkey, C: sub.ch}, nil
}

// Unsubscribe closes the handle's channel and asks the node to drop it.
func (c *AccountWSClient) Unsubscribe(_ context.Context, handle *AccountSubscription) error {
	if handle == nil {
		return nil
	}

	c.mu.Lock()
	sub, ok := c.subs[handle.ID]
	if ok {
		delete(c.subs, sub.id)
		delete(c.byServer, sub.serverID)
		close(sub.ch)
	}
	c.mu.Unlock()

	if !ok || c.closed.Load() {
		return nil
	}
	return c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "accountUnsubscribe",
		Params:  []any{sub.serverID},
	})
}

// Close drops the connection and closes every handle. Safe to call twice.
func (c *AccountWSClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		deadline := time.Now().Add(c.cfg.WriteTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.mu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	clear(c.byServer)
	c.mu.Unlock()

	c.failPending(errClientClosed)
	c.wg.Wait()
	return nil
}

func (c *AccountWSClient) write(v any) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return errors.New("websocket not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// subscribe sends accountSubscribe for sub and waits until the read loop
// has registered it under the server subscription id.
func (c *AccountWSClient) subscribe(ctx context.Context, sub *accountSub, resub bool) error {
	if c.closed.Load() {
		return errClientClosed
	}

	reqID := c.requestID.Add(1)
	p := &pendingSub{sub: sub, resub: resub, reply: make(chan error, 1)}
	c.mu.Lock()
	c.pending[reqID] = p
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, reqID)
		c.mu.Unlock()
	}()

	err := c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "accountSubscribe",
		Params: []any{sub.pubkey, map[string]string{
			"encoding":   "base64",
			"commitment": c.cfg.Commitment,
		}},
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", sub.pubkey, err)
	}

	timer := time.NewTimer(c.cfg.SubscribeTimeout)
	defer timer.Stop()

	select {
	case err := <-p.reply:
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.pubkey, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("subscribe %s: no confirmation after %s", sub.pubkey, c.cfg.SubscribeTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// failPending wakes every waiting subscribe with err.
func (c *AccountWSClient) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		p.reply <- err
		delete(c.pending, id)
	}
}

func (c *AccountWSClient) resubscribeAll() {
	c.mu.Lock()
	live := make([]*accountSub, 0, len(c.subs))
	for _, sub := range c.subs {
		live = append(live, sub)
	}
	c.mu.Unlock()

	for _, sub := range live {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SubscribeTimeout)
		err := c.subscribe(ctx, sub, true)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Str("account", sub.pubkey).Msg("resubscribe failed")
		}
	}
}

func (c *AccountWSClient) handleMessage(raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Debug().Err(err).Msg("undecodable websocket message")
		return
	}

	if msg.Method == "accountNotification" {
		if msg.Params != nil {
			c.dispatch(msg.Params)
		}
		return
	}
	if msg.ID == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[*msg.ID]
	if !ok {
		if msg.Error != nil {
			c.logger.Warn().Err(msg.Error).Uint64("request_id", *msg.ID).Msg("websocket error response")
		}
		return
	}
	delete(c.pending, *msg.ID)

	if msg.Error != nil {
		p.reply <- msg.Error
		return
	}
	var serverID int64
	if err := json.Unmarshal(msg.Result, &serverID); err != nil {
		p.reply <- fmt.Errorf("decode subscription id: %w", err)
		return
	}
	if !p.resub && c.closed.Load() {
		p.reply <- errClientClosed
		return
	}
	c.register(p, serverID)
	p.reply <- nil
}

// register maps a confirmed subscription. Caller holds c.mu.
func (c *AccountWSClient) register(p *pendingSub, serverID int64) {
	sub := p.sub
	if p.resub {
		if _, live := c.subs[sub.id]; !live {
			return
		}
		delete(c.byServer, sub.serverID)
	} else {
		c.subs[sub.id] = sub
	}
	sub.serverID = serverID
	c.byServer[serverID] = sub
}

// dispatch never blocks the read loop; a queued notification already
// triggers a re-check.
func (c *AccountWSClient) dispatch(p *wsNotificationParams) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, ok := c.byServer[p.Subscription]
	if !ok {
		return
	}

	n := AccountNotification{
		Pubkey:   sub.pubkey,
		Slot:     p.Result.Context.Slot,
		Lamports: p.Result.Value.Lamports,
	}
	if len(p.Result.Value.Data) > 0 {
		n.Data = p.Result.Value.Data[0]
	}

	select {
	case sub.ch <- n:
	default:
	}
}

func (c *AccountWSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				deadline := time.Now().Add(c.cfg.WriteTimeout)
				if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					c.logger.Debug().Err(err).Msg("websocket ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// wsMessage covers both replies (ID set) and notifications (Method set).
type wsMessage struct {
	ID     *uint64               `json:"id"`
	Method string                `json:"method"`
	Result json.RawMessage       `json:"result"`
	Error  *RPCError             `json:"error"`
	Params *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Lamports uint64   `json:"lamports"`
			Owner    string   `json:"owner"`
			Data     []string `json:"data"`
		} `json:"value"`
	} `json:"result"`
}
