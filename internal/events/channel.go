package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ChannelConfig configures the websocket push channel.
type ChannelConfig struct {
	// URL is the websocket endpoint, e.g. "wss://ops.example.com/ws".
	URL string
	// Token is sent as a Bearer Authorization header (optional).
	Token string

	// InitialBackoff is the first reconnect delay (default 1s).
	InitialBackoff time.Duration
	// MaxBackoff caps the reconnect delay (default 30s).
	MaxBackoff time.Duration

	Logger *slog.Logger
	Dialer *websocket.Dialer
}

// Channel keeps a websocket connection to the backend open and republishes
// every event it receives on its Bus. Reconnects with exponential backoff.
type Channel struct {
	cfg       ChannelConfig
	bus       *Bus
	logger    *slog.Logger
	connected atomic.Bool
}

func NewChannel(cfg ChannelConfig) *Channel {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Channel{cfg: cfg, bus: NewBus(0, logger), logger: logger}
}

func (c *Channel) Subscribe(eventType EventType, fn Handler) func() {
	return c.bus.Subscribe(eventType, fn)
}

func (c *Channel) Connected() bool { return c.connected.Load() }

// Run connects and pumps events until ctx is canceled.
func (c *Channel) Run(ctx context.Context) error {
	defer c.bus.Close()

	backoff := c.cfg.InitialBackoff
	for {
		if ctx.Err() != nil {
			return fmt.Errorf("event channel stopped: %w", ctx.Err())
		}

		started := time.Now()
		err := c.session(ctx)
		if ctx.Err() != nil {
			return fmt.Errorf("event channel stopped: %w", ctx.Err())
		}
		// A session that stayed up for a while earns a fresh backoff.
		if time.Since(started) > c.cfg.MaxBackoff {
			backoff = c.cfg.InitialBackoff
		}
		c.logger.Warn("event channel disconnected, reconnecting", "url", c.cfg.URL, "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return fmt.Errorf("event channel stopped: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

func (c *Channel) session(ctx context.Context) error {
	hdr := http.Header{}
	if c.cfg.Token != "" {
		hdr.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	conn, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, hdr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.connected.Store(true)
	defer c.connected.Store(false)
	c.logger.Debug("event channel connected", "url", c.cfg.URL)

	// Unblock ReadMessage when ctx is canceled.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("server closed connection")
			}
			return fmt.Errorf("read: %w", err)
		}
		ev, err := DecodeEvent(msg)
		if err != nil {
			c.logger.Warn("ignoring undecodable event", "error", err)
			continue
		}
		c.bus.Publish(ev)
	}
}

// DecodeEvent parses one wire message of the form {"type": "...", "data": {...}}.
func DecodeEvent(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding event: %w", err)
	}
	ev.Type = EventType(strings.TrimSpace(string(ev.Type)))
	if ev.Type == "" {
		return Event{}, errors.New("decoding event: missing type")
	}
	return ev, nil
}

// WebsocketURL derives the push channel URL from an API base URL:
// http(s)://host/api -> ws(s)://host/ws.
func WebsocketURL(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(apiBase))
	if err != nil {
		return "", fmt.Errorf("parsing api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}
