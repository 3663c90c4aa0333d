package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Dial defaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second

	// A snapshot carries a full window including request and response bodies.
	DefaultReadLimit = 16 << 20 // 16 MB

	// DefaultIdleTimeout closes a channel that delivered neither a frame nor
	// a ping for this long. Gateways ping well inside a minute.
	DefaultIdleTimeout = 90 * time.Second

	pongWriteWait = time.Second
)

// Conn is an established push channel. Close must unblock a pending ReadMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens push channels.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WebsocketDialer dials the push channel over gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	// ReadLimit caps one frame in bytes. Zero means DefaultReadLimit.
	ReadLimit        int64
	// IdleTimeout is the read deadline, refreshed by every frame and ping.
	// Zero means DefaultIdleTimeout; negative disables the deadline.
	IdleTimeout      time.Duration
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	hs := d.HandshakeTimeout
	if hs <= 0 {
		hs = DefaultHandshakeTimeout
	}
	wd := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: hs,
	}

	c, resp, err := wd.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	limit := d.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	c.SetReadLimit(limit)

	idle := d.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}
	w := &wsConn{c: c, idle: idle}
	w.extend()
	c.SetPingHandler(func(data string) error {
		w.extend()
		err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(pongWriteWait))
		var ne net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil
		}
		return err
	})
	return w, nil
}

type wsConn struct {
	c    *websocket.Conn
	idle time.Duration
}

// extend pushes the read deadline out by the idle timeout.
func (w *wsConn) extend() {
	if w.idle > 0 {
		_ = w.c.SetReadDeadline(time.Now().Add(w.idle))
	}
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	if err == nil {
		w.extend()
	}
	return data, err
}

func (w *wsConn) Close() error { return w.c.Close() }

// BearerHeader returns the handshake header carrying an API key, or nil
// when the key is empty.
func BearerHeader(apiKey string) http.Header {
	if apiKey == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+apiKey)
	return h
}
