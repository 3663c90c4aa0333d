// Package streamtest provides in-memory push channels for tests.
package streamtest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"rpctail/internal/models"
	"rpctail/internal/stream"
)

// ErrClosed is returned by ReadMessage once the conn is closed.
var ErrClosed = errors.New("streamtest: conn closed")

// Conn is an in-memory stream.Conn fed by Send.
type Conn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

// NewConn returns an open Conn.
func NewConn() *Conn {
	return &Conn{frames: make(chan []byte, 256), closed: make(chan struct{})}
}

func (c *Conn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return nil, ErrClosed
	}
}

// Close ends the conn as if the server hung up. Idempotent.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Send queues a raw frame.
func (c *Conn) Send(frame []byte) { c.frames <- frame }

// SendSnapshot queues an initial frame.
func (c *Conn) SendSnapshot(events []models.Event) {
	b, err := stream.EncodeSnapshot(events)
	if err != nil {
		panic(err)
	}
	c.Send(b)
}

// SendEvent queues a log frame.
func (c *Conn) SendEvent(ev models.Event) {
	b, err := stream.EncodeIncrement(ev)
	if err != nil {
		panic(err)
	}
	c.Send(b)
}

// Dialer hands out a new Conn per Dial and records handshake headers.
type Dialer struct {
	mu      sync.Mutex
	err     error
	headers []http.Header
	dialed  chan *Conn
}

// NewDialer returns a Dialer that succeeds until SetErr is called.
func NewDialer() *Dialer {
	return &Dialer{dialed: make(chan *Conn, 64)}
}

func (d *Dialer) Dial(ctx context.Context, url string, header http.Header) (stream.Conn, error) {
	d.mu.Lock()
	err := d.err
	d.headers = append(d.headers, header)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	c := NewConn()
	d.dialed <- c
	return c, nil
}

// SetErr makes later dials fail with err; nil restores success.
func (d *Dialer) SetErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

// Dials returns the number of Dial calls so far.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.headers)
}

// Header returns the handshake header of the i-th dial.
func (d *Dialer) Header(i int) http.Header {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.headers[i]
}

// Next waits for the next successful dial.
func (d *Dialer) Next(timeout time.Duration) (*Conn, bool) {
	select {
	case c := <-d.dialed:
		return c, true
	case <-time.After(timeout):
		return nil, false
	}
}
