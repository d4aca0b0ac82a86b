// Package ws owns the client side of the real-time connection: dialing, reconnecting,
// dispatching inbound frames to handlers and queueing outbound frames.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/sushistage/internal/proto"
)

var (
	ErrNotConnected   = errors.New("not connected")
	ErrSendQueueFull  = errors.New("send queue full")
	ErrAlreadyRunning = errors.New("connection already running")
	ErrHandlerExists  = errors.New("handler already registered")
	ErrClosed         = errors.New("connection closed")
)

// Handler receives the raw payload of one inbound event.
type Handler func(ctx context.Context, data json.RawMessage)

// Options configure a Conn. Zero durations fall back to defaults.
type Options struct {
	URL          string
	Header       http.Header
	DialTimeout  time.Duration
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	SendBuffer   int
	ReadLimit    int64
	Logger       *zerolog.Logger
}

func (o *Options) applyDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = 500 * time.Millisecond
	}
	if o.ReconnectMax < o.ReconnectMin {
		o.ReconnectMax = 30 * time.Second
		if o.ReconnectMax < o.ReconnectMin {
			o.ReconnectMax = o.ReconnectMin
		}
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
}

// Conn is an explicitly owned websocket client. Handlers are registered once with On before
// Run and survive reconnects.
type Conn struct {
	opts Options
	log  *zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	started   atomic.Bool
	connected atomic.Bool
	send      chan proto.Frame

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a connection handle. Nothing is dialed until Run.
func New(opts Options) *Conn {
	opts.applyDefaults()
	return &Conn{
		opts:     opts,
		log:      opts.Logger,
		handlers: make(map[string]Handler),
		send:     make(chan proto.Frame, opts.SendBuffer),
		done:     make(chan struct{}),
	}
}

// On registers the handler for an inbound event. It must be called before Run.
func (c *Conn) On(event string, h Handler) error {
	if c.started.Load() {
		return ErrAlreadyRunning
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.handlers[event]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, event)
	}
	c.handlers[event] = h
	return nil
}

// Emit queues an outbound event without waiting for delivery. Frames are dropped,
// not buffered, while disconnected.
func (c *Conn) Emit(event string, data any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}
	frame, err := proto.NewFrame(event, data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Connected reports whether a websocket session is currently open.
func (c *Conn) Connected() bool {
	return c.connected.Load()
}

// Run dials and keeps the connection alive, reconnecting with exponential backoff,
// until ctx is done or Close is called.
func (c *Conn) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	delay := c.opts.ReconnectMin
	for {
		wasUp, err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if wasUp {
			delay = c.opts.ReconnectMin
		}
		c.log.Warn().Err(err).Dur("retry_in", delay).Msg("connection lost")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		delay *= 2
		if delay > c.opts.ReconnectMax {
			delay = c.opts.ReconnectMax
		}
	}
}

// Close stops Run and rejects further emits. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// session runs one dial plus read/write loops. It reports whether the dial succeeded.
func (c *Conn) session(ctx context.Context) (bool, error) {
	dialCtx, cancelDial := context.WithTimeout(ctx, c.opts.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.opts.URL, &websocket.DialOptions{HTTPHeader: c.opts.Header})
	cancelDial()
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(c.opts.ReadLimit)

	// An Emit racing the end of the previous session may have queued after its drain.
	c.drain()
	c.connected.Store(true)
	c.log.Info().Str("url", c.opts.URL).Msg("connected")
	defer func() {
		c.connected.Store(false)
		c.drain()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- c.readLoop(ctx, conn)
	}()
	go func() {
		errCh <- c.writeLoop(ctx, conn)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		err = nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		err = nil
	}
	if err == nil {
		err = errors.New("closed by peer")
	}

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return true, err
}

func (c *Conn) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}

		c.mu.RLock()
		h, ok := c.handlers[frame.Event]
		c.mu.RUnlock()
		if !ok {
			c.log.Debug().Str("event", frame.Event).Msg("no handler for inbound event")
			continue
		}
		h(ctx, frame.Data)
	}
}

func (c *Conn) writeLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case frame := <-c.send:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				c.log.Error().Err(err).Str("event", frame.Event).Msg("write frame")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain discards frames queued for a session that is gone.
func (c *Conn) drain() {
	for {
		select {
		case frame := <-c.send:
			c.log.Debug().Str("event", frame.Event).Msg("dropped unsent frame")
		default:
			return
		}
	}
}
