// Package mux arbitrates acknowledged sends over the small pool of ANT
// channels reserved for transmitting. A caller takes the first free channel,
// sends, and releases it; when every channel is busy it backs off and retries
// until its context ends.
package mux

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/antscope/internal/groutine"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

// DefaultBackoff is the pause between scans of a fully busy pool.
const DefaultBackoff = 10 * time.Millisecond

// Options configures a Multiplexer.
type Options struct {
	Backoff time.Duration
	Logger  *logrus.Logger
}

// Multiplexer implements transport.Sender over a fixed channel pool.
type Multiplexer struct {
	mu       sync.Mutex
	channels []transport.Channel
	busy     []bool

	backoff time.Duration
	logger  *logrus.Logger
}

// New creates a Multiplexer over channels. The slice is copied.
func New(channels []transport.Channel, opts Options) *Multiplexer {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	pool := make([]transport.Channel, len(channels))
	copy(pool, channels)

	return &Multiplexer{
		channels: pool,
		busy:     make([]bool, len(pool)),
		backoff:  opts.Backoff,
		logger:   opts.Logger,
	}
}

// Size returns the number of channels in the pool.
func (m *Multiplexer) Size() int {
	return len(m.channels)
}

// Busy returns the number of channels currently sending.
func (m *Multiplexer) Busy() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, b := range m.busy {
		if b {
			n++
		}
	}
	return n
}

// acquire marks the first free channel busy and returns its index, or -1.
func (m *Multiplexer) acquire() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, b := range m.busy {
		if !b {
			m.busy[i] = true
			return i
		}
	}
	return -1
}

func (m *Multiplexer) release(i int) {
	m.mu.Lock()
	m.busy[i] = false
	m.mu.Unlock()
}

// Send transmits p to id on the first free channel, waiting up to wait for
// the acknowledgement. While the pool is exhausted it retries every backoff
// until ctx is done, which yields ReturnCancelled (or ReturnTimeout for a
// deadline). An empty pool fails immediately.
func (m *Multiplexer) Send(ctx context.Context, id transport.ChannelID, p page.Page, wait time.Duration) transport.ReturnCode {
	if len(m.channels) == 0 {
		m.logger.WithField("device", id.String()).Warn("No send channels available")
		return transport.ReturnFail
	}

	for {
		if err := ctx.Err(); err != nil {
			return transport.FromContext(ctx)
		}

		i := m.acquire()
		if i < 0 {
			select {
			case <-ctx.Done():
				return transport.FromContext(ctx)
			case <-time.After(m.backoff):
			}
			continue
		}

		return m.sendOn(ctx, i, id, p, wait)
	}
}

func (m *Multiplexer) sendOn(ctx context.Context, i int, id transport.ChannelID, p page.Page, wait time.Duration) transport.ReturnCode {
	defer m.release(i)

	ch := m.channels[i]
	sendCtx := ctx
	if wait > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	rc := ch.SendAcknowledged(sendCtx, id, p, wait)
	if rc == transport.ReturnCancelled && sendCtx.Err() != nil && ctx.Err() == nil {
		rc = transport.ReturnTimeout
	}

	m.logger.WithFields(logrus.Fields{
		"channel": ch.Number(),
		"device":  id.String(),
		"page":    fmt.Sprintf("0x%02X", p.Number()),
		"result":  rc.String(),
	}).Debug("Acknowledged send finished")

	return rc
}

// SendAsync runs Send in a named goroutine. The returned channel receives
// exactly one ReturnCode.
func (m *Multiplexer) SendAsync(ctx context.Context, id transport.ChannelID, p page.Page, wait time.Duration) <-chan transport.ReturnCode {
	result := make(chan transport.ReturnCode, 1)
	name := fmt.Sprintf("ant-send-%s-0x%02X", id.String(), p.Number())
	groutine.Go(ctx, name, func(ctx context.Context) {
		result <- m.Send(ctx, id, p, wait)
	})
	return result
}
