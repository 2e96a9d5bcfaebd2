// Package replay provides a transport.Radio that plays back a recorded
// capture instead of talking to a USB stick. Acknowledged sends are recorded
// and acknowledged locally.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/antscope/internal/groutine"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

const DefaultSendChannels = 2

var ErrNotInitialized = errors.New("radio not initialized")

// Options configures a replay Radio.
type Options struct {
	// SendChannels is the number of channels reserved for acknowledged sends.
	SendChannels int
	// Speed scales capture timing; 0 replays without delays.
	Speed float64
	// AckDelay simulates the over-the-air time of an acknowledged send.
	AckDelay time.Duration
	// AckResult is returned for every acknowledged send.
	AckResult transport.ReturnCode
	// Epoch stamps record offsets; zero uses the wall clock at Play.
	Epoch  time.Time
	Logger *logrus.Logger
}

// SentPage is one acknowledged send observed by the radio.
type SentPage struct {
	Channel uint8
	ID      transport.ChannelID
	Page    page.Page
}

// Radio replays a Capture.
type Radio struct {
	capture *Capture
	opts    Options
	logger  *logrus.Logger

	mu       sync.Mutex
	channels []*Channel
	sent     []SentPage
}

// New creates a Radio for c.
func New(c *Capture, opts Options) *Radio {
	if opts.SendChannels <= 0 {
		opts.SendChannels = DefaultSendChannels
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Radio{capture: c, opts: opts, logger: opts.Logger}
}

// InitializeContinuousScanMode opens the receive channel and the send channels.
// Calling it again returns the same channels.
func (r *Radio) InitializeContinuousScanMode(ctx context.Context) ([]transport.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channels == nil {
		for i := 0; i <= r.opts.SendChannels; i++ {
			r.channels = append(r.channels, newChannel(uint8(i), r))
		}
		r.logger.WithField("channels", len(r.channels)).Debug("Replay radio initialized")
	}

	out := make([]transport.Channel, len(r.channels))
	for i, ch := range r.channels {
		out[i] = ch
	}
	return out, nil
}

// Play delivers every record to subscribers of its channel, honouring the
// capture timing scaled by Speed. It returns the number of records delivered.
func (r *Radio) Play(ctx context.Context) (int, error) {
	r.mu.Lock()
	channels := r.channels
	r.mu.Unlock()
	if channels == nil {
		return 0, ErrNotInitialized
	}

	start := time.Now()
	epoch := r.opts.Epoch
	if epoch.IsZero() {
		epoch = start
	}

	offsets := r.capture.Offsets()
	delivered := 0
	for i, rec := range r.capture.Records {
		if r.opts.Speed > 0 {
			due := start.Add(time.Duration(float64(offsets[i]) / r.opts.Speed))
			if wait := time.Until(due); wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return delivered, ctx.Err()
				case <-t.C:
				}
			}
		} else if err := ctx.Err(); err != nil {
			return delivered, err
		}

		resp, err := rec.Response(epoch.Add(offsets[i]))
		if err != nil {
			return delivered, fmt.Errorf("record %d: %w", i, err)
		}
		if int(rec.Channel) >= len(channels) {
			return delivered, fmt.Errorf("record %d: channel %d out of range", i, rec.Channel)
		}

		channels[rec.Channel].emit(resp)
		delivered++
	}

	r.logger.WithField("records", delivered).Debug("Replay finished")
	return delivered, nil
}

// PlayAsync runs Play in a named goroutine; the channel receives its error.
func (r *Radio) PlayAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	groutine.Go(ctx, "ant-replay", func(ctx context.Context) {
		_, err := r.Play(ctx)
		done <- err
	})
	return done
}

// Sent returns every acknowledged send so far.
func (r *Radio) Sent() []SentPage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SentPage, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *Radio) recordSend(s SentPage) {
	r.mu.Lock()
	r.sent = append(r.sent, s)
	r.mu.Unlock()
}

// Channel is one replay channel.
type Channel struct {
	number uint8
	radio  *Radio

	mu       sync.Mutex
	handlers map[int]func(transport.Response)
	nextID   int
	closed   bool
}

func newChannel(number uint8, r *Radio) *Channel {
	return &Channel{number: number, radio: r, handlers: map[int]func(transport.Response){}}
}

func (c *Channel) Number() uint8 {
	return c.number
}

func (c *Channel) Subscribe(fn func(transport.Response)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, id)
			c.mu.Unlock()
		})
	}
}

// SendAcknowledged records the page and acknowledges it after AckDelay.
func (c *Channel) SendAcknowledged(ctx context.Context, id transport.ChannelID, p page.Page, wait time.Duration) transport.ReturnCode {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transport.ReturnFail
	}

	if delay := c.radio.opts.AckDelay; delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return transport.FromContext(ctx)
		case <-t.C:
		}
	}

	c.radio.recordSend(SentPage{Channel: c.number, ID: id, Page: p})
	c.radio.logger.WithFields(logrus.Fields{
		"channel": c.number,
		"device":  id.String(),
		"page":    p.String(),
	}).Debug("Acknowledged page sent")
	return c.radio.opts.AckResult
}

// Close drops every subscriber. Later sends fail.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.handlers = map[int]func(transport.Response){}
	return nil
}

func (c *Channel) emit(resp transport.Response) {
	c.mu.Lock()
	handlers := make([]func(transport.Response), 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	resp.Channel = c.number
	for _, h := range handlers {
		h(resp)
	}
}
