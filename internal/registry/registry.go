// Package registry routes inbound ANT pages to per-device decoders. It creates
// a decoder the first time a channel identity is heard, keeps it alive while
// pages keep arriving and drops it once the device has been silent for its
// liveness window.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/antscope/internal/mux"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/profile"
	"github.com/srg/antscope/internal/ringchan"
	"github.com/srg/antscope/internal/transport"
)

const (
	// DefaultMissedMessages is the tolerance applied on top of the family
	// broadcast period when no timeout is configured.
	DefaultMissedMessages = 8
	DefaultEventBuffer    = 64
)

var (
	ErrAlreadyStarted = errors.New("registry already started")
	ErrClosed         = errors.New("registry closed")
	ErrNoChannels     = errors.New("radio returned no channels")
	// ErrTransportDesync is reported by Err after an error response without a
	// channel identity tore the registry down.
	ErrTransportDesync = errors.New("transport out of sync")
)

// Options configures a Registry.
type Options struct {
	// Timeout overrides the family broadcast period as the liveness base.
	Timeout time.Duration
	// MissedMessages multiplies the base: window = base * (MissedMessages + 1).
	// Zero selects DefaultMissedMessages only when Timeout is unset.
	MissedMessages int
	EventBuffer    int
	// Updates enables an EventUpdated per dispatched page.
	Updates bool
	// SendBackoff is passed to the multiplexer built by Start.
	SendBackoff time.Duration
	Decoder     profile.Options
	Logger      *logrus.Logger
}

// Window returns the liveness window for a device class.
func (o Options) Window(class uint8) time.Duration {
	base := o.Timeout
	missed := o.MissedMessages
	if base <= 0 {
		base = profile.BroadcastPeriod(class)
		if missed <= 0 {
			missed = DefaultMissedMessages
		}
	}
	if missed < 0 {
		missed = 0
	}
	return base * time.Duration(missed+1)
}

type entry struct {
	decoder profile.Decoder
	window  time.Duration
	timer   *time.Timer
}

// Registry is the set of active devices heard on one radio.
type Registry struct {
	mu      sync.Mutex
	devices *hashmap.Map[uint32, *entry]
	events  *ringchan.RingChannel[Event]

	opts   Options
	logger *logrus.Logger
	now    func() time.Time

	radio       transport.Radio
	channels    []transport.Channel
	unsubscribe []func()
	mux         *mux.Multiplexer
	started     bool
	closed      bool
	err         error
}

// New creates a Registry on radio. Nothing is opened until Start.
func New(radio transport.Radio, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Decoder.Logger == nil {
		opts.Decoder.Logger = opts.Logger
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	now := opts.Decoder.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		devices: hashmap.New[uint32, *entry](),
		events:  ringchan.New[Event](opts.EventBuffer),
		opts:    opts,
		logger:  opts.Logger,
		now:     now,
		radio:   radio,
	}
}

// Start puts the radio into continuous scan mode, subscribes to every channel
// and reserves all channels but the first for acknowledged sends.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.started {
		return ErrAlreadyStarted
	}

	channels, err := r.radio.InitializeContinuousScanMode(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize scan mode: %w", err)
	}
	if len(channels) == 0 {
		return ErrNoChannels
	}

	r.channels = channels
	r.mux = mux.New(channels[1:], mux.Options{Backoff: r.opts.SendBackoff, Logger: r.logger})
	if r.opts.Decoder.Sender == nil {
		r.opts.Decoder.Sender = r.mux
	}
	for _, ch := range channels {
		r.unsubscribe = append(r.unsubscribe, ch.Subscribe(r.HandleResponse))
	}
	r.started = true

	r.logger.WithFields(logrus.Fields{
		"receive_channel": channels[0].Number(),
		"send_channels":   len(channels) - 1,
	}).Info("ANT scan started")
	return nil
}

// Sender returns the multiplexer over the send channels, nil before Start.
func (r *Registry) Sender() *mux.Multiplexer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mux
}

// HandleResponse dispatches one inbound response. It is the subscription
// callback installed by Start and may also be called directly.
func (r *Registry) HandleResponse(resp transport.Response) {
	if resp.ID == nil {
		if resp.Kind == transport.ResponseError {
			r.logger.WithFields(logrus.Fields{
				"channel": resp.Channel,
				"code":    resp.Code,
			}).Error("Error response without channel identity, tearing down")
			r.teardown(true)
			return
		}
		r.logger.WithField("channel", resp.Channel).Trace("response without channel identity dropped")
		return
	}

	switch resp.Kind {
	case transport.ResponseBroadcast, transport.ResponseAcknowledged, transport.ResponseBurst:
	default:
		r.logger.WithFields(logrus.Fields{
			"device": resp.ID.String(),
			"kind":   resp.Kind.String(),
			"code":   resp.Code,
		}).Debug("Channel event")
		return
	}

	p, ok := page.FromBytes(resp.Payload)
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"device": resp.ID.String(),
			"length": len(resp.Payload),
		}).Trace("malformed payload dropped")
		return
	}

	r.dispatch(*resp.ID, p)
}

// Dispatch routes a page for id as if it had been received from the radio.
func (r *Registry) Dispatch(id transport.ChannelID, p page.Page) {
	r.dispatch(id, p)
}

func (r *Registry) dispatch(id transport.ChannelID, p page.Page) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	key := id.Key()
	e, ok := r.devices.Get(key)
	if ok && e.decoder.Kind() == profile.KindUnknown && profile.HasSelector(id.DeviceClass()) {
		if kind := profile.Resolve(id, p); kind != profile.KindUnknown {
			r.logger.WithFields(logrus.Fields{
				"device": id.String(),
				"kind":   kind.String(),
			}).Debug("Device type resolved")
			r.removeLocked(key, e, EventRemoved)
			ok = false
		}
	}
	if !ok {
		e = r.addLocked(id, p)
	}

	e.decoder.Parse(p)
	e.timer.Reset(e.window)

	if r.opts.Updates {
		r.emit(EventUpdated, e.decoder)
	}
}

// addLocked creates and registers the decoder for id. Caller must hold mu.
func (r *Registry) addLocked(id transport.ChannelID, first page.Page) *entry {
	d := profile.NewFor(id, first, r.opts.Decoder)
	e := &entry{
		decoder: d,
		window:  r.opts.Window(id.DeviceClass()),
	}
	key := id.Key()
	e.timer = time.AfterFunc(e.window, func() { r.expire(key, e) })
	r.devices.Set(key, e)

	r.logger.WithFields(logrus.Fields{
		"device": id.DeviceNumber,
		"type":   id.DeviceClass(),
		"trans":  id.TransmissionType,
		"kind":   d.Kind().String(),
		"window": e.window,
	}).Info("Discovered new device")
	r.emit(EventAdded, d)
	return e
}

// removeLocked drops e and freezes its decoder. Caller must hold mu.
func (r *Registry) removeLocked(key uint32, e *entry, reason EventType) {
	e.timer.Stop()
	r.devices.Del(key)
	if e.decoder.MarkOffline() {
		r.emit(reason, e.decoder)
	}
}

// expire runs on the liveness timer. A page may have re-armed the timer
// between firing and taking the lock, so silence is re-checked here.
func (r *Registry) expire(key uint32, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	cur, ok := r.devices.Get(key)
	if !ok || cur != e {
		return
	}

	silent := r.now().Sub(e.decoder.LastSeen())
	if silent < e.window {
		e.timer.Reset(e.window - silent)
		return
	}

	r.logger.WithFields(logrus.Fields{
		"device": e.decoder.ID().String(),
		"kind":   e.decoder.Kind().String(),
		"silent": silent,
	}).Info("Device went offline")
	r.removeLocked(key, e, EventOffline)
}

// Remove drops the decoder for id. A later page from id creates a new one.
func (r *Registry) Remove(id transport.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := id.Key()
	e, ok := r.devices.Get(key)
	if !ok {
		return false
	}
	r.removeLocked(key, e, EventRemoved)
	return true
}

// Get returns the active decoder for id.
func (r *Registry) Get(id transport.ChannelID) (profile.Decoder, bool) {
	e, ok := r.devices.Get(id.Key())
	if !ok {
		return nil, false
	}
	return e.decoder, true
}

// Devices returns the active decoders ordered by identity.
func (r *Registry) Devices() []profile.Decoder {
	entries := make([]*entry, 0, r.devices.Len())
	r.devices.Range(func(_ uint32, e *entry) bool {
		entries = append(entries, e)
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].decoder.ID().Key() < entries[j].decoder.ID().Key()
	})

	out := make([]profile.Decoder, len(entries))
	for i, e := range entries {
		out[i] = e.decoder
	}
	return out
}

// Len returns the number of active devices.
func (r *Registry) Len() int {
	return r.devices.Len()
}

// Events returns the lifecycle event stream. It is closed by Close or by a
// fatal transport error.
func (r *Registry) Events() <-chan Event {
	return r.events.C()
}

// Err returns ErrTransportDesync once a fatal transport error closed the
// registry, nil otherwise.
func (r *Registry) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close releases every subscription, timer and channel.
func (r *Registry) Close() error {
	return r.teardown(false)
}

func (r *Registry) teardown(fatal bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, unsubscribe := range r.unsubscribe {
		unsubscribe()
	}
	r.unsubscribe = nil

	var keys []uint32
	r.devices.Range(func(key uint32, e *entry) bool {
		e.timer.Stop()
		e.decoder.MarkOffline()
		keys = append(keys, key)
		return true
	})
	for _, key := range keys {
		r.devices.Del(key)
	}

	var errs []error
	for _, ch := range r.channels {
		if err := ch.Close(); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", ch.Number(), err))
		}
	}

	if fatal {
		r.err = ErrTransportDesync
		r.events.Send(Event{Type: EventRegistryOffline, Time: r.now()})
	}
	r.events.Close()

	r.logger.WithField("devices", len(keys)).Debug("Registry closed")
	return errors.Join(errs...)
}

// emit publishes an event. Caller must hold mu.
func (r *Registry) emit(t EventType, d profile.Decoder) {
	if r.events.Send(Event{Type: t, ID: d.ID(), Kind: d.Kind(), Decoder: d, Time: r.now()}) {
		r.logger.Trace("event buffer full, oldest event dropped")
	}
}
