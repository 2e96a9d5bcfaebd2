// Package profile implements the ANT+ device profiles: one stateful decoder per
// device family that consumes data pages and maintains instantaneous and
// accumulated physical quantities, plus the commands each family accepts.
//
// Decoders are safe for concurrent use: Parse is expected to be called from a
// single receive path while Snapshot and commands may be called from anywhere.
package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

// Decoder is implemented by every device profile.
type Decoder interface {
	ID() transport.ChannelID
	Kind() Kind
	// Parse applies one data page. Pages are applied in receipt order.
	Parse(p page.Page)
	// Snapshot returns a copy of the decoded state.
	Snapshot() any
	// LastSeen is the time the last page (duplicate or not) was received.
	LastSeen() time.Time
	// MarkOffline freezes the decoder; it reports whether this call made the transition.
	MarkOffline() bool
	Offline() bool
}

// Options are shared by all decoders.
type Options struct {
	Sender             transport.Sender
	Logger             *logrus.Logger
	WheelCircumference float64       // meters
	SendTimeout        time.Duration // wait time for acknowledged sends
	PageHistory        uint32        // raw pages kept by the unknown decoder
	Now                func() time.Time
}

const (
	DefaultWheelCircumference = 2.2
	DefaultSendTimeout        = 500 * time.Millisecond
	DefaultPageHistory        = 64
)

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	if o.WheelCircumference <= 0 {
		o.WheelCircumference = DefaultWheelCircumference
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
	if o.PageHistory == 0 {
		o.PageHistory = DefaultPageHistory
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Common holds the common pages any profile may interleave with its own.
type Common struct {
	Manufacturer  *page.ManufacturerInfo `json:"manufacturer,omitempty"`
	Product       *page.ProductInfo      `json:"product,omitempty"`
	Battery       *page.BatteryStatus    `json:"battery,omitempty"`
	CommandStatus *page.CommandStatus    `json:"command_status,omitempty"`
}

// parse applies a common page; returns false for other page numbers.
func (c *Common) parse(number byte, p page.Page) bool {
	switch number {
	case page.NumberManufacturer:
		info := page.ParseManufacturerInfo(p)
		c.Manufacturer = &info
	case page.NumberProductInfo:
		info := page.ParseProductInfo(p)
		c.Product = &info
	case page.NumberBatteryStatus:
		bs := page.ParseBatteryStatus(p)
		c.Battery = &bs
	case page.NumberCommandStatus:
		cs := page.ParseCommandStatus(p)
		c.CommandStatus = &cs
	default:
		return false
	}
	return true
}

// base carries what every decoder has: identity, page codec, liveness and
// the outbound path. Family decoders embed it and hold mu while parsing.
type base struct {
	mu       sync.Mutex
	id       transport.ChannelID
	kind     Kind
	codec    page.Codec
	opts     Options
	logger   *logrus.Entry
	lastSeen time.Time
	offline  bool
}

func newBase(kind Kind, id transport.ChannelID, toggleMask byte, opts Options) base {
	opts = opts.withDefaults()
	return base{
		id:    id,
		kind:  kind,
		codec: page.NewCodec(toggleMask),
		opts:  opts,
		logger: opts.Logger.WithFields(logrus.Fields{
			"device": id.String(),
			"kind":   kind.String(),
		}),
	}
}

// begin runs the shared page filtering. Caller must hold mu.
func (b *base) begin(p page.Page) (page.Frame, bool) {
	if b.offline {
		return page.Frame{}, false
	}
	b.lastSeen = b.opts.Now()

	f, ok := b.codec.Decode(p)
	if !ok {
		b.logger.WithField("page", p.String()).Trace("duplicate page dropped")
	}
	return f, ok
}

func (b *base) ID() transport.ChannelID {
	return b.id
}

func (b *base) Kind() Kind {
	return b.kind
}

func (b *base) LastSeen() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeen
}

func (b *base) MarkOffline() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return false
	}
	b.offline = true
	b.logger.Debug("device marked offline")
	return true
}

func (b *base) Offline() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offline
}

// send issues an acknowledged send. It must not be called with mu held.
func (b *base) send(ctx context.Context, p page.Page) transport.ReturnCode {
	if b.opts.Sender == nil {
		b.logger.Warn("no sender configured, command dropped")
		return transport.ReturnFail
	}

	rc := b.opts.Sender.Send(ctx, b.id, p, b.opts.SendTimeout)
	entry := b.logger.WithFields(logrus.Fields{"page": p.String(), "result": rc.String()})
	if rc != transport.ReturnPass {
		entry.WithError(rc.Errorf("device %s", b.id)).Warn("command not acknowledged")
	} else {
		entry.Debug("command acknowledged")
	}
	return rc
}

// RequestDataPage asks the sensor to broadcast the given page (common page 70).
func (b *base) RequestDataPage(ctx context.Context, number byte) transport.ReturnCode {
	return b.send(ctx, page.NewRequestDataPage(number, 1))
}

// ParseBytes applies a raw payload to d, silently dropping anything that is
// not exactly one data page.
func ParseBytes(d Decoder, raw []byte) bool {
	p, ok := page.FromBytes(raw)
	if !ok {
		return false
	}
	d.Parse(p)
	return true
}

// semicirclesToDegrees converts a 32-bit semicircle angle to degrees.
func semicirclesToDegrees(v int32) float64 {
	return float64(v) * 180 / (1 << 31)
}

// degreesToSemicircles is the inverse of semicirclesToDegrees.
func degreesToSemicircles(deg float64) int32 {
	return int32(deg * (1 << 31) / 180)
}

// Snapshot pairs a decoder's identity with its state for presentation.
type Snapshot struct {
	ID       transport.ChannelID `json:"id"`
	Kind     Kind                `json:"kind"`
	LastSeen time.Time           `json:"last_seen"`
	State    any                 `json:"state"`
}

// Describe builds a Snapshot of d.
func Describe(d Decoder) Snapshot {
	return Snapshot{
		ID:       d.ID(),
		Kind:     d.Kind(),
		LastSeen: d.LastSeen(),
		State:    d.Snapshot(),
	}
}

// String implements fmt.Stringer for log output.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s %s", s.Kind, s.ID)
}
