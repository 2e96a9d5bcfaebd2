package replay

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/srg/antscope/internal/antmsg"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
	"gopkg.in/yaml.v3"
)

var ErrEmptyCapture = errors.New("capture has no records")

// Capture is a recorded session: the pages a radio delivered, in order.
type Capture struct {
	// Name is a free-form label shown by the CLI
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Interval spaces records that carry no explicit At offset (default: 0, replay as fast as possible)
	Interval time.Duration `json:"interval,omitempty" yaml:"interval,omitempty"`

	Records []Record `json:"records" yaml:"records"`
}

// Record is one received message.
type Record struct {
	// At is the offset from the start of the capture. Zero means previous record + Interval.
	At time.Duration `json:"at,omitempty" yaml:"at,omitempty"`

	// Channel the message arrived on (default: 0, the receive channel)
	Channel uint8 `json:"channel,omitempty" yaml:"channel,omitempty"`

	// Kind is broadcast, acknowledged, burst, event or error (default: broadcast)
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Device is the sender's identity; omitted for identity-less events and errors
	Device *transport.ChannelID `json:"device,omitempty" yaml:"device,omitempty"`

	// Page is the payload as hex, e.g. "00 FF FF FF 00 04 05 48"
	Page *page.Page `json:"page,omitempty" yaml:"page,omitempty"`

	// Code is the event or error code
	Code uint8 `json:"code,omitempty" yaml:"code,omitempty"`
}

var recordKinds = map[string]transport.ResponseKind{
	"":             transport.ResponseBroadcast,
	"broadcast":    transport.ResponseBroadcast,
	"acknowledged": transport.ResponseAcknowledged,
	"burst":        transport.ResponseBurst,
	"event":        transport.ResponseEvent,
	"error":        transport.ResponseError,
}

// Response converts the record into what a live radio would deliver.
func (r Record) Response(at time.Time) (transport.Response, error) {
	kind, ok := recordKinds[r.Kind]
	if !ok {
		return transport.Response{}, fmt.Errorf("unknown record kind %q", r.Kind)
	}

	resp := transport.Response{
		Channel:   r.Channel,
		Kind:      kind,
		Code:      r.Code,
		Timestamp: at,
	}
	if r.Device != nil {
		id := *r.Device
		resp.ID = &id
	}
	if r.Page != nil {
		resp.Payload = r.Page.Bytes()
	}
	return resp, nil
}

// Offsets returns the replay offset of every record.
func (c *Capture) Offsets() []time.Duration {
	out := make([]time.Duration, len(c.Records))
	var prev time.Duration
	for i, r := range c.Records {
		switch {
		case r.At > 0:
			prev = r.At
		case i > 0:
			prev += c.Interval
		}
		out[i] = prev
	}
	return out
}

// Validate checks every record before a replay starts.
func (c *Capture) Validate() error {
	if len(c.Records) == 0 {
		return ErrEmptyCapture
	}
	for i, r := range c.Records {
		if _, ok := recordKinds[r.Kind]; !ok {
			return fmt.Errorf("record %d: unknown kind %q", i, r.Kind)
		}
		kind := recordKinds[r.Kind]
		if kind != transport.ResponseEvent && kind != transport.ResponseError && r.Page == nil {
			return fmt.Errorf("record %d: %s record without page", i, kind)
		}
	}
	return nil
}

// ParseCapture decodes a YAML capture.
func ParseCapture(data []byte) (*Capture, error) {
	var c Capture
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse capture: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCapture reads a YAML capture file.
func LoadCapture(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	return ParseCapture(data)
}

// ReadRaw builds a capture from a raw ANT serial byte stream. Messages that
// are not data, channel events or serial errors are skipped.
func ReadRaw(r io.Reader, interval time.Duration) (*Capture, antmsg.Stats, error) {
	f := antmsg.NewFramer(0)
	c := &Capture{Interval: interval}

	chunk := make([]byte, 1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			msgs, ferr := f.Feed(chunk[:n])
			if ferr != nil {
				return nil, f.Stats(), ferr
			}
			for _, m := range msgs {
				if rec, ok := recordFromMessage(m); ok {
					c.Records = append(c.Records, rec)
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, f.Stats(), fmt.Errorf("failed to read raw stream: %w", err)
		}
	}

	if len(c.Records) == 0 {
		return nil, f.Stats(), ErrEmptyCapture
	}
	return c, f.Stats(), nil
}

// ParseRaw is ReadRaw over an in-memory stream.
func ParseRaw(data []byte, interval time.Duration) (*Capture, antmsg.Stats, error) {
	return ReadRaw(bytes.NewReader(data), interval)
}

var kindNames = map[transport.ResponseKind]string{
	transport.ResponseBroadcast:    "broadcast",
	transport.ResponseAcknowledged: "acknowledged",
	transport.ResponseBurst:        "burst",
	transport.ResponseEvent:        "event",
	transport.ResponseError:        "error",
}

func recordFromMessage(m antmsg.Message) (Record, bool) {
	resp, ok := m.Response(time.Time{})
	if !ok {
		return Record{}, false
	}

	rec := Record{
		Channel: resp.Channel,
		Kind:    kindNames[resp.Kind],
		Device:  resp.ID,
		Code:    resp.Code,
	}
	if p, ok := page.FromBytes(resp.Payload); ok {
		rec.Page = &p
	}
	return rec, true
}
