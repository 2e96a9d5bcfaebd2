package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/srg/antscope/internal/antmsg"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
	"github.com/srg/antscope/internal/transport/replay"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// CaptureBuilder assembles replay captures for tests.
//
//	capture := testutils.NewCaptureBuilder().
//	    WithInterval(250 * time.Millisecond).
//	    WithDevice(hrID).
//	    WithPages("00 FF FF FF 00 04 05 48", "00 FF FF FF 00 08 06 49").
//	    Build()
type CaptureBuilder struct {
	capture replay.Capture
	device  *transport.ChannelID
	channel uint8
}

func NewCaptureBuilder() *CaptureBuilder {
	return &CaptureBuilder{}
}

func (b *CaptureBuilder) WithName(name string) *CaptureBuilder {
	b.capture.Name = name
	return b
}

func (b *CaptureBuilder) WithInterval(d time.Duration) *CaptureBuilder {
	b.capture.Interval = d
	return b
}

// WithDevice sets the identity attached to subsequent pages.
func (b *CaptureBuilder) WithDevice(id transport.ChannelID) *CaptureBuilder {
	b.device = &id
	return b
}

// WithChannel sets the channel subsequent records arrive on.
func (b *CaptureBuilder) WithChannel(channel uint8) *CaptureBuilder {
	b.channel = channel
	return b
}

// WithPages appends broadcast records, one per hex page.
func (b *CaptureBuilder) WithPages(hex ...string) *CaptureBuilder {
	for _, h := range hex {
		p := page.MustParse(h)
		rec := replay.Record{Channel: b.channel, Page: &p}
		if b.device != nil {
			id := *b.device
			rec.Device = &id
		}
		b.capture.Records = append(b.capture.Records, rec)
	}
	return b
}

// WithRecord appends a record as is.
func (b *CaptureBuilder) WithRecord(rec replay.Record) *CaptureBuilder {
	b.capture.Records = append(b.capture.Records, rec)
	return b
}

// WithSerialError appends an identity-less error record.
func (b *CaptureBuilder) WithSerialError(code uint8) *CaptureBuilder {
	return b.WithRecord(replay.Record{Channel: b.channel, Kind: "error", Code: code})
}

func (b *CaptureBuilder) Build() *replay.Capture {
	c := b.capture
	c.Records = append([]replay.Record(nil), b.capture.Records...)
	return &c
}

// YAML renders the capture in the file format read by replay.LoadCapture.
func (b *CaptureBuilder) YAML() ([]byte, error) {
	return yaml.Marshal(b.Build())
}

// Raw renders the broadcast records as an ANT serial byte stream.
func (b *CaptureBuilder) Raw() []byte {
	var out []byte
	for _, rec := range b.capture.Records {
		if rec.Page == nil {
			continue
		}
		out = append(out, antmsg.EncodeBroadcast(rec.Channel, *rec.Page, rec.Device)...)
	}
	return out
}

// WriteFile writes the YAML capture into a temp dir and returns its path.
func (b *CaptureBuilder) WriteFile(t *testing.T) string {
	data, err := b.YAML()
	require.NoError(t, err, "capture MUST marshal")

	path := filepath.Join(t.TempDir(), "capture.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600), "capture MUST be written")
	return path
}

// WriteRawFile writes the raw byte stream into a temp dir and returns its path.
func (b *CaptureBuilder) WriteRawFile(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, b.Raw(), 0o600), "raw capture MUST be written")
	return path
}
