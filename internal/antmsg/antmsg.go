// Package antmsg frames the ANT serial protocol used by USB sticks:
//
//	SYNC(0xA4) LEN ID DATA[LEN] CHECKSUM
//
// where CHECKSUM is the XOR of every preceding byte. Raw captures of a stick's
// byte stream are decoded with a Framer and turned into transport responses.
package antmsg

import (
	"errors"
	"fmt"
	"time"

	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

const (
	Sync byte = 0xA4

	// MaxDataLength bounds LEN; anything larger is treated as line noise.
	MaxDataLength = 32
)

// Message IDs used by the receive path.
const (
	IDChannelEvent   byte = 0x40
	IDBroadcastData  byte = 0x4E
	IDAcknowledged   byte = 0x4F
	IDBurstData      byte = 0x50
	IDSerialError    byte = 0xAE
	IDStartupMessage byte = 0x6F
)

const (
	extendedFlag = 0x80
	burstChannel = 0x1F
)

var ErrTooLong = errors.New("message data too long")

// Message is one framed ANT message.
type Message struct {
	ID   byte
	Data []byte
}

// Encode frames a message.
func Encode(id byte, data []byte) ([]byte, error) {
	if len(data) > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, len(data))
	}

	out := make([]byte, 0, len(data)+4)
	out = append(out, Sync, byte(len(data)), id)
	out = append(out, data...)
	return append(out, checksum(out)), nil
}

// EncodeBroadcast frames a broadcast data message carrying p, with the
// extended identity trailer when id is non-nil.
func EncodeBroadcast(channel uint8, p page.Page, id *transport.ChannelID) []byte {
	data := append([]byte{channel}, p.Bytes()...)
	if id != nil {
		data = append(data, extendedFlag,
			byte(id.DeviceNumber), byte(id.DeviceNumber>>8), id.DeviceType, id.TransmissionType)
	}
	out, _ := Encode(IDBroadcastData, data)
	return out
}

func checksum(b []byte) byte {
	var c byte
	for _, v := range b {
		c ^= v
	}
	return c
}

// Response converts a data or event message into a transport response.
// Messages the receive path does not care about yield false.
func (m Message) Response(at time.Time) (transport.Response, bool) {
	switch m.ID {
	case IDBroadcastData, IDAcknowledged, IDBurstData:
		if len(m.Data) < 1+page.Size {
			return transport.Response{}, false
		}
		r := transport.Response{
			Channel:   m.Data[0],
			Kind:      dataKinds[m.ID],
			Payload:   append([]byte(nil), m.Data[1:1+page.Size]...),
			Timestamp: at,
		}
		if m.ID == IDBurstData {
			r.Channel &= burstChannel
		}
		if ext := m.Data[1+page.Size:]; len(ext) >= 5 && ext[0]&extendedFlag != 0 {
			r.ID = &transport.ChannelID{
				DeviceNumber:     uint16(ext[1]) | uint16(ext[2])<<8,
				DeviceType:       ext[3],
				TransmissionType: ext[4],
			}
		}
		return r, true

	case IDChannelEvent:
		if len(m.Data) < 3 {
			return transport.Response{}, false
		}
		// Channel events and command responses are never fatal; only a
		// serial error means the stream is out of sync.
		return transport.Response{Channel: m.Data[0], Kind: transport.ResponseEvent, Code: m.Data[2], Timestamp: at}, true

	case IDSerialError:
		var code byte
		if len(m.Data) > 0 {
			code = m.Data[0]
		}
		return transport.Response{Kind: transport.ResponseError, Code: code, Timestamp: at}, true

	default:
		return transport.Response{}, false
	}
}

var dataKinds = map[byte]transport.ResponseKind{
	IDBroadcastData: transport.ResponseBroadcast,
	IDAcknowledged:  transport.ResponseAcknowledged,
	IDBurstData:     transport.ResponseBurst,
}

// Stats counts framing outcomes.
type Stats struct {
	Messages     int
	BadChecksum  int
	SkippedBytes int
}
