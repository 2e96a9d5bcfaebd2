package antmsg

import (
	"errors"
	"fmt"

	"github.com/smallnest/ringbuffer"
)

// DefaultBufferSize holds a few hundred messages of stick output.
const DefaultBufferSize = 4096

type framerState int

const (
	stateSync framerState = iota
	stateLength
	stateBody
)

// Framer reassembles messages from an arbitrarily chunked byte stream.
// Bytes before a sync byte are skipped. A frame with an impossible length or a
// bad checksum is dropped and its bytes after the sync byte are scanned again,
// so a corrupted length cannot swallow the next message.
// A Framer is not safe for concurrent use.
type Framer struct {
	buf     *ringbuffer.RingBuffer
	backlog []byte // rejected frame bytes to rescan before buf
	state   framerState
	frame   []byte
	need    int
	stats   Stats
}

// NewFramer creates a Framer buffering up to size bytes between reads.
func NewFramer(size int) *Framer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Framer{buf: ringbuffer.New(size)}
}

// Feed appends data and returns every message it completes.
func (f *Framer) Feed(data []byte) ([]Message, error) {
	var out []Message
	for {
		n, err := f.buf.Write(data)
		data = data[n:]
		out = append(out, f.drain()...)

		if len(data) == 0 {
			return out, nil
		}
		if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) {
			return out, fmt.Errorf("failed to buffer stream: %w", err)
		}
	}
}

// Stats returns the framing counters.
func (f *Framer) Stats() Stats {
	return f.stats
}

// Pending returns the number of buffered bytes not yet framed.
func (f *Framer) Pending() int {
	return f.buf.Length() + len(f.backlog) + len(f.frame)
}

func (f *Framer) next() (byte, bool) {
	if len(f.backlog) > 0 {
		b := f.backlog[0]
		f.backlog = f.backlog[1:]
		return b, true
	}
	b, err := f.buf.ReadByte()
	// ErrIsEmpty: wait for the next Feed
	return b, err == nil
}

// rescan drops the current frame's sync byte and queues the rest for another
// pass ahead of any bytes still in the backlog.
func (f *Framer) rescan() {
	f.backlog = append(append([]byte(nil), f.frame[1:]...), f.backlog...)
	f.frame = f.frame[:0]
	f.state = stateSync
}

func (f *Framer) drain() []Message {
	var out []Message
	for {
		b, ok := f.next()
		if !ok {
			return out
		}

		switch f.state {
		case stateSync:
			if b != Sync {
				f.stats.SkippedBytes++
				continue
			}
			f.frame = append(f.frame[:0], b)
			f.state = stateLength

		case stateLength:
			f.frame = append(f.frame, b)
			if int(b) > MaxDataLength {
				f.stats.SkippedBytes++
				f.rescan()
				continue
			}
			f.need = int(b) + 2 // ID and checksum
			f.state = stateBody

		case stateBody:
			f.frame = append(f.frame, b)
			f.need--
			if f.need > 0 {
				continue
			}
			body := f.frame[:len(f.frame)-1]
			if checksum(body) != f.frame[len(f.frame)-1] {
				f.stats.BadChecksum++
				f.rescan()
				continue
			}
			f.stats.Messages++
			out = append(out, Message{ID: body[2], Data: append([]byte(nil), body[3:]...)})
			f.frame = f.frame[:0]
			f.state = stateSync
		}
	}
}
