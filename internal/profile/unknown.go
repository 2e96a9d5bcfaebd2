package profile

import (
	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

// UnknownState describes the raw traffic of a device without a profile.
type UnknownState struct {
	LastPage    page.Page `json:"last_page"`
	Received    uint64    `json:"received"`
	Buffered    uint64    `json:"buffered"`
	Overwritten uint64    `json:"overwritten"`
}

// Unknown records raw pages of devices no profile matches. The most recent
// pages are kept in an overlapping ring buffer; older ones are overwritten.
type Unknown struct {
	base
	state   UnknownState
	history mpmc.RichOverlappedRingBuffer[page.Page]
}

func NewUnknown(id transport.ChannelID, opts Options) *Unknown {
	d := &Unknown{base: newBase(KindUnknown, id, 0, opts)}
	d.history = mpmc.NewOverlappedRingBuffer[page.Page](d.opts.PageHistory)
	return d
}

func (d *Unknown) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.begin(p); !ok {
		return
	}

	d.state.LastPage = p
	d.state.Received++

	overwrites, err := d.history.EnqueueM(p)
	if err != nil {
		d.logger.WithError(err).Warn("page history rejected page")
		return
	}
	d.state.Overwritten += uint64(overwrites)
	d.state.Buffered = d.state.Buffered + 1 - uint64(overwrites)
}

func (d *Unknown) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pages drains the recorded history, oldest first.
func (d *Unknown) Pages() []page.Page {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []page.Page
	for !d.history.IsEmpty() {
		p, err := d.history.Dequeue()
		if err != nil {
			break
		}
		out = append(out, p)
	}
	d.state.Buffered = 0
	return out
}
