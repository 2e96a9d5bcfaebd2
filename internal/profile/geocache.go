package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

const (
	pageGeocacheID        = 0x00
	pageGeocachePIN       = 0x01
	pageGeocacheFirstData = 0x02
	pageGeocacheLastData  = 0x1F
)

// Data IDs of the programmable geocache pages.
const (
	geocacheLatitude  = 0x00
	geocacheLongitude = 0x01
	geocacheHint      = 0x02
	geocacheVisits    = 0x04
)

const (
	trackableIDLength = 9
	hintChunk         = 6
)

// geocacheEpoch is the zero of logged visit timestamps.
var geocacheEpoch = time.Date(1989, time.December, 31, 0, 0, 0, 0, time.UTC)

// ErrInvalidGeocache is returned when geocache data cannot be encoded.
var ErrInvalidGeocache = errors.New("invalid geocache data")

// GeocacheState is the decoded geocache. Fields stay at their zero value
// until the page carrying them has been received.
type GeocacheState struct {
	TrackableID    string     `json:"trackable_id"`
	PIN            *uint32    `json:"pin,omitempty"`
	NumberOfPages  uint8      `json:"number_of_pages,omitempty"`
	Latitude       *float64   `json:"latitude,omitempty"`
	Longitude      *float64   `json:"longitude,omitempty"`
	Hint           string     `json:"hint,omitempty"`
	LastVisit      *time.Time `json:"last_visit,omitempty"`
	NumberOfVisits uint16     `json:"number_of_visits"`
	Common
}

// GeocacheData is what ProgramGeocache writes to a geocache.
type GeocacheData struct {
	TrackableID    string
	PIN            uint32
	Latitude       *float64
	Longitude      *float64
	Hint           string
	LastVisit      *time.Time
	NumberOfVisits uint16
}

// Geocache decodes device class 19. Pages may arrive in any order; hint
// fragments are joined by ascending page number.
type Geocache struct {
	base
	state GeocacheState
	hints map[byte]string
}

func NewGeocache(id transport.ChannelID, opts Options) *Geocache {
	return &Geocache{
		base:  newBase(KindGeocache, id, 0, opts),
		hints: map[byte]string{},
	}
}

func (d *Geocache) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.begin(p)
	if !ok {
		return
	}

	switch {
	case f.Number == pageGeocacheID:
		d.state.TrackableID = decodeTrackableID(p)
	case f.Number == pageGeocachePIN:
		pin := p.Uint32(2)
		d.state.PIN = &pin
		d.state.NumberOfPages = p[6]
	case f.Number >= pageGeocacheFirstData && f.Number <= pageGeocacheLastData:
		d.parseData(f.Number, p)
	default:
		if !d.state.Common.parse(f.Number, p) {
			d.logger.WithField("page", p.String()).Trace("unsupported page")
		}
	}
}

func (d *Geocache) parseData(number byte, p page.Page) {
	if p[1] != geocacheHint {
		if _, ok := d.hints[number]; ok {
			delete(d.hints, number)
			d.state.Hint = d.joinHint()
		}
	}

	switch p[1] {
	case geocacheLatitude:
		lat := semicirclesToDegrees(p.Int32(2))
		d.state.Latitude = &lat
	case geocacheLongitude:
		lon := semicirclesToDegrees(p.Int32(2))
		d.state.Longitude = &lon
	case geocacheHint:
		d.hints[number] = strings.TrimRight(string(p[2:8]), "\x00")
		d.state.Hint = d.joinHint()
	case geocacheVisits:
		visit := geocacheEpoch.Add(time.Duration(p.Uint32(2)) * time.Second)
		d.state.LastVisit = &visit
		d.state.NumberOfVisits = p.Uint16(6)
	}
}

func (d *Geocache) joinHint() string {
	numbers := make([]int, 0, len(d.hints))
	for n := range d.hints {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)

	var sb strings.Builder
	for _, n := range numbers {
		sb.WriteString(d.hints[byte(n)])
	}
	return sb.String()
}

func (d *Geocache) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Geocache) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = GeocacheState{}
	d.hints = map[byte]string{}
	d.codec.Reset()
}

// RequestPinPage clears the cached geocache and asks for the PIN page.
func (d *Geocache) RequestPinPage(ctx context.Context) transport.ReturnCode {
	d.reset()
	return d.RequestDataPage(ctx, pageGeocachePIN)
}

// ProgramGeocache clears the cached geocache and writes data page by page.
// It stops at the first page that is not acknowledged.
func (d *Geocache) ProgramGeocache(ctx context.Context, data GeocacheData) transport.ReturnCode {
	pages, err := EncodeGeocache(data)
	if err != nil {
		d.logger.WithError(err).Warn("geocache not programmed")
		return transport.ReturnInvalidParams
	}

	d.reset()
	for _, p := range pages {
		if rc := d.send(ctx, p); rc != transport.ReturnPass {
			return rc
		}
	}
	return transport.ReturnPass
}

// EncodeGeocache builds the pages describing data: the ID page, the PIN page
// and one programmable page per latitude, longitude, hint fragment and visit.
func EncodeGeocache(data GeocacheData) ([]page.Page, error) {
	idPage, err := encodeTrackableID(data.TrackableID)
	if err != nil {
		return nil, err
	}

	var payload []*page.Builder
	if data.Latitude != nil {
		payload = append(payload, newGeocacheDataPage(geocacheLatitude).Uint32(2, uint32(degreesToSemicircles(*data.Latitude))))
	}
	if data.Longitude != nil {
		payload = append(payload, newGeocacheDataPage(geocacheLongitude).Uint32(2, uint32(degreesToSemicircles(*data.Longitude))))
	}
	for hint := data.Hint; hint != ""; {
		n := min(hintChunk, len(hint))
		b := newGeocacheDataPage(geocacheHint)
		for i := 0; i < hintChunk; i++ {
			var c byte
			if i < n {
				c = hint[i]
			}
			b.Byte(2+i, c)
		}
		payload = append(payload, b)
		hint = hint[n:]
	}
	if data.LastVisit != nil {
		secs := data.LastVisit.Sub(geocacheEpoch) / time.Second
		if secs < 0 || secs > 0xFFFFFFFF {
			return nil, fmt.Errorf("%w: visit %s out of range", ErrInvalidGeocache, data.LastVisit)
		}
		payload = append(payload, newGeocacheDataPage(geocacheVisits).Uint32(2, uint32(secs)).Uint16(6, data.NumberOfVisits))
	}

	total := 2 + len(payload)
	if total > pageGeocacheLastData+1 {
		return nil, fmt.Errorf("%w: %d pages exceed the geocache capacity", ErrInvalidGeocache, total)
	}

	pages := make([]page.Page, 0, total)
	pages = append(pages, idPage)
	pages = append(pages, page.NewBuilder(pageGeocachePIN).Uint32(2, data.PIN).Byte(6, byte(total)).Page())
	for i, b := range payload {
		p := b.Page()
		p[0] = byte(pageGeocacheFirstData + i)
		pages = append(pages, p)
	}
	return pages, nil
}

func newGeocacheDataPage(id byte) *page.Builder {
	return page.NewBuilder(pageGeocacheFirstData).Byte(1, id)
}

// decodeTrackableID unpacks nine 6-bit characters from bytes 1-7, most
// significant bits first. Each character is offset by 0x20.
func decodeTrackableID(p page.Page) string {
	var v uint64
	for _, b := range p[1:8] {
		v = v<<8 | uint64(b)
	}

	var sb strings.Builder
	for i := 0; i < trackableIDLength; i++ {
		c := byte(v>>(50-6*i)) & 0x3F
		sb.WriteByte(c + 0x20)
	}
	return strings.TrimRight(sb.String(), " ")
}

func encodeTrackableID(id string) (page.Page, error) {
	id = strings.ToUpper(id)
	if len(id) > trackableIDLength {
		return page.Page{}, fmt.Errorf("%w: trackable id %q longer than %d characters", ErrInvalidGeocache, id, trackableIDLength)
	}

	var v uint64
	for i := 0; i < trackableIDLength; i++ {
		c := byte(' ')
		if i < len(id) {
			c = id[i]
		}
		if c < 0x20 || c > 0x5F {
			return page.Page{}, fmt.Errorf("%w: character %q not allowed in trackable id", ErrInvalidGeocache, c)
		}
		v |= uint64(c-0x20) << (50 - 6*i)
	}

	p := page.Page{pageGeocacheID}
	for i := 7; i >= 1; i-- {
		p[i] = byte(v)
		v >>= 8
	}
	return p, nil
}
