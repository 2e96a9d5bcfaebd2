package profile

import (
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

const (
	pageSCBattery = 0x04
	pageSCMotion  = 0x05
)

// BikeSpeedState is the decoded bike speed sensor state.
type BikeSpeedState struct {
	Speed              float64 `json:"speed"`    // m/s
	Distance           float64 `json:"distance"` // m
	WheelRevolutions   uint64  `json:"wheel_revolutions"`
	Stopped            bool    `json:"stopped"`
	WheelCircumference float64 `json:"wheel_circumference"`
	SensorInfo
	Common
}

// BikeCadenceState is the decoded bike cadence sensor state.
type BikeCadenceState struct {
	Cadence          float64 `json:"cadence"` // rpm
	CrankRevolutions uint64  `json:"crank_revolutions"`
	Stopped          bool    `json:"stopped"`
	SensorInfo
	Common
}

// BikeSpeedCadenceState is the decoded combined sensor state.
type BikeSpeedCadenceState struct {
	Speed              float64 `json:"speed"`
	Distance           float64 `json:"distance"`
	WheelRevolutions   uint64  `json:"wheel_revolutions"`
	Cadence            float64 `json:"cadence"`
	CrankRevolutions   uint64  `json:"crank_revolutions"`
	WheelCircumference float64 `json:"wheel_circumference"`
}

// wheel turns wheel revolutions into speed and distance.
type wheel struct {
	revolutions
	circumference float64
}

func (w *wheel) apply(eventTime, revs uint16, speed, distance *float64, total *uint64) {
	dRevs, dTime, ok := w.update(eventTime, revs)
	*total = w.total()
	*distance = float64(*total) * w.circumference
	switch {
	case ok:
		*speed = w.circumference * float64(dRevs) * 1024 / float64(dTime)
	case w.stopped():
		*speed = 0
	}
}

func (w *wheel) idle(speed *float64) {
	w.revolutions.idle()
	if w.stopped() {
		*speed = 0
	}
}

// crank turns crank revolutions into cadence.
type crank struct {
	revolutions
}

func (c *crank) apply(eventTime, revs uint16, cadence *float64, total *uint64) {
	dRevs, dTime, ok := c.update(eventTime, revs)
	*total = c.total()
	switch {
	case ok:
		*cadence = 60 * float64(dRevs) * 1024 / float64(dTime)
	case c.stopped():
		*cadence = 0
	}
}

func (c *crank) idle(cadence *float64) {
	c.revolutions.idle()
	if c.stopped() {
		*cadence = 0
	}
}

// BikeSpeed decodes device class 123.
type BikeSpeed struct {
	base
	state BikeSpeedState
	wheel wheel
}

func NewBikeSpeed(id transport.ChannelID, opts Options) *BikeSpeed {
	d := &BikeSpeed{base: newBase(KindBikeSpeed, id, page.ToggleMask, opts)}
	d.wheel = wheel{revolutions: newRevolutions(), circumference: d.opts.WheelCircumference}
	d.state.WheelCircumference = d.wheel.circumference
	return d
}

func (d *BikeSpeed) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.begin(p)
	if !ok {
		if f.Duplicate && f.Number < 0x40 {
			d.wheel.idle(&d.state.Speed)
			d.state.Stopped = d.wheel.stopped()
		}
		return
	}
	if f.Number >= 0x40 {
		d.state.Common.parse(f.Number, p)
		return
	}

	d.wheel.apply(p.Uint16(4), p.Uint16(6), &d.state.Speed, &d.state.Distance, &d.state.WheelRevolutions)
	d.state.Stopped = d.wheel.stopped()

	if !f.BackgroundReady {
		return
	}
	if f.Number == pageSCMotion {
		if p[1]&0x01 != 0 {
			d.state.Stopped = true
			d.state.Speed = 0
		}
		return
	}
	d.state.SensorInfo.parse(f.Number, p, pageSCBattery, d.id.DeviceNumber)
}

func (d *BikeSpeed) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// BikeCadence decodes device class 122.
type BikeCadence struct {
	base
	state BikeCadenceState
	crank crank
}

func NewBikeCadence(id transport.ChannelID, opts Options) *BikeCadence {
	return &BikeCadence{
		base:  newBase(KindBikeCadence, id, page.ToggleMask, opts),
		crank: crank{revolutions: newRevolutions()},
	}
}

func (d *BikeCadence) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.begin(p)
	if !ok {
		if f.Duplicate && f.Number < 0x40 {
			d.crank.idle(&d.state.Cadence)
			d.state.Stopped = d.crank.stopped()
		}
		return
	}
	if f.Number >= 0x40 {
		d.state.Common.parse(f.Number, p)
		return
	}

	d.crank.apply(p.Uint16(4), p.Uint16(6), &d.state.Cadence, &d.state.CrankRevolutions)
	d.state.Stopped = d.crank.stopped()

	if !f.BackgroundReady {
		return
	}
	if f.Number == pageSCMotion {
		if p[1]&0x01 != 0 {
			d.state.Stopped = true
			d.state.Cadence = 0
		}
		return
	}
	d.state.SensorInfo.parse(f.Number, p, pageSCBattery, d.id.DeviceNumber)
}

func (d *BikeCadence) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// BikeSpeedCadence decodes device class 121. Its pages carry no page number.
type BikeSpeedCadence struct {
	base
	state BikeSpeedCadenceState
	wheel wheel
	crank crank
}

func NewBikeSpeedCadence(id transport.ChannelID, opts Options) *BikeSpeedCadence {
	d := &BikeSpeedCadence{
		base:  newBase(KindBikeSpeedCadence, id, 0, opts),
		crank: crank{revolutions: newRevolutions()},
	}
	d.wheel = wheel{revolutions: newRevolutions(), circumference: d.opts.WheelCircumference}
	d.state.WheelCircumference = d.wheel.circumference
	return d
}

func (d *BikeSpeedCadence) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f, ok := d.begin(p); !ok {
		if f.Duplicate {
			d.crank.idle(&d.state.Cadence)
			d.wheel.idle(&d.state.Speed)
		}
		return
	}
	d.crank.apply(p.Uint16(0), p.Uint16(2), &d.state.Cadence, &d.state.CrankRevolutions)
	d.wheel.apply(p.Uint16(4), p.Uint16(6), &d.state.Speed, &d.state.Distance, &d.state.WheelRevolutions)
}

func (d *BikeSpeedCadence) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
