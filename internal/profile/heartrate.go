package profile

import (
	"context"

	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

const (
	pageHRDefault       = 0x00
	pageHRPreviousBeat  = 0x04
	pageHRSwimInterval  = 0x05
	pageHRCapabilities  = 0x06
	pageHRBatteryStatus = 0x07
)

// HeartRateState is the decoded heart rate monitor state.
type HeartRateState struct {
	HeartRate        uint8   `json:"heart_rate"`
	BeatCount        uint8   `json:"beat_count"`
	AccumulatedBeats uint64  `json:"accumulated_beats"`
	BeatEventTime    float64 `json:"beat_event_time"` // seconds, rolls over every 64 s
	// RRInterval is the last beat-to-beat interval in milliseconds.
	RRInterval        float64 `json:"rr_interval_ms"`
	IntervalAverageHR uint8   `json:"interval_average_hr,omitempty"`
	IntervalMaximumHR uint8   `json:"interval_maximum_hr,omitempty"`
	SessionAverageHR  uint8   `json:"session_average_hr,omitempty"`
	FeaturesSupported uint8   `json:"features_supported,omitempty"`
	FeaturesEnabled   uint8   `json:"features_enabled,omitempty"`
	BatteryLevel      uint8   `json:"battery_level,omitempty"` // percent
	SensorInfo
	Common
}

// HeartRate decodes device class 120.
type HeartRate struct {
	base
	state     HeartRateState
	beats     page.Counter
	eventTime page.Counter
}

func NewHeartRate(id transport.ChannelID, opts Options) *HeartRate {
	return &HeartRate{
		base:      newBase(KindHeartRate, id, page.ToggleMask, opts),
		beats:     page.NewCounter(page.Width8),
		eventTime: page.NewCounter(page.Width16),
	}
}

func (d *HeartRate) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.begin(p)
	if !ok {
		return
	}

	if f.Number >= 0x40 {
		d.state.Common.parse(f.Number, p)
		return
	}

	// Bytes 4-7 carry the main fields on every profile page.
	d.parseBeat(p, f.Number)

	if !f.BackgroundReady {
		return
	}

	switch f.Number {
	case pageHRDefault, pageHRPreviousBeat:
	case pageHRSwimInterval:
		d.state.IntervalAverageHR = p[1]
		d.state.IntervalMaximumHR = p[2]
		d.state.SessionAverageHR = p[3]
	case pageHRCapabilities:
		d.state.FeaturesSupported = p[2]
		d.state.FeaturesEnabled = p[3]
	case pageHRBatteryStatus:
		if p[1] != 0xFF {
			d.state.BatteryLevel = p[1]
		}
		d.state.SensorInfo.parse(f.Number, p, pageHRBatteryStatus, d.id.DeviceNumber)
	default:
		if !d.state.SensorInfo.parse(f.Number, p, pageHRBatteryStatus, d.id.DeviceNumber) {
			d.logger.WithField("page", p.String()).Trace("unsupported page")
		}
	}
}

func (d *HeartRate) parseBeat(p page.Page, number byte) {
	raw := p.Uint16(4)
	count := p[6]

	first := !d.beats.Seeded()
	dTime := d.eventTime.Update(uint32(raw))
	dBeats := d.beats.Update(uint32(count))

	d.state.HeartRate = p[7]
	d.state.BeatCount = count
	d.state.BeatEventTime = float64(raw) / 1024
	d.state.AccumulatedBeats = d.beats.Total()

	if first || dBeats == 0 {
		return
	}
	switch {
	case number == pageHRPreviousBeat && dBeats == 1:
		prev := p.Uint16(2)
		d.state.RRInterval = float64(page.Delta(page.Width16, uint32(prev), uint32(raw))) * 1000 / 1024
	case dBeats == 1 && dTime > 0:
		d.state.RRInterval = float64(dTime) * 1000 / 1024
	}
}

func (d *HeartRate) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetSportMode sends common page 76.
func (d *HeartRate) SetSportMode(ctx context.Context, mode page.SportMode) transport.ReturnCode {
	return d.send(ctx, page.NewModeSettingsPage(mode))
}

// RequestCapabilities asks the monitor for background page 6.
func (d *HeartRate) RequestCapabilities(ctx context.Context) transport.ReturnCode {
	return d.RequestDataPage(ctx, pageHRCapabilities)
}
