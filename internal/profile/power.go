package profile

import (
	"context"
	"math"

	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

const (
	pageCalibration         = 0x01
	pageCrankParameters     = 0x02
	pagePowerOnly           = 0x10
	pageWheelTorque         = 0x11
	pageCrankTorque         = 0x12
	pageTorqueEffectiveness = 0x13
	pagePowerCTF            = 0x20
)

// Calibration IDs of page 0x01.
const (
	calibrationManual          = 0xAA
	calibrationAutoZero        = 0xAB
	calibrationSuccess         = 0xAC
	calibrationFailed          = 0xAF
	calibrationAutoZeroSupport = 0x12
	calibrationCTF             = 0x10
)

// Crank torque frequency defined calibration messages.
const (
	ctfZeroOffset   = 0x01
	ctfSlope        = 0x02
	ctfSerialNumber = 0x03
	ctfAck          = 0xAC
)

// PowerOnlyState is page 0x10.
type PowerOnlyState struct {
	EventCount           uint8   `json:"event_count"`
	PedalPower           uint8   `json:"pedal_power"` // percent, 0xFF not used
	RightPedal           bool    `json:"right_pedal"`
	InstantaneousCadence uint8   `json:"instantaneous_cadence"` // rpm, 0xFF invalid
	InstantaneousPower   uint16  `json:"instantaneous_power"`   // W
	AccumulatedPower     uint64  `json:"accumulated_power"`     // W, summed per event
	AveragePower         float64 `json:"average_power"`         // W
}

// TorqueEffectivenessState is page 0x13. Values are percent, -1 when not available.
type TorqueEffectivenessState struct {
	EventCount               uint8   `json:"event_count"`
	LeftTorqueEffectiveness  float64 `json:"left_torque_effectiveness"`
	RightTorqueEffectiveness float64 `json:"right_torque_effectiveness"`
	LeftPedalSmoothness      float64 `json:"left_pedal_smoothness"`
	RightPedalSmoothness     float64 `json:"right_pedal_smoothness"`
	CombinedPedalSmoothness  bool    `json:"combined_pedal_smoothness"`
}

// AutoZeroStatus is reported in calibration responses.
type AutoZeroStatus uint8

const (
	AutoZeroOff         AutoZeroStatus = 0x00
	AutoZeroOn          AutoZeroStatus = 0x01
	AutoZeroUnsupported AutoZeroStatus = 0xFF
)

// CalibrationState collects calibration responses.
type CalibrationState struct {
	Succeeded         bool           `json:"succeeded"`
	Data              int16          `json:"data"`
	AutoZero          AutoZeroStatus `json:"auto_zero"`
	AutoZeroSupported bool           `json:"auto_zero_supported"`
	AutoZeroEnabled   bool           `json:"auto_zero_enabled"`
	// Crank torque frequency sensors only.
	ZeroOffset      uint16 `json:"zero_offset,omitempty"` // Hz
	AcknowledgedCTF uint8  `json:"acknowledged_ctf,omitempty"`
}

func (c *CalibrationState) parse(p page.Page) {
	switch p[1] {
	case calibrationSuccess, calibrationFailed:
		c.Succeeded = p[1] == calibrationSuccess
		c.AutoZero = AutoZeroStatus(p[2])
		c.Data = int16(p.Uint16(6))
	case calibrationAutoZeroSupport:
		c.AutoZeroSupported = p[2]&0x01 != 0
		c.AutoZeroEnabled = p[2]&0x02 != 0
	case calibrationCTF:
		switch p[2] {
		case ctfZeroOffset:
			c.ZeroOffset = p.Uint16BE(6)
		case ctfAck:
			c.AcknowledgedCTF = p[3]
		}
	}
}

// CrankLengthStatus is bits 0-1 of the crank parameters status byte.
type CrankLengthStatus uint8

const (
	CrankLengthInvalid CrankLengthStatus = iota
	CrankLengthDefault
	CrankLengthManual
	CrankLengthAutomatic
)

// CrankParametersState is page 0x02.
type CrankParametersState struct {
	CrankLength        float64           `json:"crank_length"` // mm, 0 when invalid
	Status             CrankLengthStatus `json:"status"`
	SoftwareMismatch   uint8             `json:"software_mismatch"`
	SensorAvailability uint8             `json:"sensor_availability"`
	CustomCalibration  uint8             `json:"custom_calibration"`
	AutoCrankLength    bool              `json:"auto_crank_length"`
}

// crankLengthAuto requests automatic crank length detection.
const crankLengthAuto = 0xFF

func parseCrankParameters(p page.Page) CrankParametersState {
	s := CrankParametersState{
		Status:             CrankLengthStatus(p[5] & 0x03),
		SoftwareMismatch:   (p[5] >> 2) & 0x03,
		SensorAvailability: (p[5] >> 4) & 0x03,
		CustomCalibration:  (p[5] >> 6) & 0x03,
		AutoCrankLength:    p[6]&0x01 != 0,
	}
	if p[4] < 0xFE {
		s.CrankLength = 110 + float64(p[4])*0.5
	}
	return s
}

// StandardPowerState is the decoded bicycle power state. A section is nil
// until its page has been received.
type StandardPowerState struct {
	PowerOnly           *PowerOnlyState           `json:"power_only,omitempty"`
	WheelTorque         *TorqueState              `json:"wheel_torque,omitempty"`
	CrankTorque         *TorqueState              `json:"crank_torque,omitempty"`
	TorqueEffectiveness *TorqueEffectivenessState `json:"torque_effectiveness,omitempty"`
	Calibration         *CalibrationState         `json:"calibration,omitempty"`
	CrankParameters     *CrankParametersState     `json:"crank_parameters,omitempty"`
	Common
}

// StandardPower decodes device class 11 sensors using the power-only and
// torque pages.
type StandardPower struct {
	base
	state StandardPowerState

	powerEvents page.Counter
	accPower    page.Counter
	wheel       torque
	crank       torque
}

func NewStandardPower(id transport.ChannelID, opts Options) *StandardPower {
	return &StandardPower{
		base:        newBase(KindStandardPower, id, 0, opts),
		powerEvents: page.NewCounter(page.Width8),
		accPower:    page.NewCounter(page.Width16),
		wheel:       newTorque(),
		crank:       newTorque(),
	}
}

func (d *StandardPower) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.begin(p)
	if !ok {
		return
	}

	switch f.Number {
	case pagePowerOnly:
		d.parsePowerOnly(p)
	case pageWheelTorque:
		if d.state.WheelTorque == nil {
			d.state.WheelTorque = &TorqueState{}
		}
		s := *d.state.WheelTorque
		s.InstantaneousCadence = p[3]
		d.wheel.update(&s, p[1], p[2], p.Uint16(4), p.Uint16(6), d.opts.WheelCircumference)
		d.state.WheelTorque = &s
	case pageCrankTorque:
		if d.state.CrankTorque == nil {
			d.state.CrankTorque = &TorqueState{}
		}
		s := *d.state.CrankTorque
		s.InstantaneousCadence = p[3]
		d.crank.update(&s, p[1], p[2], p.Uint16(4), p.Uint16(6), 0)
		d.state.CrankTorque = &s
	case pageTorqueEffectiveness:
		s := parseTorqueEffectiveness(p)
		d.state.TorqueEffectiveness = &s
	case pageCalibration:
		s := CalibrationState{AutoZero: AutoZeroUnsupported}
		if d.state.Calibration != nil {
			s = *d.state.Calibration
		}
		s.parse(p)
		d.state.Calibration = &s
	case pageCrankParameters:
		if p[1] == 0x01 {
			s := parseCrankParameters(p)
			d.state.CrankParameters = &s
		}
	default:
		if !d.state.Common.parse(f.Number, p) {
			d.logger.WithField("page", p.String()).Trace("unsupported page")
		}
	}
}

func (d *StandardPower) parsePowerOnly(p page.Page) {
	s := PowerOnlyState{}
	if d.state.PowerOnly != nil {
		s = *d.state.PowerOnly
	}

	dEvents := d.powerEvents.Update(uint32(p[1]))
	dPower := d.accPower.Update(uint32(p.Uint16(4)))

	s.EventCount = p[1]
	s.PedalPower = p[2]
	s.RightPedal = false
	if p[2] != 0xFF {
		s.PedalPower = p[2] & 0x7F
		s.RightPedal = p[2]&0x80 != 0
	}
	s.InstantaneousCadence = p[3]
	s.InstantaneousPower = p.Uint16(6)
	s.AccumulatedPower = d.accPower.Total()
	if dEvents > 0 {
		s.AveragePower = float64(dPower) / float64(dEvents)
	}
	d.state.PowerOnly = &s
}

func parseTorqueEffectiveness(p page.Page) TorqueEffectivenessState {
	half := func(b byte) float64 {
		if b == 0xFF {
			return -1
		}
		return float64(b) / 2
	}
	s := TorqueEffectivenessState{
		EventCount:               p[1],
		LeftTorqueEffectiveness:  half(p[2]),
		RightTorqueEffectiveness: half(p[3]),
		LeftPedalSmoothness:      half(p[4]),
		RightPedalSmoothness:     half(p[5]),
	}
	if p[5] == 0xFE {
		s.CombinedPedalSmoothness = true
		s.RightPedalSmoothness = -1
	}
	return s
}

func (d *StandardPower) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ManualCalibration starts a manual zero calibration.
func (d *StandardPower) ManualCalibration(ctx context.Context) transport.ReturnCode {
	return d.send(ctx, newManualCalibrationPage())
}

// SetAutoZero enables or disables the sensor auto zero.
func (d *StandardPower) SetAutoZero(ctx context.Context, enabled bool) transport.ReturnCode {
	var v byte
	if enabled {
		v = 0x01
	}
	return d.send(ctx, page.NewBuilder(pageCalibration).Byte(1, calibrationAutoZero).Byte(2, v).Page())
}

// RequestCrankParameters asks for page 0x02 subpage 0x01.
func (d *StandardPower) RequestCrankParameters(ctx context.Context) transport.ReturnCode {
	p := page.NewRequestDataPage(pageCrankParameters, 1)
	p[3] = 0x01
	return d.send(ctx, p)
}

// SetCrankLength sets the crank length in millimeters (110 to 236.5); a
// length of zero asks the sensor to detect it.
func (d *StandardPower) SetCrankLength(ctx context.Context, mm float64) transport.ReturnCode {
	raw := byte(crankLengthAuto)
	if mm != 0 {
		if mm < 110 || mm > 236.5 {
			return transport.ReturnInvalidParams
		}
		raw = byte(math.Round((mm - 110) * 2))
	}
	return d.send(ctx, page.NewBuilder(pageCrankParameters).Byte(1, 0x01).Byte(4, raw).Page())
}

func newManualCalibrationPage() page.Page {
	return page.NewBuilder(pageCalibration).Byte(1, calibrationManual).Page()
}

// CrankTorqueFrequencyState is the decoded crank torque frequency sensor state.
type CrankTorqueFrequencyState struct {
	EventCount  uint8             `json:"event_count"`
	Slope       float64           `json:"slope"`   // Nm/Hz
	Cadence     float64           `json:"cadence"` // rpm
	Torque      float64           `json:"torque"`  // Nm
	Power       float64           `json:"power"`   // W
	Calibration *CalibrationState `json:"calibration,omitempty"`
	Common
}

// CrankTorqueFrequency decodes device class 11 sensors broadcasting page 0x20.
type CrankTorqueFrequency struct {
	base
	state  CrankTorqueFrequencyState
	events page.Counter
	time   page.Counter
	ticks  page.Counter
}

func NewCrankTorqueFrequency(id transport.ChannelID, opts Options) *CrankTorqueFrequency {
	return &CrankTorqueFrequency{
		base:   newBase(KindCrankTorqueFrequency, id, 0, opts),
		events: page.NewCounter(page.Width8),
		time:   page.NewCounter(page.Width16),
		ticks:  page.NewCounter(page.Width16),
	}
}

func (d *CrankTorqueFrequency) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.begin(p)
	if !ok {
		return
	}

	switch f.Number {
	case pagePowerCTF:
		d.parseCTF(p)
	case pageCalibration:
		s := CalibrationState{AutoZero: AutoZeroUnsupported}
		if d.state.Calibration != nil {
			s = *d.state.Calibration
		}
		s.parse(p)
		d.state.Calibration = &s
	default:
		if !d.state.Common.parse(f.Number, p) {
			d.logger.WithField("page", p.String()).Trace("unsupported page")
		}
	}
}

// parseCTF decodes page 0x20. Slope, time stamp and torque ticks are big-endian.
func (d *CrankTorqueFrequency) parseCTF(p page.Page) {
	dEvents := d.events.Update(uint32(p[1]))
	dTime := d.time.Update(uint32(p.Uint16BE(4)))
	dTicks := d.ticks.Update(uint32(p.Uint16BE(6)))

	d.state.EventCount = p[1]
	d.state.Slope = float64(p.Uint16BE(2)) / 10

	if dEvents == 0 || dTime == 0 || d.state.Slope == 0 {
		return
	}

	var offset float64
	if d.state.Calibration != nil {
		offset = float64(d.state.Calibration.ZeroOffset)
	}

	elapsed := float64(dTime) / 2000
	cadencePeriod := elapsed / float64(dEvents)
	d.state.Cadence = 60 / cadencePeriod
	torqueFrequency := float64(dTicks)/elapsed - offset
	d.state.Torque = torqueFrequency / d.state.Slope
	d.state.Power = d.state.Torque * d.state.Cadence * math.Pi / 30
}

func (d *CrankTorqueFrequency) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ManualCalibration starts a zero offset calibration.
func (d *CrankTorqueFrequency) ManualCalibration(ctx context.Context) transport.ReturnCode {
	return d.send(ctx, newManualCalibrationPage())
}

// SaveSlope stores the slope (Nm/Hz, 10.0 to 50.0) in the sensor.
func (d *CrankTorqueFrequency) SaveSlope(ctx context.Context, slope float64) transport.ReturnCode {
	raw := math.Round(slope * 10)
	if raw < 100 || raw > 500 {
		return transport.ReturnInvalidParams
	}
	return d.send(ctx, newCTFPage(ctfSlope, uint16(raw)))
}

// SaveSerialNumber stores the serial number in the sensor.
func (d *CrankTorqueFrequency) SaveSerialNumber(ctx context.Context, serial uint16) transport.ReturnCode {
	return d.send(ctx, newCTFPage(ctfSerialNumber, serial))
}

func newCTFPage(id byte, v uint16) page.Page {
	return page.NewBuilder(pageCalibration).
		Byte(1, calibrationCTF).
		Byte(2, id).
		Uint16BE(6, v).
		Page()
}
