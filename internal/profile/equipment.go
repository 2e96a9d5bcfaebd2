package profile

import (
	"github.com/srg/antscope/internal/page"
)

// TreadmillState is page 19.
type TreadmillState struct {
	Cadence                  uint8   `json:"cadence"`                    // strides/min
	NegativeVerticalDistance float64 `json:"negative_vertical_distance"` // m, accumulated descent
	PositiveVerticalDistance float64 `json:"positive_vertical_distance"` // m, accumulated ascent
}

type treadmill struct {
	state    TreadmillState
	negative page.DownCounter
	positive page.Counter
}

func newTreadmill() *treadmill {
	return &treadmill{
		negative: page.NewDownCounter(page.Width8),
		positive: page.NewCounter(page.Width8),
	}
}

func (t *treadmill) parse(number byte, p page.Page) bool {
	if number != pageTreadmill {
		return false
	}
	if p[4] != 0xFF {
		t.state.Cadence = p[4]
	}
	t.negative.Update(uint32(p[5]))
	t.positive.Update(uint32(p[6]))
	t.state.NegativeVerticalDistance = -float64(t.negative.Total()) / 10
	t.state.PositiveVerticalDistance = float64(t.positive.Total()) / 10
	return true
}

func (t *treadmill) snapshot() any {
	return t.state
}

// EllipticalState is page 20.
type EllipticalState struct {
	Strides                  uint64  `json:"strides"`
	Cadence                  uint8   `json:"cadence"` // strides/min
	PositiveVerticalDistance float64 `json:"positive_vertical_distance"`
	Power                    uint16  `json:"power"` // W
}

type elliptical struct {
	state    EllipticalState
	strides  page.Counter
	positive page.Counter
}

func newElliptical() *elliptical {
	return &elliptical{
		strides:  page.NewCounter(page.Width8),
		positive: page.NewCounter(page.Width8),
	}
}

func (e *elliptical) parse(number byte, p page.Page) bool {
	if number != pageElliptical {
		return false
	}
	e.strides.Update(uint32(p[2]))
	e.positive.Update(uint32(p[4]))
	e.state.Strides = e.strides.Total()
	e.state.Cadence = p[3]
	e.state.PositiveVerticalDistance = float64(e.positive.Total()) / 10
	if raw := p.Uint16(5); raw != 0xFFFF {
		e.state.Power = raw
	}
	return true
}

func (e *elliptical) snapshot() any {
	return e.state
}

// StrokeState is the rower, climber and nordic skier page: a stroke (or
// stride) count, a cadence and the instantaneous power.
type StrokeState struct {
	Strokes uint64 `json:"strokes"`
	Cadence uint8  `json:"cadence"`
	Power   uint16 `json:"power"` // W
}

type strokeMachine struct {
	number  byte
	state   StrokeState
	strokes page.Counter
}

func newStrokeMachine(number byte) *strokeMachine {
	return &strokeMachine{number: number, strokes: page.NewCounter(page.Width8)}
}

func (s *strokeMachine) parse(number byte, p page.Page) bool {
	if number != s.number {
		return false
	}
	s.strokes.Update(uint32(p[3]))
	s.state.Strokes = s.strokes.Total()
	s.state.Cadence = p[4]
	if raw := p.Uint16(5); raw != 0xFFFF {
		s.state.Power = raw
	}
	return true
}

func (s *strokeMachine) snapshot() any {
	return s.state
}

// TargetPowerLimit is bits 0-1 of the trainer flags.
type TargetPowerLimit uint8

const (
	TargetPowerOnTarget TargetPowerLimit = iota
	TargetPowerTooLow
	TargetPowerTooHigh
	TargetPowerUndetermined
)

// TrainerState is pages 25 and 26.
type TrainerState struct {
	EventCount                    uint8            `json:"event_count"`
	Cadence                       uint8            `json:"cadence"`
	AccumulatedPower              uint64           `json:"accumulated_power"`
	InstantaneousPower            uint16           `json:"instantaneous_power"`
	AveragePower                  float64          `json:"average_power"`
	PowerCalibrationRequired      bool             `json:"power_calibration_required"`
	ResistanceCalibrationRequired bool             `json:"resistance_calibration_required"`
	UserConfigurationRequired     bool             `json:"user_configuration_required"`
	TargetPower                   TargetPowerLimit `json:"target_power"`
	Torque                        *TorqueState     `json:"torque,omitempty"`
}

type trainer struct {
	state         TrainerState
	events        page.Counter
	power         page.Counter
	torque        torque
	circumference float64
}

func newTrainer(circumference float64) *trainer {
	return &trainer{
		events:        page.NewCounter(page.Width8),
		power:         page.NewCounter(page.Width16),
		torque:        newTorque(),
		circumference: circumference,
	}
}

func (t *trainer) parse(number byte, p page.Page) bool {
	switch number {
	case pageTrainer:
		dEvents := t.events.Update(uint32(p[1]))
		dPower := t.power.Update(uint32(p.Uint16(3)))

		t.state.EventCount = p[1]
		if p[2] != 0xFF {
			t.state.Cadence = p[2]
		}
		t.state.AccumulatedPower = t.power.Total()
		if raw := uint16(p[5]) | uint16(p[6]&0x0F)<<8; raw != 0xFFF {
			t.state.InstantaneousPower = raw
		}
		if dEvents > 0 {
			t.state.AveragePower = float64(dPower) / float64(dEvents)
		}
		t.state.PowerCalibrationRequired = p[6]&0x10 != 0
		t.state.ResistanceCalibrationRequired = p[6]&0x20 != 0
		t.state.UserConfigurationRequired = p[6]&0x40 != 0
		t.state.TargetPower = TargetPowerLimit(p[7] & 0x03)
	case pageTrainerTorque:
		s := TorqueState{}
		if t.state.Torque != nil {
			s = *t.state.Torque
		}
		t.torque.update(&s, p[1], p[2], p.Uint16(3), p.Uint16(5), t.circumference)
		t.state.Torque = &s
	default:
		return false
	}
	return true
}

func (t *trainer) snapshot() any {
	return t.state
}
