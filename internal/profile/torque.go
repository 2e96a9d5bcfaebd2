package profile

import (
	"math"

	"github.com/srg/antscope/internal/page"
)

// TorqueState is derived from a torque page (power wheel/crank torque, trainer torque).
type TorqueState struct {
	EventCount             uint8   `json:"event_count"`
	Ticks                  uint64  `json:"ticks"`
	InstantaneousCadence   uint8   `json:"instantaneous_cadence,omitempty"` // rpm, 0xFF invalid
	AverageAngularVelocity float64 `json:"average_angular_velocity"`        // rad/s
	AverageTorque          float64 `json:"average_torque"`                  // Nm
	AveragePower           float64 `json:"average_power"`                   // W
	AverageSpeed           float64 `json:"average_speed,omitempty"`         // km/h, wheel only
	Distance               float64 `json:"distance,omitempty"`              // m, wheel only
	AverageCadence         float64 `json:"average_cadence,omitempty"`       // rpm, crank only
}

// torque accumulates the rollover fields shared by all torque pages:
// event count, rotation ticks, period (1/2048 s) and torque (1/32 Nm).
type torque struct {
	events page.Counter
	ticks  page.Counter
	period page.Counter
	torque page.Counter
}

func newTorque() torque {
	return torque{
		events: page.NewCounter(page.Width8),
		ticks:  page.NewCounter(page.Width8),
		period: page.NewCounter(page.Width16),
		torque: page.NewCounter(page.Width16),
	}
}

// update applies one reading to s. circumference > 0 derives wheel speed and
// distance, otherwise crank cadence is derived.
func (t *torque) update(s *TorqueState, events, ticks uint8, period, acc uint16, circumference float64) {
	dEvents := t.events.Update(uint32(events))
	t.ticks.Update(uint32(ticks))
	dPeriod := t.period.Update(uint32(period))
	dTorque := t.torque.Update(uint32(acc))

	s.EventCount = events
	s.Ticks = t.ticks.Total()
	if circumference > 0 {
		s.Distance = float64(s.Ticks) * circumference
	}

	if dEvents == 0 || dPeriod == 0 {
		return
	}
	seconds := float64(dPeriod) / 2048
	s.AverageAngularVelocity = 2 * math.Pi * float64(dEvents) / seconds
	s.AverageTorque = float64(dTorque) / (32 * float64(dEvents))
	s.AveragePower = s.AverageTorque * s.AverageAngularVelocity

	if circumference > 0 {
		s.AverageSpeed = circumference * float64(dEvents) / seconds * 3.6
	} else {
		s.AverageCadence = 60 * float64(dEvents) / seconds
	}
}
