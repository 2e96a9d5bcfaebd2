package profile

import (
	"github.com/srg/antscope/internal/page"
)

// Background pages shared by the heart rate, bike speed and bike cadence profiles.
const (
	pageOperatingTime = 0x01
	pageManufacturer  = 0x02
	pageProduct       = 0x03
)

// SensorInfo is the background data of the legacy sensor profiles.
type SensorInfo struct {
	OperatingTimeSec uint32              `json:"operating_time_sec"`
	ManufacturerID   uint8               `json:"manufacturer_id"`
	SerialNumber     uint32              `json:"serial_number"`
	HardwareVersion  uint8               `json:"hardware_version"`
	SoftwareVersion  uint8               `json:"software_version"`
	ModelNumber      uint8               `json:"model_number"`
	SensorBattery    *page.BatteryStatus `json:"sensor_battery,omitempty"`
}

// parse applies one background page. batteryPage is the profile-specific
// number of the battery page. deviceNumber supplies the low 16 bits of the
// serial number.
func (s *SensorInfo) parse(number byte, p page.Page, batteryPage byte, deviceNumber uint16) bool {
	switch number {
	case pageOperatingTime:
		s.OperatingTimeSec = p.Uint24(1) * 2
	case pageManufacturer:
		s.ManufacturerID = p[1]
		s.SerialNumber = uint32(p.Uint16(2))<<16 | uint32(deviceNumber)
	case pageProduct:
		s.HardwareVersion = p[1]
		s.SoftwareVersion = p[2]
		s.ModelNumber = p[3]
	case batteryPage:
		s.SensorBattery = parseLegacyBattery(p)
	default:
		return false
	}
	return true
}

// parseLegacyBattery decodes fractional voltage (byte 2) and the descriptive
// bit field (byte 3) of the profile-specific battery pages.
func parseLegacyBattery(p page.Page) *page.BatteryStatus {
	desc := p[3]
	bs := &page.BatteryStatus{
		NumberOfBatteries: 1,
		State:             page.BatteryState((desc >> 4) & 0x07),
	}
	if coarse := desc & 0x0F; coarse != 0x0F {
		bs.Voltage = float64(coarse) + float64(p[2])/256
	}
	return bs
}

// revolutions tracks a (event time, revolution count) pair as used by the
// bike speed and cadence profiles. Event time is in 1/1024 s.
type revolutions struct {
	eventTime page.Counter
	revs      page.Counter
	stale     int
}

func newRevolutions() revolutions {
	return revolutions{
		eventTime: page.NewCounter(page.Width16),
		revs:      page.NewCounter(page.Width16),
	}
}

// staleLimit is the number of pages without a new event after which the
// instantaneous rate is reported as zero.
const staleLimit = 12

// update returns the revolution and time deltas. ok is false when the pair
// does not yield a new rate: first reading, no new event or a zero interval.
func (r *revolutions) update(eventTime, revs uint16) (dRevs, dTime uint32, ok bool) {
	first := !r.eventTime.Seeded()
	dTime = r.eventTime.Update(uint32(eventTime))
	dRevs = r.revs.Update(uint32(revs))
	if first {
		return 0, 0, false
	}
	if dTime == 0 {
		r.stale++
		return dRevs, 0, false
	}
	r.stale = 0
	return dRevs, dTime, true
}

// idle counts a repeated broadcast: the sensor is alive but saw no new event.
func (r *revolutions) idle() {
	if r.eventTime.Seeded() {
		r.stale++
	}
}

// stopped reports whether no event was seen for staleLimit pages.
func (r *revolutions) stopped() bool {
	return r.stale >= staleLimit
}

// total returns the accumulated revolutions.
func (r *revolutions) total() uint64 {
	return r.revs.Total()
}
