package page

import "fmt"

// Common page numbers shared by all ANT+ device profiles.
const (
	NumberRequestData     byte = 0x46 // 70
	NumberCommandStatus   byte = 0x47 // 71
	NumberModeSettings    byte = 0x4C // 76
	NumberManufacturer    byte = 0x50 // 80
	NumberProductInfo     byte = 0x51 // 81
	NumberBatteryStatus   byte = 0x52 // 82
)

// BatteryState is the descriptive battery status reported by sensors.
type BatteryState uint8

const (
	BatteryUnknown  BatteryState = 0
	BatteryNew      BatteryState = 1
	BatteryGood     BatteryState = 2
	BatteryOk       BatteryState = 3
	BatteryLow      BatteryState = 4
	BatteryCritical BatteryState = 5
	BatteryInvalid  BatteryState = 7
)

// String returns the human-readable battery status.
func (s BatteryState) String() string {
	switch s {
	case BatteryNew:
		return "new"
	case BatteryGood:
		return "good"
	case BatteryOk:
		return "ok"
	case BatteryLow:
		return "low"
	case BatteryCritical:
		return "critical"
	case BatteryInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// MarshalText renders the status by name.
func (s BatteryState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ManufacturerInfo is common page 80.
type ManufacturerInfo struct {
	HardwareRevision uint8  `json:"hardware_revision"`
	ManufacturerID   uint16 `json:"manufacturer_id"`
	ModelNumber      uint16 `json:"model_number"`
}

// ProductInfo is common page 81.
type ProductInfo struct {
	SoftwareRevision float64 `json:"software_revision"`
	SerialNumber     uint32  `json:"serial_number"`
}

// BatteryStatus is common page 82.
type BatteryStatus struct {
	NumberOfBatteries uint8        `json:"number_of_batteries"`
	Identifier        uint8        `json:"identifier"`
	OperatingTimeSec  uint32       `json:"operating_time_sec"`
	Voltage           float64      `json:"voltage"`
	State             BatteryState `json:"state"`
}

// CommandStatus is common page 71, the reply to an acknowledged command.
type CommandStatus struct {
	LastCommand uint8  `json:"last_command"`
	Sequence    uint8  `json:"sequence"`
	Status      uint8  `json:"status"`
	Data        uint32 `json:"data"`
}

// ParseManufacturerInfo decodes common page 80.
func ParseManufacturerInfo(p Page) ManufacturerInfo {
	return ManufacturerInfo{
		HardwareRevision: p[3],
		ManufacturerID:   p.Uint16(4),
		ModelNumber:      p.Uint16(6),
	}
}

// ParseProductInfo decodes common page 81.
// 0xFF in byte 2 means no supplemental revision.
func ParseProductInfo(p Page) ProductInfo {
	rev := float64(p[3]) / 10
	if p[2] != 0xFF {
		rev = (float64(p[3])*100 + float64(p[2])) / 1000
	}
	return ProductInfo{
		SoftwareRevision: rev,
		SerialNumber:     p.Uint32(4),
	}
}

// ParseBatteryStatus decodes common page 82.
func ParseBatteryStatus(p Page) BatteryStatus {
	desc := p[7]
	resolution := uint32(16)
	if desc&0x80 != 0 {
		resolution = 2
	}

	bs := BatteryStatus{
		NumberOfBatteries: p[2] & 0x0F,
		Identifier:        p[2] >> 4,
		OperatingTimeSec:  p.Uint24(3) * resolution,
		State:             BatteryState((desc >> 4) & 0x07),
	}
	if coarse := desc & 0x0F; coarse != 0x0F {
		bs.Voltage = float64(coarse) + float64(p[6])/256
	}
	return bs
}

// ParseCommandStatus decodes common page 71.
func ParseCommandStatus(p Page) CommandStatus {
	return CommandStatus{
		LastCommand: p[1],
		Sequence:    p[2],
		Status:      p[3],
		Data:        p.Uint32(4),
	}
}

// CommandType values of the request data page.
const (
	RequestDataPage    byte = 0x01
	RequestDataPageSet byte = 0x04
)

// NewRequestDataPage builds common page 70 asking the sensor to transmit page
// `requested` `times` times (1-127).
func NewRequestDataPage(requested byte, times uint8) Page {
	if times == 0 || times > 0x7F {
		times = 1
	}
	return NewBuilder(NumberRequestData).
		Uint16(1, 0xFFFF).
		Byte(3, 0xFF).
		Byte(4, 0xFF).
		Byte(5, times).
		Byte(6, requested).
		Byte(7, RequestDataPage).
		Page()
}

// SportMode is carried by common page 76.
type SportMode uint8

const (
	SportGeneric  SportMode = 0
	SportRunning  SportMode = 1
	SportCycling  SportMode = 2
	SportSwimming SportMode = 5
)

// NewModeSettingsPage builds common page 76.
func NewModeSettingsPage(mode SportMode) Page {
	return NewBuilder(NumberModeSettings).Byte(7, byte(mode)).Page()
}
