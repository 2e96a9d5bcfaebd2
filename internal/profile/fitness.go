package profile

import (
	"context"
	"math"

	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

const (
	pageFECalibrationRequest = 0x01
	pageGeneralFE            = 0x10
	pageGeneralSettings      = 0x11
	pageGeneralMetabolic     = 0x12
	pageTreadmill            = 0x13
	pageElliptical           = 0x14
	pageRower                = 0x16
	pageClimber              = 0x17
	pageNordicSkier          = 0x18
	pageTrainer              = 0x19
	pageTrainerTorque        = 0x1A
	pageBasicResistance      = 0x30
	pageTargetPower          = 0x31
	pageWindResistance       = 0x32
	pageTrackResistance      = 0x33
	pageFECapabilities       = 0x36
	pageUserConfiguration    = 0x37
)

// EquipmentType is byte 1 (bits 0-4) of the general page.
type EquipmentType uint8

const (
	EquipmentGeneral     EquipmentType = 16
	EquipmentTreadmill   EquipmentType = 19
	EquipmentElliptical  EquipmentType = 20
	EquipmentRower       EquipmentType = 22
	EquipmentClimber     EquipmentType = 23
	EquipmentNordicSkier EquipmentType = 24
	EquipmentTrainer     EquipmentType = 25
)

// EquipmentState is bits 4-6 of byte 7 on every fitness equipment page.
type EquipmentState uint8

const (
	StateReserved EquipmentState = iota
	StateAsleep
	StateReady
	StateInUse
	StateFinished
)

func (s EquipmentState) String() string {
	switch s {
	case StateAsleep:
		return "asleep"
	case StateReady:
		return "ready"
	case StateInUse:
		return "in_use"
	case StateFinished:
		return "finished"
	default:
		return "reserved"
	}
}

func (s EquipmentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// HeartRateSource is bits 0-1 of the general page capabilities.
type HeartRateSource uint8

const (
	HeartRateInvalid HeartRateSource = iota
	HeartRateANT
	HeartRateElectromagnetic
	HeartRateHandContact
)

// GeneralState is page 16 with rollovers accumulated.
type GeneralState struct {
	EquipmentType   EquipmentType   `json:"equipment_type"`
	ElapsedTime     float64         `json:"elapsed_time"` // s
	Distance        uint64          `json:"distance"`     // m
	Speed           float64         `json:"speed"`        // m/s
	HeartRate       uint8           `json:"heart_rate"`   // 0 when not available
	HeartRateSource HeartRateSource `json:"heart_rate_source"`
	DistanceEnabled bool            `json:"distance_enabled"`
	VirtualSpeed    bool            `json:"virtual_speed"`
}

// SettingsState is page 17.
type SettingsState struct {
	CycleLength float64 `json:"cycle_length"` // m
	Incline     float64 `json:"incline"`      // percent
	Resistance  float64 `json:"resistance"`   // percent of maximum
}

// MetabolicState is page 18.
type MetabolicState struct {
	METs            float64 `json:"mets"`
	CaloricBurnRate float64 `json:"caloric_burn_rate"` // kcal/h
	Calories        uint64  `json:"calories"`          // kcal
}

// CapabilitiesState is page 54.
type CapabilitiesState struct {
	MaximumResistance uint16 `json:"maximum_resistance"` // N
	BasicResistance   bool   `json:"basic_resistance"`
	TargetPower       bool   `json:"target_power"`
	Simulation        bool   `json:"simulation"`
}

// UserConfiguration is page 55, both received and sent.
type UserConfiguration struct {
	UserWeight         float64 `json:"user_weight"`          // kg, 0.01 resolution
	BikeWeight         float64 `json:"bike_weight"`          // kg, 0.05 resolution
	BikeWheelDiameter  float64 `json:"bike_wheel_diameter"`  // m, 0.01 resolution
	WheelDiameterShift uint8   `json:"wheel_diameter_shift"` // mm
	GearRatio          float64 `json:"gear_ratio"`           // 0.03 resolution
}

// FitnessEquipmentState is the decoded fitness equipment state.
type FitnessEquipmentState struct {
	State        EquipmentState     `json:"state"`
	Laps         uint32             `json:"laps"`
	General      *GeneralState      `json:"general,omitempty"`
	Settings     *SettingsState     `json:"settings,omitempty"`
	Metabolic    *MetabolicState    `json:"metabolic,omitempty"`
	Capabilities *CapabilitiesState `json:"capabilities,omitempty"`
	User         *UserConfiguration `json:"user_configuration,omitempty"`
	// Equipment holds the type-specific state.
	Equipment any `json:"equipment,omitempty"`
	Common
}

// equipment is the type-specific part of a fitness equipment decoder.
type equipment interface {
	parse(number byte, p page.Page) bool
	snapshot() any
}

// FitnessEquipment decodes device class 17. The kind selects the
// type-specific pages.
type FitnessEquipment struct {
	base
	state     FitnessEquipmentState
	equipment equipment

	elapsed  page.Counter
	distance page.Counter
	calories page.Counter
	lap      byte
	lapSeen  bool
}

func NewFitnessEquipment(kind Kind, id transport.ChannelID, opts Options) *FitnessEquipment {
	d := &FitnessEquipment{
		base:     newBase(kind, id, 0, opts),
		elapsed:  page.NewCounter(page.Width8),
		distance: page.NewCounter(page.Width8),
		calories: page.NewCounter(page.Width8),
	}
	switch kind {
	case KindTreadmill:
		d.equipment = newTreadmill()
	case KindElliptical:
		d.equipment = newElliptical()
	case KindRower:
		d.equipment = newStrokeMachine(pageRower)
	case KindClimber:
		d.equipment = newStrokeMachine(pageClimber)
	case KindNordicSkier:
		d.equipment = newStrokeMachine(pageNordicSkier)
	default:
		d.equipment = newTrainer(d.opts.WheelCircumference)
	}
	return d
}

func (d *FitnessEquipment) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.begin(p)
	if !ok {
		return
	}

	if f.Number >= pageGeneralFE && f.Number <= pageTrainerTorque {
		d.parseStatus(p[7])
	}

	switch f.Number {
	case pageGeneralFE:
		d.parseGeneral(p)
	case pageGeneralSettings:
		d.state.Settings = parseSettings(p)
	case pageGeneralMetabolic:
		d.parseMetabolic(p)
	case pageFECapabilities:
		d.state.Capabilities = &CapabilitiesState{
			MaximumResistance: p.Uint16(5),
			BasicResistance:   p[7]&0x01 != 0,
			TargetPower:       p[7]&0x02 != 0,
			Simulation:        p[7]&0x04 != 0,
		}
	case pageUserConfiguration:
		u := parseUserConfiguration(p)
		d.state.User = &u
	default:
		if d.equipment.parse(f.Number, p) {
			d.state.Equipment = d.equipment.snapshot()
			return
		}
		if !d.state.Common.parse(f.Number, p) {
			d.logger.WithField("page", p.String()).Trace("unsupported page")
		}
	}
}

// parseStatus decodes the FE state (bits 4-6) and counts lap toggles (bit 7).
func (d *FitnessEquipment) parseStatus(b byte) {
	d.state.State = EquipmentState((b >> 4) & 0x07)
	lap := b & 0x80
	if d.lapSeen && lap != d.lap {
		d.state.Laps++
	}
	d.lap = lap
	d.lapSeen = true
}

func (d *FitnessEquipment) parseGeneral(p page.Page) {
	d.elapsed.Update(uint32(p[2]))
	d.distance.Update(uint32(p[3]))

	s := &GeneralState{
		EquipmentType:   EquipmentType(p[1] & 0x1F),
		ElapsedTime:     float64(d.elapsed.Total()) / 4,
		Distance:        d.distance.Total(),
		Speed:           float64(p.Uint16(4)) / 1000,
		HeartRateSource: HeartRateSource(p[7] & 0x03),
		DistanceEnabled: p[7]&0x04 != 0,
		VirtualSpeed:    p[7]&0x08 != 0,
	}
	if p[6] != 0xFF {
		s.HeartRate = p[6]
	}
	d.state.General = s
}

func parseSettings(p page.Page) *SettingsState {
	s := &SettingsState{}
	if p[3] != 0xFF {
		s.CycleLength = float64(p[3]) / 100
	}
	if raw := p.Uint16(4); raw != 0x7FFF {
		s.Incline = float64(int16(raw)) / 100
	}
	if p[6] != 0xFF {
		s.Resistance = float64(p[6]) / 2
	}
	return s
}

func (d *FitnessEquipment) parseMetabolic(p page.Page) {
	s := &MetabolicState{}
	if raw := p.Uint16(2); raw != 0xFFFF {
		s.METs = float64(raw) / 100
	}
	if raw := p.Uint16(4); raw != 0xFFFF {
		s.CaloricBurnRate = float64(raw) / 10
	}
	d.calories.Update(uint32(p[6]))
	s.Calories = d.calories.Total()
	d.state.Metabolic = s
}

func parseUserConfiguration(p page.Page) UserConfiguration {
	u := UserConfiguration{
		UserWeight:         float64(p.Uint16(1)) / 100,
		WheelDiameterShift: p[4] & 0x0F,
		BikeWeight:         float64(uint16(p[5])<<4|uint16(p[4]>>4)) * 0.05,
		BikeWheelDiameter:  float64(p[6]) / 100,
		GearRatio:          float64(p[7]) * 0.03,
	}
	return u
}

func (d *FitnessEquipment) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetBasicResistance sets the total resistance in percent (0-100).
func (d *FitnessEquipment) SetBasicResistance(ctx context.Context, percent float64) transport.ReturnCode {
	if percent < 0 || percent > 100 {
		return transport.ReturnInvalidParams
	}
	return d.send(ctx, page.NewBuilder(pageBasicResistance).Byte(7, byte(math.Round(percent*2))).Page())
}

// SetTargetPower sets the target power in watts (0-4000).
func (d *FitnessEquipment) SetTargetPower(ctx context.Context, watts float64) transport.ReturnCode {
	if watts < 0 || watts > 4000 {
		return transport.ReturnInvalidParams
	}
	return d.send(ctx, page.NewBuilder(pageTargetPower).Uint16(6, uint16(math.Round(watts*4))).Page())
}

// SetWindResistance sets the wind resistance coefficient (kg/m), wind speed
// (km/h, -127 to 127) and drafting factor (0-1).
func (d *FitnessEquipment) SetWindResistance(ctx context.Context, coefficient, windSpeed, drafting float64) transport.ReturnCode {
	if coefficient < 0 || coefficient > 1.86 || windSpeed < -127 || windSpeed > 127 || drafting < 0 || drafting > 1 {
		return transport.ReturnInvalidParams
	}
	return d.send(ctx, page.NewBuilder(pageWindResistance).
		Byte(5, byte(math.Round(coefficient*100))).
		Byte(6, byte(math.Round(windSpeed+127))).
		Byte(7, byte(math.Round(drafting*100))).
		Page())
}

// SetTrackResistance sets the grade (percent, -200 to 200) and the
// coefficient of rolling resistance (0 to 0.0127).
func (d *FitnessEquipment) SetTrackResistance(ctx context.Context, grade, rolling float64) transport.ReturnCode {
	if grade < -200 || grade > 200 || rolling < 0 || rolling > 0.0127 {
		return transport.ReturnInvalidParams
	}
	return d.send(ctx, page.NewBuilder(pageTrackResistance).
		Uint16(5, uint16(math.Round((grade+200)*100))).
		Byte(7, byte(math.Round(rolling/0.00005))).
		Page())
}

// SetUserConfiguration sends page 55.
func (d *FitnessEquipment) SetUserConfiguration(ctx context.Context, u UserConfiguration) transport.ReturnCode {
	if u.UserWeight < 0 || u.UserWeight > 655.34 || u.BikeWeight < 0 || u.BikeWeight > 50 ||
		u.BikeWheelDiameter < 0 || u.BikeWheelDiameter > 2.54 || u.WheelDiameterShift > 10 ||
		u.GearRatio < 0 || u.GearRatio > 7.65 {
		return transport.ReturnInvalidParams
	}
	bike := uint16(math.Round(u.BikeWeight / 0.05))
	return d.send(ctx, page.NewBuilder(pageUserConfiguration).
		Uint16(1, uint16(math.Round(u.UserWeight*100))).
		Byte(4, byte(bike&0x0F)<<4|u.WheelDiameterShift&0x0F).
		Byte(5, byte(bike>>4)).
		Byte(6, byte(math.Round(u.BikeWheelDiameter*100))).
		Byte(7, byte(math.Round(u.GearRatio/0.03))).
		Page())
}

// Calibration request flags of page 1 byte 1.
const (
	CalibrateZeroOffset byte = 0x40
	CalibrateSpinDown   byte = 0x80
)

// RequestCalibration asks the trainer to run zero offset and/or spin down calibration.
func (d *FitnessEquipment) RequestCalibration(ctx context.Context, flags byte) transport.ReturnCode {
	if flags&(CalibrateZeroOffset|CalibrateSpinDown) == 0 {
		return transport.ReturnInvalidParams
	}
	return d.send(ctx, page.NewBuilder(pageFECalibrationRequest).Byte(1, flags&0xC0).Page())
}

// RequestCapabilities asks for page 54.
func (d *FitnessEquipment) RequestCapabilities(ctx context.Context) transport.ReturnCode {
	return d.RequestDataPage(ctx, pageFECapabilities)
}
