package profile

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies a concrete decoder type.
type Kind int

const (
	KindUnknown Kind = iota
	KindHeartRate
	KindBikeSpeed
	KindBikeCadence
	KindBikeSpeedCadence
	KindStandardPower
	KindCrankTorqueFrequency
	KindTreadmill
	KindElliptical
	KindRower
	KindClimber
	KindNordicSkier
	KindTrainer
	KindGeocache
	KindAssetTracker
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindHeartRate:            "heart_rate",
	KindBikeSpeed:            "bike_speed",
	KindBikeCadence:          "bike_cadence",
	KindBikeSpeedCadence:     "bike_speed_cadence",
	KindStandardPower:        "bicycle_power",
	KindCrankTorqueFrequency: "crank_torque_frequency",
	KindTreadmill:            "treadmill",
	KindElliptical:           "elliptical",
	KindRower:                "rower",
	KindClimber:              "climber",
	KindNordicSkier:          "nordic_skier",
	KindTrainer:              "trainer",
	KindGeocache:             "geocache",
	KindAssetTracker:         "asset_tracker",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind looks a kind up by its String form.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindUnknown, false
}

// LookupFamilyName finds a family by name. Underscores match spaces, so
// "heart_rate" and "heart rate" both work.
func LookupFamilyName(name string) (Family, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "_", " ")
	for _, f := range families {
		if f.Name == name {
			return f.clone(), true
		}
	}
	return Family{}, false
}

// Device classes (device type byte without the pairing bit).
const (
	ClassBicyclePower     uint8 = 11
	ClassFitnessEquipment uint8 = 17
	ClassGeocache         uint8 = 19
	ClassAssetTracker     uint8 = 41
	ClassHeartRate        uint8 = 120
	ClassBikeSpeedCadence uint8 = 121
	ClassBikeCadence      uint8 = 122
	ClassBikeSpeed        uint8 = 123
)

// Family describes one device class.
type Family struct {
	Class  uint8  `json:"class"`
	Name   string `json:"name"`
	Period uint16 `json:"period"` // channel period in 1/32768 s
	// Kinds lists the decoders the class can resolve to.
	Kinds []Kind `json:"kinds"`
}

// Broadcast returns the channel period as a duration.
func (f Family) Broadcast() time.Duration {
	return time.Duration(f.Period) * time.Second / 32768
}

// UnknownPeriod is used for device classes without a profile.
const UnknownPeriod uint16 = 8192

var families = []Family{
	{Class: ClassBicyclePower, Name: "bicycle power", Period: 8182, Kinds: []Kind{KindStandardPower, KindCrankTorqueFrequency}},
	{Class: ClassFitnessEquipment, Name: "fitness equipment", Period: 8192, Kinds: []Kind{KindTreadmill, KindElliptical, KindRower, KindClimber, KindNordicSkier, KindTrainer}},
	{Class: ClassGeocache, Name: "geocache", Period: 8192, Kinds: []Kind{KindGeocache}},
	{Class: ClassAssetTracker, Name: "asset tracker", Period: 2048, Kinds: []Kind{KindAssetTracker}},
	{Class: ClassHeartRate, Name: "heart rate", Period: 8070, Kinds: []Kind{KindHeartRate}},
	{Class: ClassBikeSpeedCadence, Name: "bike speed and cadence", Period: 8086, Kinds: []Kind{KindBikeSpeedCadence}},
	{Class: ClassBikeCadence, Name: "bike cadence", Period: 8102, Kinds: []Kind{KindBikeCadence}},
	{Class: ClassBikeSpeed, Name: "bike speed", Period: 8118, Kinds: []Kind{KindBikeSpeed}},
}

// Families returns every supported device class.
func Families() []Family {
	out := make([]Family, len(families))
	for i, f := range families {
		out[i] = f.clone()
	}
	return out
}

func (f Family) clone() Family {
	f.Kinds = append([]Kind(nil), f.Kinds...)
	return f
}

// LookupFamily returns the family of a device class.
func LookupFamily(class uint8) (Family, bool) {
	for _, f := range families {
		if f.Class == class {
			return f.clone(), true
		}
	}
	return Family{}, false
}

// BroadcastPeriod returns the nominal broadcast interval of a device class.
func BroadcastPeriod(class uint8) time.Duration {
	if f, ok := LookupFamily(class); ok {
		return f.Broadcast()
	}
	return Family{Period: UnknownPeriod}.Broadcast()
}
