package profile

import (
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
)

// constructor builds a decoder for one channel identity.
type constructor func(id transport.ChannelID, opts Options) Decoder

var constructors = map[Kind]constructor{
	KindUnknown:              func(id transport.ChannelID, o Options) Decoder { return NewUnknown(id, o) },
	KindHeartRate:            func(id transport.ChannelID, o Options) Decoder { return NewHeartRate(id, o) },
	KindBikeSpeed:            func(id transport.ChannelID, o Options) Decoder { return NewBikeSpeed(id, o) },
	KindBikeCadence:          func(id transport.ChannelID, o Options) Decoder { return NewBikeCadence(id, o) },
	KindBikeSpeedCadence:     func(id transport.ChannelID, o Options) Decoder { return NewBikeSpeedCadence(id, o) },
	KindStandardPower:        func(id transport.ChannelID, o Options) Decoder { return NewStandardPower(id, o) },
	KindCrankTorqueFrequency: func(id transport.ChannelID, o Options) Decoder { return NewCrankTorqueFrequency(id, o) },
	KindTreadmill:            func(id transport.ChannelID, o Options) Decoder { return NewFitnessEquipment(KindTreadmill, id, o) },
	KindElliptical:           func(id transport.ChannelID, o Options) Decoder { return NewFitnessEquipment(KindElliptical, id, o) },
	KindRower:                func(id transport.ChannelID, o Options) Decoder { return NewFitnessEquipment(KindRower, id, o) },
	KindClimber:              func(id transport.ChannelID, o Options) Decoder { return NewFitnessEquipment(KindClimber, id, o) },
	KindNordicSkier:          func(id transport.ChannelID, o Options) Decoder { return NewFitnessEquipment(KindNordicSkier, id, o) },
	KindTrainer:              func(id transport.ChannelID, o Options) Decoder { return NewFitnessEquipment(KindTrainer, id, o) },
	KindGeocache:             func(id transport.ChannelID, o Options) Decoder { return NewGeocache(id, o) },
	KindAssetTracker:         func(id transport.ChannelID, o Options) Decoder { return NewAssetTracker(id, o) },
}

// classKinds maps device classes with exactly one decoder.
var classKinds = map[uint8]Kind{
	ClassHeartRate:        KindHeartRate,
	ClassBikeSpeed:        KindBikeSpeed,
	ClassBikeCadence:      KindBikeCadence,
	ClassBikeSpeedCadence: KindBikeSpeedCadence,
	ClassGeocache:         KindGeocache,
	ClassAssetTracker:     KindAssetTracker,
}

// selector picks the decoder of a multi-decoder class from a page.
type selector func(p page.Page) (Kind, bool)

var selectors = map[uint8]selector{
	ClassBicyclePower:     selectBicyclePower,
	ClassFitnessEquipment: selectFitnessEquipment,
}

// HasSelector reports whether class needs a page to pick its decoder.
func HasSelector(class uint8) bool {
	_, ok := selectors[class]
	return ok
}

// Resolve picks the decoder kind for a device. Classes with a selector fall
// back to KindUnknown when p does not identify the variant.
func Resolve(id transport.ChannelID, p page.Page) Kind {
	class := id.DeviceClass()
	if k, ok := classKinds[class]; ok {
		return k
	}
	if sel, ok := selectors[class]; ok {
		if k, ok := sel(p); ok {
			return k
		}
	}
	return KindUnknown
}

// New builds a decoder of the given kind.
func New(kind Kind, id transport.ChannelID, opts Options) Decoder {
	c, ok := constructors[kind]
	if !ok {
		c = constructors[KindUnknown]
	}
	return c(id, opts)
}

// NewFor resolves and builds the decoder for a device's first page.
func NewFor(id transport.ChannelID, p page.Page, opts Options) Decoder {
	return New(Resolve(id, p), id, opts)
}

func selectBicyclePower(p page.Page) (Kind, bool) {
	switch p.Number() {
	case pagePowerCTF:
		return KindCrankTorqueFrequency, true
	case pagePowerOnly, pageWheelTorque, pageCrankTorque, pageTorqueEffectiveness:
		return KindStandardPower, true
	default:
		return KindUnknown, false
	}
}

// equipmentKinds maps the general-page equipment type to a decoder.
var equipmentKinds = map[EquipmentType]Kind{
	EquipmentTreadmill:   KindTreadmill,
	EquipmentElliptical:  KindElliptical,
	EquipmentRower:       KindRower,
	EquipmentClimber:     KindClimber,
	EquipmentNordicSkier: KindNordicSkier,
	EquipmentTrainer:     KindTrainer,
}

// specificPageKinds maps equipment-specific pages to their decoder.
var specificPageKinds = map[byte]Kind{
	pageTreadmill:     KindTreadmill,
	pageElliptical:    KindElliptical,
	pageRower:         KindRower,
	pageClimber:       KindClimber,
	pageNordicSkier:   KindNordicSkier,
	pageTrainer:       KindTrainer,
	pageTrainerTorque: KindTrainer,
}

func selectFitnessEquipment(p page.Page) (Kind, bool) {
	if p.Number() == pageGeneralFE {
		k, ok := equipmentKinds[EquipmentType(p[1]&0x1F)]
		return k, ok
	}
	k, ok := specificPageKinds[p.Number()]
	return k, ok
}
