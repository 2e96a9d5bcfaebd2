package profile

import (
	"strings"

	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	pageAssetLocation1   = 0x01
	pageAssetLocation2   = 0x02
	pageAssetNoLocation  = 0x03
	pageAssetIdentity1   = 0x10
	pageAssetIdentity2   = 0x11
	assetNameHalf        = 5
	assetIndexMask       = 0x1F
	assetSituationMask   = 0x07
	assetStatusLowBatt   = 0x08
	assetStatusGPSLost   = 0x10
	assetStatusCommsLost = 0x20
	assetStatusRemove    = 0x80
)

// AssetSituation is bits 0-2 of the asset status byte.
type AssetSituation uint8

const (
	SituationSitting AssetSituation = iota
	SituationMoving
	SituationPointed
	SituationTreed
	SituationUnknown
)

func (s AssetSituation) String() string {
	switch s {
	case SituationSitting:
		return "sitting"
	case SituationMoving:
		return "moving"
	case SituationPointed:
		return "pointed"
	case SituationTreed:
		return "treed"
	default:
		return "unknown"
	}
}

func (s AssetSituation) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Asset is one tracked asset.
type Asset struct {
	Index             uint8          `json:"index"`
	Name              string         `json:"name"`
	Type              uint8          `json:"type"`
	Color             uint8          `json:"color"`
	Distance          uint16         `json:"distance"` // m
	Bearing           float64        `json:"bearing"`  // degrees
	Situation         AssetSituation `json:"situation"`
	LowBattery        bool           `json:"low_battery"`
	GPSLost           bool           `json:"gps_lost"`
	CommunicationLost bool           `json:"communication_lost"`
	HasLocation       bool           `json:"has_location"`
	Latitude          float64        `json:"latitude,omitempty"`
	Longitude         float64        `json:"longitude,omitempty"`
}

// AssetTrackerState lists the tracked assets in first-seen order.
type AssetTrackerState struct {
	Assets []Asset `json:"assets"`
	Common
}

// assetRecord keeps the fragments an asset is assembled from.
type assetRecord struct {
	Asset
	names    [2]string
	latLow   uint16
	latHigh  uint16
	lon      int32
	haveLow  bool
	haveHigh bool
}

func (r *assetRecord) resolveLocation() {
	r.HasLocation = r.haveLow && r.haveHigh
	if r.HasLocation {
		r.Latitude = semicirclesToDegrees(int32(uint32(r.latHigh)<<16 | uint32(r.latLow)))
		r.Longitude = semicirclesToDegrees(r.lon)
	}
}

// AssetTracker decodes device class 41: a collection of assets keyed by
// index, each built from several pages.
type AssetTracker struct {
	base
	common Common
	assets *orderedmap.OrderedMap[uint8, *assetRecord]
}

func NewAssetTracker(id transport.ChannelID, opts Options) *AssetTracker {
	return &AssetTracker{
		base:   newBase(KindAssetTracker, id, 0, opts),
		assets: orderedmap.New[uint8, *assetRecord](),
	}
}

func (d *AssetTracker) Parse(p page.Page) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.begin(p)
	if !ok {
		return
	}

	index := p[1] & assetIndexMask
	switch f.Number {
	case pageAssetLocation1:
		if d.removed(index, p[5]) {
			return
		}
		r := d.asset(index)
		r.parseStatus(p[5])
		r.Distance = p.Uint16(2)
		r.Bearing = float64(p[4]) * 360 / 256
		r.latLow = p.Uint16(6)
		r.haveLow = true
		r.resolveLocation()
	case pageAssetLocation2:
		r := d.asset(index)
		r.latHigh = p.Uint16(2)
		r.lon = p.Int32(4)
		r.haveHigh = true
		r.resolveLocation()
	case pageAssetNoLocation:
		if d.removed(index, p[5]) {
			return
		}
		r := d.asset(index)
		r.parseStatus(p[5])
		r.haveLow, r.haveHigh = false, false
		r.Latitude, r.Longitude = 0, 0
		r.resolveLocation()
	case pageAssetIdentity1:
		r := d.asset(index)
		r.Color = p[2]
		r.names[0] = string(p[3 : 3+assetNameHalf])
		r.Name = joinAssetName(r.names)
	case pageAssetIdentity2:
		r := d.asset(index)
		r.Type = p[2]
		r.names[1] = string(p[3 : 3+assetNameHalf])
		r.Name = joinAssetName(r.names)
	default:
		if !d.common.parse(f.Number, p) {
			d.logger.WithField("page", p.String()).Trace("unsupported page")
		}
	}
}

// removed drops the asset when the remove flag is set.
func (d *AssetTracker) removed(index uint8, status byte) bool {
	if status&assetStatusRemove == 0 {
		return false
	}
	if _, ok := d.assets.Delete(index); ok {
		d.logger.WithField("asset", index).Debug("asset removed")
	}
	return true
}

func (d *AssetTracker) asset(index uint8) *assetRecord {
	if r, ok := d.assets.Get(index); ok {
		return r
	}
	r := &assetRecord{Asset: Asset{Index: index, Situation: SituationUnknown}}
	d.assets.Set(index, r)
	return r
}

func (r *assetRecord) parseStatus(b byte) {
	r.Situation = AssetSituation(b & assetSituationMask)
	r.LowBattery = b&assetStatusLowBatt != 0
	r.GPSLost = b&assetStatusGPSLost != 0
	r.CommunicationLost = b&assetStatusCommsLost != 0
}

// joinAssetName joins the two five-character halves, dropping the padding.
func joinAssetName(halves [2]string) string {
	return strings.TrimRight(halves[0]+halves[1], "\x00 ")
}

func (d *AssetTracker) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := AssetTrackerState{
		Assets: make([]Asset, 0, d.assets.Len()),
		Common: d.common,
	}
	for pair := d.assets.Oldest(); pair != nil; pair = pair.Next() {
		s.Assets = append(s.Assets, pair.Value.Asset)
	}
	return s
}
