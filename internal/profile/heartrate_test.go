package profile

import (
	"context"
	"testing"

	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/testutils/mocks"
	"github.com/srg/antscope/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type HeartRateTestSuite struct {
	suite.Suite
	sender *mocks.MockSender
	hr     *HeartRate
}

func (s *HeartRateTestSuite) SetupTest() {
	s.sender = &mocks.MockSender{}
	s.hr = NewHeartRate(testID(ClassHeartRate), testOptions(s.sender))
}

func (s *HeartRateTestSuite) state() HeartRateState {
	return s.hr.Snapshot().(HeartRateState)
}

func (s *HeartRateTestSuite) TestMainFields() {
	feed(s.hr, "00 FF FF FF 00 04 05 48")

	st := s.state()
	s.Equal(uint8(72), st.HeartRate)
	s.Equal(uint8(5), st.BeatCount)
	s.InDelta(1.0, st.BeatEventTime, 1e-9)
	s.Zero(st.AccumulatedBeats, "first page MUST only seed the counters")

	feed(s.hr, "00 FF FF FF 00 08 06 49")

	st = s.state()
	s.Equal(uint8(73), st.HeartRate)
	s.Equal(uint64(1), st.AccumulatedBeats)
	s.InDelta(1000.0, st.RRInterval, 1e-9, "one beat in 1024 ticks MUST be 1000 ms")
}

func (s *HeartRateTestSuite) TestBeatCountRollover() {
	feed(s.hr,
		"00 FF FF FF 00 04 FE 48",
		"00 FF FF FF 00 10 02 48",
	)

	s.Equal(uint64(4), s.state().AccumulatedBeats, "0xFE → 0x02 MUST count 4 beats")
}

func (s *HeartRateTestSuite) TestBackgroundPagesWaitForToggle() {
	// GOAL: Background pages are ignored until the toggle bit flipped once
	//
	// TEST SCENARIO: manufacturer page with the initial toggle → ignored; same page toggled → applied
	feed(s.hr, "02 0A 34 12 00 04 01 3C")
	s.Zero(s.state().ManufacturerID, "background page MUST be ignored before the toggle flips")

	feed(s.hr, "82 0A 34 12 00 08 02 3C")
	st := s.state()
	s.Equal(uint8(10), st.ManufacturerID)
	s.Equal(uint32(0x12341234), st.SerialNumber, "serial MUST combine the page and the device number")
	s.Equal(uint64(1), st.AccumulatedBeats, "main fields MUST be decoded on every page")
}

func (s *HeartRateTestSuite) TestDuplicateIsNotAppliedTwice() {
	feed(s.hr,
		"00 FF FF FF 00 04 01 48",
		"00 FF FF FF 00 08 02 48",
		"00 FF FF FF 00 08 02 48",
	)

	s.Equal(uint64(1), s.state().AccumulatedBeats)
	s.Equal(testNow, s.hr.LastSeen(), "duplicates MUST still refresh liveness")
}

func (s *HeartRateTestSuite) TestPreviousBeatPage() {
	feed(s.hr,
		"00 FF FF FF 00 04 01 3C",
		"84 FF 00 06 00 08 02 3C",
	)

	s.InDelta(500.0, s.state().RRInterval, 1e-9, "page 4 MUST use the previous beat time")
}

func (s *HeartRateTestSuite) TestBatteryAndCapabilities() {
	feed(s.hr,
		"00 FF FF FF 00 04 01 3C",
		"87 50 80 22 00 08 02 3C",
		"06 FF 07 03 00 0C 03 3C",
	)

	st := s.state()
	s.Equal(uint8(0x50), st.BatteryLevel)
	s.Require().NotNil(st.SensorBattery)
	s.InDelta(2.5, st.SensorBattery.Voltage, 1e-9)
	s.Equal(page.BatteryGood, st.SensorBattery.State)
	s.Equal(uint8(7), st.FeaturesSupported)
	s.Equal(uint8(3), st.FeaturesEnabled)
}

func (s *HeartRateTestSuite) TestCommonPagesDoNotTouchBeatData() {
	feed(s.hr,
		"00 FF FF FF 00 04 01 48",
		"50 FF FF 05 0F 00 34 12",
	)

	st := s.state()
	s.Equal(uint8(72), st.HeartRate)
	s.Require().NotNil(st.Manufacturer)
	s.Equal(uint16(15), st.Manufacturer.ManufacturerID)
}

func (s *HeartRateTestSuite) TestSetSportMode() {
	want := page.MustParse("4C FF FF FF FF FF FF 02")
	s.sender.On("Send", mock.Anything, testID(ClassHeartRate), want, DefaultSendTimeout).
		Return(transport.ReturnPass).Once()

	s.Equal(transport.ReturnPass, s.hr.SetSportMode(context.Background(), page.SportCycling))
	s.sender.AssertExpectations(s.T())
}

func (s *HeartRateTestSuite) TestRequestCapabilitiesPropagatesFailure() {
	s.sender.On("Send", mock.Anything, mock.Anything, page.NewRequestDataPage(0x06, 1), mock.Anything).
		Return(transport.ReturnTimeout).Once()

	s.Equal(transport.ReturnTimeout, s.hr.RequestCapabilities(context.Background()))
}

func TestHeartRateTestSuite(t *testing.T) {
	suite.Run(t, new(HeartRateTestSuite))
}

func TestHeartRate_WithoutSenderFails(t *testing.T) {
	hr := NewHeartRate(testID(ClassHeartRate), testOptions(nil))
	require.Equal(t, transport.ReturnFail, hr.SetSportMode(context.Background(), page.SportRunning))
}

func TestLegacyProfiles_BackgroundGatedByToggle(t *testing.T) {
	tests := []struct {
		name    string
		decoder func() Decoder
		info    func(Decoder) SensorInfo
	}{
		{
			name:    "bike speed",
			decoder: func() Decoder { return NewBikeSpeed(testID(ClassBikeSpeed), testOptions(nil)) },
			info:    func(d Decoder) SensorInfo { return d.Snapshot().(BikeSpeedState).SensorInfo },
		},
		{
			name:    "bike cadence",
			decoder: func() Decoder { return NewBikeCadence(testID(ClassBikeCadence), testOptions(nil)) },
			info:    func(d Decoder) SensorInfo { return d.Snapshot().(BikeCadenceState).SensorInfo },
		},
		{
			name:    "heart rate",
			decoder: func() Decoder { return NewHeartRate(testID(ClassHeartRate), testOptions(nil)) },
			info:    func(d Decoder) SensorInfo { return d.Snapshot().(HeartRateState).SensorInfo },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.decoder()
			feed(d,
				"03 02 07 11 00 04 01 00",
				"03 02 07 11 00 08 02 00",
			)
			assert.Zero(t, tt.info(d).ModelNumber, "product page MUST be ignored before the toggle flips")

			feed(d, "83 02 07 11 00 0C 03 00")
			info := tt.info(d)
			assert.Equal(t, uint8(2), info.HardwareVersion)
			assert.Equal(t, uint8(7), info.SoftwareVersion)
			assert.Equal(t, uint8(0x11), info.ModelNumber)
		})
	}
}
