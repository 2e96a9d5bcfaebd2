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
)

func feState(d Decoder) FitnessEquipmentState {
	return d.Snapshot().(FitnessEquipmentState)
}

func TestFitnessEquipment_GeneralPage(t *testing.T) {
	// GOAL: Elapsed time and distance accumulate across 8-bit rollovers, lap toggles are counted
	//
	// TEST SCENARIO: elapsed 240 → 4 (+20 quarter seconds), distance 250 → 2 (+8 m), lap bit flips once
	d := NewFitnessEquipment(KindTrainer, testID(ClassFitnessEquipment), testOptions(nil))
	feed(d, "10 19 F0 FA E8 03 FF 34")

	st := feState(d)
	require.NotNil(t, st.General)
	assert.Equal(t, EquipmentTrainer, st.General.EquipmentType)
	assert.Zero(t, st.General.ElapsedTime)
	assert.InDelta(t, 1.0, st.General.Speed, 1e-9)
	assert.Zero(t, st.General.HeartRate, "0xFF heart rate MUST be reported as unavailable")
	assert.True(t, st.General.DistanceEnabled)
	assert.Equal(t, StateInUse, st.State)
	assert.Zero(t, st.Laps)

	feed(d, "10 19 04 02 D0 07 8C B5")

	st = feState(d)
	assert.InDelta(t, 5.0, st.General.ElapsedTime, 1e-9)
	assert.Equal(t, uint64(8), st.General.Distance)
	assert.InDelta(t, 2.0, st.General.Speed, 1e-9)
	assert.Equal(t, uint8(140), st.General.HeartRate)
	assert.Equal(t, HeartRateANT, st.General.HeartRateSource)
	assert.Equal(t, uint32(1), st.Laps)
}

func TestFitnessEquipment_SettingsAndMetabolic(t *testing.T) {
	d := NewFitnessEquipment(KindTreadmill, testID(ClassFitnessEquipment), testOptions(nil))
	feed(d,
		"11 FF FF 64 F4 01 3C 30",
		"12 FF 2C 01 D0 07 FE 30",
		"12 FF 2C 01 D0 07 03 30",
	)

	st := feState(d)
	require.NotNil(t, st.Settings)
	assert.InDelta(t, 1.0, st.Settings.CycleLength, 1e-9)
	assert.InDelta(t, 5.0, st.Settings.Incline, 1e-9)
	assert.InDelta(t, 30.0, st.Settings.Resistance, 1e-9)

	require.NotNil(t, st.Metabolic)
	assert.InDelta(t, 3.0, st.Metabolic.METs, 1e-9)
	assert.InDelta(t, 200.0, st.Metabolic.CaloricBurnRate, 1e-9)
	assert.Equal(t, uint64(5), st.Metabolic.Calories)
}

func TestFitnessEquipment_Trainer(t *testing.T) {
	d := NewFitnessEquipment(KindTrainer, testID(ClassFitnessEquipment), testOptions(nil))
	feed(d,
		"19 01 5A 10 00 C8 00 30",
		"19 03 5A 00 02 FA 20 31",
	)

	st := feState(d)
	tr, ok := st.Equipment.(TrainerState)
	require.True(t, ok)
	assert.Equal(t, uint8(90), tr.Cadence)
	assert.Equal(t, uint64(496), tr.AccumulatedPower)
	assert.InDelta(t, 248.0, tr.AveragePower, 1e-9)
	assert.Equal(t, uint16(250), tr.InstantaneousPower)
	assert.True(t, tr.ResistanceCalibrationRequired)
	assert.False(t, tr.PowerCalibrationRequired)
	assert.Equal(t, TargetPowerTooLow, tr.TargetPower)
}

func TestFitnessEquipment_TrainerTorque(t *testing.T) {
	d := NewFitnessEquipment(KindTrainer, testID(ClassFitnessEquipment), testOptions(nil))
	feed(d,
		"1A 01 01 00 00 00 00 30",
		"1A 02 02 00 04 20 03 30",
	)

	tr := feState(d).Equipment.(TrainerState)
	require.NotNil(t, tr.Torque)
	assert.InDelta(t, 25.0, tr.Torque.AverageTorque, 1e-9)
	assert.InDelta(t, 15.84, tr.Torque.AverageSpeed, 1e-9)
}

func TestFitnessEquipment_Treadmill(t *testing.T) {
	d := NewFitnessEquipment(KindTreadmill, testID(ClassFitnessEquipment), testOptions(nil))
	feed(d,
		"13 FF FF FF 50 00 00 30",
		"13 FF FF FF 50 FE 05 30",
	)

	tm, ok := feState(d).Equipment.(TreadmillState)
	require.True(t, ok)
	assert.Equal(t, uint8(80), tm.Cadence)
	assert.InDelta(t, -0.2, tm.NegativeVerticalDistance, 1e-9, "down-counting field MUST wrap from 0 to 0xFE as 2 steps")
	assert.InDelta(t, 0.5, tm.PositiveVerticalDistance, 1e-9)
}

func TestFitnessEquipment_StrokeMachines(t *testing.T) {
	tests := []struct {
		kind  Kind
		pages []string
	}{
		{kind: KindRower, pages: []string{"16 FF FF FE 14 64 00 30", "16 FF FF 01 16 6E 00 30"}},
		{kind: KindClimber, pages: []string{"17 FF FF FE 14 64 00 30", "17 FF FF 01 16 6E 00 30"}},
		{kind: KindNordicSkier, pages: []string{"18 FF FF FE 14 64 00 30", "18 FF FF 01 16 6E 00 30"}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			d := NewFitnessEquipment(tt.kind, testID(ClassFitnessEquipment), testOptions(nil))
			feed(d, tt.pages...)

			st, ok := feState(d).Equipment.(StrokeState)
			require.True(t, ok)
			assert.Equal(t, uint64(3), st.Strokes)
			assert.Equal(t, uint8(22), st.Cadence)
			assert.Equal(t, uint16(110), st.Power)
		})
	}
}

func TestFitnessEquipment_Elliptical(t *testing.T) {
	d := NewFitnessEquipment(KindElliptical, testID(ClassFitnessEquipment), testOptions(nil))
	feed(d,
		"14 FF 10 3C 00 C8 00 30",
		"14 FF 14 3C 03 C8 00 30",
	)

	el := feState(d).Equipment.(EllipticalState)
	assert.Equal(t, uint64(4), el.Strides)
	assert.InDelta(t, 0.3, el.PositiveVerticalDistance, 1e-9)
	assert.Equal(t, uint16(200), el.Power)
}

func TestFitnessEquipment_OtherTypePagesAreIgnored(t *testing.T) {
	d := NewFitnessEquipment(KindTreadmill, testID(ClassFitnessEquipment), testOptions(nil))
	feed(d, "19 01 5A 10 00 C8 00 30")

	assert.Nil(t, feState(d).Equipment, "trainer page MUST NOT be applied to a treadmill")
}

func TestFitnessEquipment_CapabilitiesAndUserConfiguration(t *testing.T) {
	d := NewFitnessEquipment(KindTrainer, testID(ClassFitnessEquipment), testOptions(nil))
	feed(d,
		"36 FF FF FF FF E8 03 07",
		"37 4C 1D FF 80 0C 46 64",
	)

	st := feState(d)
	require.NotNil(t, st.Capabilities)
	assert.Equal(t, uint16(1000), st.Capabilities.MaximumResistance)
	assert.True(t, st.Capabilities.Simulation)

	require.NotNil(t, st.User)
	assert.InDelta(t, 75.0, st.User.UserWeight, 1e-9)
	assert.InDelta(t, 10.0, st.User.BikeWeight, 1e-9)
	assert.InDelta(t, 0.7, st.User.BikeWheelDiameter, 1e-9)
	assert.InDelta(t, 3.0, st.User.GearRatio, 1e-9)
}

func TestFitnessEquipment_Commands(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(*FitnessEquipment) transport.ReturnCode
		want string
	}{
		{name: "basic resistance", call: func(d *FitnessEquipment) transport.ReturnCode { return d.SetBasicResistance(ctx, 50) }, want: "30 FF FF FF FF FF FF 64"},
		{name: "target power", call: func(d *FitnessEquipment) transport.ReturnCode { return d.SetTargetPower(ctx, 200) }, want: "31 FF FF FF FF FF 20 03"},
		{name: "wind resistance", call: func(d *FitnessEquipment) transport.ReturnCode { return d.SetWindResistance(ctx, 0.51, 0, 1) }, want: "32 FF FF FF FF 33 7F 64"},
		{name: "track resistance", call: func(d *FitnessEquipment) transport.ReturnCode { return d.SetTrackResistance(ctx, 5, 0.004) }, want: "33 FF FF FF FF 14 50 50"},
		{
			name: "user configuration",
			call: func(d *FitnessEquipment) transport.ReturnCode {
				return d.SetUserConfiguration(ctx, UserConfiguration{UserWeight: 75, BikeWeight: 10, BikeWheelDiameter: 0.7, GearRatio: 3})
			},
			want: "37 4C 1D FF 80 0C 46 64",
		},
		{name: "spin down calibration", call: func(d *FitnessEquipment) transport.ReturnCode { return d.RequestCalibration(ctx, CalibrateSpinDown) }, want: "01 80 FF FF FF FF FF FF"},
		{name: "capabilities request", call: func(d *FitnessEquipment) transport.ReturnCode { return d.RequestCapabilities(ctx) }, want: "46 FF FF FF FF 01 36 01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mocks.MockSender{}
			sender.On("Send", mock.Anything, testID(ClassFitnessEquipment), page.MustParse(tt.want), mock.Anything).
				Return(transport.ReturnPass).Once()

			d := NewFitnessEquipment(KindTrainer, testID(ClassFitnessEquipment), testOptions(sender))
			assert.Equal(t, transport.ReturnPass, tt.call(d))
			sender.AssertExpectations(t)
		})
	}
}

func TestFitnessEquipment_InvalidCommandParameters(t *testing.T) {
	sender := &mocks.MockSender{}
	d := NewFitnessEquipment(KindTrainer, testID(ClassFitnessEquipment), testOptions(sender))
	ctx := context.Background()

	assert.Equal(t, transport.ReturnInvalidParams, d.SetBasicResistance(ctx, 120))
	assert.Equal(t, transport.ReturnInvalidParams, d.SetTargetPower(ctx, -1))
	assert.Equal(t, transport.ReturnInvalidParams, d.SetWindResistance(ctx, 0.5, 200, 1))
	assert.Equal(t, transport.ReturnInvalidParams, d.SetTrackResistance(ctx, 300, 0))
	assert.Equal(t, transport.ReturnInvalidParams, d.RequestCalibration(ctx, 0))
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
