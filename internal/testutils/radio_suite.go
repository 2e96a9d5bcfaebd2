package testutils

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/testutils/mocks"
	"github.com/srg/antscope/internal/transport"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockRadioSuite provides a mock radio with one receive channel and a pool of
// send channels. Suites embed it and push traffic with Receive.
//
//	type RegistrySuite struct {
//	    testutils.MockRadioSuite
//	}
//
//	func (s *RegistrySuite) SetupTest() {
//	    s.SendChannels = 3        // optional, before the parent call
//	    s.MockRadioSuite.SetupTest()
//	}
type MockRadioSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	// SendChannels is the number of channels after the receive channel (default: 2)
	SendChannels int

	Radio    *mocks.MockRadio
	Channels []*mocks.MockChannel
}

// SetupSuite initializes the helper and logger once per suite.
func (s *MockRadioSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
}

// SetupTest builds a fresh radio before each test.
func (s *MockRadioSuite) SetupTest() {
	if s.SendChannels <= 0 {
		s.SendChannels = 2
	}

	s.Channels = make([]*mocks.MockChannel, s.SendChannels+1)
	chans := make([]transport.Channel, len(s.Channels))
	for i := range s.Channels {
		ch := mocks.NewMockChannel(uint8(i))
		ch.On("Close").Return(nil).Maybe()
		s.Channels[i] = ch
		chans[i] = ch
	}

	s.Radio = &mocks.MockRadio{}
	s.Radio.On("InitializeContinuousScanMode", mock.Anything).Return(chans, nil)
}

// Receive delivers a broadcast page from id on the receive channel.
func (s *MockRadioSuite) Receive(id transport.ChannelID, hex string) {
	p := page.MustParse(hex)
	s.Channels[0].Emit(transport.Response{Kind: transport.ResponseBroadcast, ID: &id, Payload: p.Bytes()})
}

// Respond delivers an arbitrary response on channel n.
func (s *MockRadioSuite) Respond(n int, resp transport.Response) {
	s.Channels[n].Emit(resp)
}
