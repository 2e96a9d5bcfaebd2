package mux

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/testutils/mocks"
	"github.com/srg/antscope/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var (
	testDevice = transport.ChannelID{DeviceNumber: 0x1234, DeviceType: 17, TransmissionType: 5}
	testPage   = page.MustParse("31 FF FF FF FF FF 20 03")
)

type MultiplexerTestSuite struct {
	suite.Suite
	logger *logrus.Logger
}

func (s *MultiplexerTestSuite) SetupTest() {
	s.logger = logrus.New()
	s.logger.SetLevel(logrus.DebugLevel)
}

func (s *MultiplexerTestSuite) newPool(n int) ([]*mocks.MockChannel, []transport.Channel) {
	mc := make([]*mocks.MockChannel, n)
	chans := make([]transport.Channel, n)
	for i := range mc {
		mc[i] = mocks.NewMockChannel(uint8(i + 1))
		chans[i] = mc[i]
	}
	return mc, chans
}

func (s *MultiplexerTestSuite) TestSendUsesFirstFreeChannel() {
	mc, chans := s.newPool(2)
	mc[0].On("SendAcknowledged", mock.Anything, testDevice, testPage, 50*time.Millisecond).
		Return(transport.ReturnPass).Once()

	m := New(chans, Options{Logger: s.logger})
	s.Equal(transport.ReturnPass, m.Send(context.Background(), testDevice, testPage, 50*time.Millisecond))
	s.Zero(m.Busy(), "channel MUST be released after the send")

	mc[0].AssertExpectations(s.T())
	mc[1].AssertNotCalled(s.T(), "SendAcknowledged", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *MultiplexerTestSuite) TestEmptyPoolFails() {
	m := New(nil, Options{Logger: s.logger})
	s.Equal(transport.ReturnFail, m.Send(context.Background(), testDevice, testPage, time.Second))
}

func (s *MultiplexerTestSuite) TestArbitrationLiveness() {
	// GOAL: N concurrent senders over M < N channels all complete and never share a channel
	//
	// TEST SCENARIO: 8 senders, 3 channels, every send holds its channel 15ms → all pass, at most 3 in flight
	const senders = 8
	mc, chans := s.newPool(3)

	var inFlight, peak int32
	perChannel := make([]int32, len(mc))
	for i := range mc {
		i := i
		mc[i].On("SendAcknowledged", mock.Anything, testDevice, testPage, mock.Anything).
			Return(func(ctx context.Context, wait time.Duration) transport.ReturnCode {
				if atomic.AddInt32(&perChannel[i], 1) != 1 {
					return transport.ReturnFail
				}
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(15 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				atomic.AddInt32(&perChannel[i], -1)
				return transport.ReturnPass
			})
	}

	m := New(chans, Options{Backoff: time.Millisecond, Logger: s.logger})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make([]transport.ReturnCode, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.Send(ctx, testDevice, testPage, time.Second)
		}(i)
	}
	wg.Wait()

	for i, rc := range results {
		s.Equal(transport.ReturnPass, rc, "sender %d MUST eventually get a channel to itself", i)
	}
	s.LessOrEqual(atomic.LoadInt32(&peak), int32(3), "no more sends than channels MUST be in flight")
	s.Zero(m.Busy())
}

func (s *MultiplexerTestSuite) TestTimeoutFreesChannel() {
	// GOAL: A send that outlives its wait reports a timeout and still releases its channel
	//
	// TEST SCENARIO: single channel blocks until deadline → ReturnTimeout → next send on the same channel passes
	mc, chans := s.newPool(1)
	mc[0].On("SendAcknowledged", mock.Anything, testDevice, testPage, 20*time.Millisecond).
		Return(func(ctx context.Context, wait time.Duration) transport.ReturnCode {
			<-ctx.Done()
			return transport.FromContext(ctx)
		}).Once()
	mc[0].On("SendAcknowledged", mock.Anything, testDevice, testPage, time.Second).
		Return(transport.ReturnPass).Once()

	m := New(chans, Options{Logger: s.logger})
	s.Equal(transport.ReturnTimeout, m.Send(context.Background(), testDevice, testPage, 20*time.Millisecond))
	s.Zero(m.Busy(), "timed out channel MUST be freed")
	s.Equal(transport.ReturnPass, m.Send(context.Background(), testDevice, testPage, time.Second))
	mc[0].AssertExpectations(s.T())
}

func (s *MultiplexerTestSuite) TestCancelWhileWaitingForChannel() {
	mc, chans := s.newPool(1)
	release := make(chan struct{})
	mc[0].On("SendAcknowledged", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(func(ctx context.Context, wait time.Duration) transport.ReturnCode {
			<-release
			return transport.ReturnPass
		}).Once()

	m := New(chans, Options{Logger: s.logger})
	first := m.SendAsync(context.Background(), testDevice, testPage, 0)
	s.Eventually(func() bool { return m.Busy() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	second := m.SendAsync(ctx, testDevice, testPage, 0)
	cancel()

	select {
	case rc := <-second:
		s.Equal(transport.ReturnCancelled, rc, "a waiter MUST give up when its context is cancelled")
	case <-time.After(time.Second):
		s.Fail("waiting sender did not observe cancellation")
	}

	close(release)
	s.Equal(transport.ReturnPass, <-first)
}

func TestMultiplexerTestSuite(t *testing.T) {
	suite.Run(t, new(MultiplexerTestSuite))
}

func TestNew_Defaults(t *testing.T) {
	m := New([]transport.Channel{mocks.NewMockChannel(1)}, Options{})
	require.NotNil(t, m.logger)
	assert.Equal(t, DefaultBackoff, m.backoff)
	assert.Equal(t, 1, m.Size())
}

func TestMultiplexer_ImplementsSender(t *testing.T) {
	var _ transport.Sender = New(nil, Options{})
}
