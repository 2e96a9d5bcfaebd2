// Package mocks provides testify mocks of the radio boundary.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/srg/antscope/internal/page"
	"github.com/srg/antscope/internal/transport"
	"github.com/stretchr/testify/mock"
)

// MockSender implements transport.Sender for testing
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, id transport.ChannelID, p page.Page, wait time.Duration) transport.ReturnCode {
	args := m.Called(ctx, id, p, wait)
	return args.Get(0).(transport.ReturnCode)
}

// MockChannel implements transport.Channel for testing. Subscriptions are
// real so tests can push responses with Emit; sends go through the mock.
type MockChannel struct {
	mock.Mock

	number   uint8
	mu       sync.Mutex
	handlers map[int]func(transport.Response)
	nextID   int
}

func NewMockChannel(number uint8) *MockChannel {
	return &MockChannel{number: number, handlers: map[int]func(transport.Response){}}
}

func (m *MockChannel) Number() uint8 {
	return m.number
}

func (m *MockChannel) Subscribe(fn func(transport.Response)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.handlers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}
}

func (m *MockChannel) SendAcknowledged(ctx context.Context, id transport.ChannelID, p page.Page, wait time.Duration) transport.ReturnCode {
	args := m.Called(ctx, id, p, wait)
	if fn, ok := args.Get(0).(func(context.Context, time.Duration) transport.ReturnCode); ok {
		return fn(ctx, wait)
	}
	return args.Get(0).(transport.ReturnCode)
}

func (m *MockChannel) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Emit delivers r to every subscriber.
func (m *MockChannel) Emit(r transport.Response) {
	m.mu.Lock()
	handlers := make([]func(transport.Response), 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	if r.Channel == 0 {
		r.Channel = m.number
	}
	for _, h := range handlers {
		h(r)
	}
}

// Subscribers returns the number of active subscriptions.
func (m *MockChannel) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

// MockRadio implements transport.Radio for testing
type MockRadio struct {
	mock.Mock
}

func (m *MockRadio) InitializeContinuousScanMode(ctx context.Context) ([]transport.Channel, error) {
	args := m.Called(ctx)
	channels, _ := args.Get(0).([]transport.Channel)
	return channels, args.Error(1)
}
