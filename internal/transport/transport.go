// Package transport defines the boundary to the ANT radio: channel identities,
// inbound responses, acknowledged-send return codes and the Radio/Channel
// interfaces implemented by concrete drivers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/srg/antscope/internal/page"
)

// pairingBit is the high bit of the device type byte; it is not part of the device class.
const pairingBit = 0x80

// ChannelID uniquely identifies one physical sensor on the air.
type ChannelID struct {
	DeviceNumber     uint16 `json:"device_number" yaml:"device"`
	DeviceType       uint8  `json:"device_type" yaml:"type"`
	TransmissionType uint8  `json:"transmission_type" yaml:"trans"`
}

// DeviceClass returns the device type without the pairing bit.
func (id ChannelID) DeviceClass() uint8 {
	return id.DeviceType &^ pairingBit
}

// Pairing reports whether the pairing bit is set.
func (id ChannelID) Pairing() bool {
	return id.DeviceType&pairingBit != 0
}

// Key packs the identity into a single hashable value.
// The pairing bit is ignored so a sensor keeps its key while pairing.
func (id ChannelID) Key() uint32 {
	return uint32(id.DeviceNumber)<<16 | uint32(id.DeviceClass())<<8 | uint32(id.TransmissionType)
}

// String renders the identity as "number/type/trans".
func (id ChannelID) String() string {
	return fmt.Sprintf("%d/%d/%d", id.DeviceNumber, id.DeviceClass(), id.TransmissionType)
}

// ResponseKind classifies an inbound message.
type ResponseKind int

const (
	ResponseBroadcast ResponseKind = iota
	ResponseAcknowledged
	ResponseBurst
	ResponseEvent
	ResponseError
)

// String returns the kind name.
func (k ResponseKind) String() string {
	switch k {
	case ResponseBroadcast:
		return "broadcast"
	case ResponseAcknowledged:
		return "acknowledged"
	case ResponseBurst:
		return "burst"
	case ResponseEvent:
		return "event"
	case ResponseError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Response is one inbound message from a channel.
type Response struct {
	Channel uint8
	Kind    ResponseKind
	// ID is nil when the radio could not attach a channel identity.
	ID        *ChannelID
	Payload   []byte
	Code      uint8 // event/error code for ResponseEvent and ResponseError
	Timestamp time.Time
}

// ReturnCode is the outcome of an acknowledged send.
type ReturnCode uint8

const (
	ReturnPass ReturnCode = iota
	ReturnFail
	ReturnTimeout
	ReturnCancelled
	ReturnInvalidParams
)

// SendError represents a failed acknowledged send
type SendError struct {
	Code ReturnCode
	Msg  string
}

// Error implements the error interface
func (e *SendError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return "acknowledged send: " + e.Code.String()
	}
	return fmt.Sprintf("acknowledged send: %s: %s", e.Code, e.Msg)
}

// Is allows errors.Is to compare SendError values by Code
func (e *SendError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*SendError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Predefined sentinel errors, one per failing ReturnCode
var (
	ErrSendFailed    = &SendError{Code: ReturnFail}
	ErrSendTimeout   = &SendError{Code: ReturnTimeout}
	ErrSendCancelled = &SendError{Code: ReturnCancelled}
	ErrInvalidParams = &SendError{Code: ReturnInvalidParams}
)

// String returns the return code name.
func (c ReturnCode) String() string {
	switch c {
	case ReturnPass:
		return "pass"
	case ReturnFail:
		return "fail"
	case ReturnTimeout:
		return "timeout"
	case ReturnCancelled:
		return "cancelled"
	case ReturnInvalidParams:
		return "invalid_params"
	default:
		return fmt.Sprintf("code(%d)", uint8(c))
	}
}

// Errorf wraps the code in a SendError with context. ReturnPass maps to nil.
func (c ReturnCode) Errorf(format string, args ...any) error {
	if c == ReturnPass {
		return nil
	}
	return &SendError{Code: c, Msg: fmt.Sprintf(format, args...)}
}

// Err maps the code to a sentinel error; ReturnPass maps to nil.
func (c ReturnCode) Err() error {
	switch c {
	case ReturnPass:
		return nil
	case ReturnTimeout:
		return ErrSendTimeout
	case ReturnCancelled:
		return ErrSendCancelled
	case ReturnInvalidParams:
		return ErrInvalidParams
	default:
		return ErrSendFailed
	}
}

// FromContext converts a finished context into a ReturnCode.
func FromContext(ctx context.Context) ReturnCode {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ReturnTimeout
	case ctx.Err() != nil:
		return ReturnCancelled
	default:
		return ReturnPass
	}
}

// Channel is one physical ANT channel.
type Channel interface {
	Number() uint8
	// Subscribe registers a handler for inbound responses. The returned
	// function removes the handler.
	Subscribe(fn func(Response)) (unsubscribe func())
	// SendAcknowledged transmits page to id and waits up to wait for the
	// transfer to complete.
	SendAcknowledged(ctx context.Context, id ChannelID, p page.Page, wait time.Duration) ReturnCode
	Close() error
}

// Radio is the ANT radio as seen by the registry.
type Radio interface {
	// InitializeContinuousScanMode returns the broadcast receive channel at
	// index 0 followed by the channels reserved for acknowledged sends.
	InitializeContinuousScanMode(ctx context.Context) ([]Channel, error)
}

// Sender issues acknowledged sends on behalf of device decoders.
type Sender interface {
	Send(ctx context.Context, id ChannelID, p page.Page, wait time.Duration) ReturnCode
}
