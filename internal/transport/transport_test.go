package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelID_Key(t *testing.T) {
	id := ChannelID{DeviceNumber: 0x1234, DeviceType: 120, TransmissionType: 1}
	pairing := ChannelID{DeviceNumber: 0x1234, DeviceType: 120 | 0x80, TransmissionType: 1}

	assert.Equal(t, uint32(0x12347801), id.Key())
	assert.Equal(t, id.Key(), pairing.Key(), "pairing bit MUST NOT change the key")
	assert.True(t, pairing.Pairing())
	assert.Equal(t, uint8(120), pairing.DeviceClass())
	assert.Equal(t, "4660/120/1", pairing.String())
}

func TestReturnCode_Err(t *testing.T) {
	tests := []struct {
		code ReturnCode
		want error
	}{
		{ReturnPass, nil},
		{ReturnFail, ErrSendFailed},
		{ReturnTimeout, ErrSendTimeout},
		{ReturnCancelled, ErrSendCancelled},
		{ReturnInvalidParams, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.Err())
		})
	}
}

func TestSendError(t *testing.T) {
	err := ReturnTimeout.Errorf("device %s", "4660/120/1")
	assert.Equal(t, "acknowledged send: timeout: device 4660/120/1", err.Error())
	assert.ErrorIs(t, err, ErrSendTimeout, "SendError MUST match the sentinel with the same code")
	assert.NotErrorIs(t, err, ErrSendFailed)

	wrapped := fmt.Errorf("set target power: %w", err)
	var sendErr *SendError
	assert.ErrorAs(t, wrapped, &sendErr)
	assert.Equal(t, ReturnTimeout, sendErr.Code)

	assert.NoError(t, ReturnPass.Errorf("ignored"))
	assert.Equal(t, "acknowledged send: fail", ErrSendFailed.Error())
	assert.False(t, errors.Is(errors.New("other"), ErrSendFailed))
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, ReturnPass, FromContext(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, ReturnCancelled, FromContext(ctx))

	ctx, cancel = context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	assert.Equal(t, ReturnTimeout, FromContext(ctx))
}
