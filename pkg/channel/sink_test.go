package channel_test

import (
	"testing"

	"github.com/matrix-org/tessera/pkg/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkCarriesSender(t *testing.T) {
	messages := make(chan channel.Message[string, int], 2)
	sink := channel.NewSink("room", messages)

	require.NoError(t, sink.Send(42))
	msg := <-messages
	assert.Equal(t, "room", msg.Sender)
	assert.Equal(t, 42, msg.Content)
}

func TestTrySendOnFullSink(t *testing.T) {
	messages := make(chan channel.Message[string, int], 1)
	sink := channel.NewSink("room", messages)

	require.NoError(t, sink.TrySend(1))
	assert.ErrorIs(t, sink.TrySend(2), channel.ErrSinkFull)
}

func TestSealedSinkRejects(t *testing.T) {
	messages := make(chan channel.Message[string, int], 1)
	sink := channel.NewSink("room", messages)

	sink.Seal()
	sink.Seal()

	assert.ErrorIs(t, sink.Send(1), channel.ErrSinkSealed)
	assert.ErrorIs(t, sink.TrySend(1), channel.ErrSinkSealed)
	assert.Len(t, messages, 0)
}
