package channel

import (
	"errors"
	"sync/atomic"
)

var (
	ErrSinkSealed = errors.New("the sink is sealed")
	ErrSinkFull   = errors.New("the sink is full")
)

// Message that carries its sender, so that a single consumer can serve many producers
// (e.g. several rosters feeding a single layout engine).
type Message[SenderType comparable, MessageType any] struct {
	Sender  SenderType
	Content MessageType
}

// SinkWithSender binds a sender to a shared message sink so that the producer can't
// impersonate another sender. The sink does not own the underlying channel and never closes it.
type SinkWithSender[SenderType comparable, MessageType any] struct {
	sender      SenderType
	messageSink chan<- Message[SenderType, MessageType]
	// Closed once the sink is sealed, unblocks pending senders.
	sealed        chan struct{}
	alreadySealed atomic.Bool
}

func NewSink[S comparable, M any](sender S, messageSink chan<- Message[S, M]) *SinkWithSender[S, M] {
	return &SinkWithSender[S, M]{
		sender:      sender,
		messageSink: messageSink,
		sealed:      make(chan struct{}),
	}
}

// Sends a message, blocking while the sink is full.
func (s *SinkWithSender[S, M]) Send(message M) error {
	if s.alreadySealed.Load() {
		return ErrSinkSealed
	}

	select {
	case <-s.sealed:
		return ErrSinkSealed
	case s.messageSink <- s.wrap(message):
		return nil
	}
}

// Sends a message unless the sink is full or sealed. Used by producers that
// run under a lock and must never wait for the consumer.
func (s *SinkWithSender[S, M]) TrySend(message M) error {
	if s.alreadySealed.Load() {
		return ErrSinkSealed
	}

	select {
	case s.messageSink <- s.wrap(message):
		return nil
	default:
		return ErrSinkFull
	}
}

// Seals the sink: any further `Send` fails. Senders that are already blocked
// either get `ErrSinkSealed` or deliver their message if the consumer is ready.
func (s *SinkWithSender[S, M]) Seal() {
	if s.alreadySealed.CompareAndSwap(false, true) {
		close(s.sealed)
	}
}

func (s *SinkWithSender[S, M]) wrap(message M) Message[S, M] {
	return Message[S, M]{Sender: s.sender, Content: message}
}
