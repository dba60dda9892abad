package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/matrix-org/tessera/pkg/webrtc_ext"
	"github.com/matrix-org/tessera/pkg/worker"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

var ErrNothingToConsume = errors.New("tile has no producer")

// Identifies the media of a tile for the transport.
type TileRef struct {
	ProducerID string
	AudioID    string
	Name       string
	// Simulcast layer to consume, `SimulcastLayerNone` if the producer has no layers.
	Layer webrtc_ext.SimulcastLayer
}

// What we need from `webrtc.DataChannel`.
type TextSender interface {
	SendText(text string) error
	ReadyState() webrtc.DataChannelState
}

type consumerAction string

const (
	actionResume consumerAction = "resume"
	actionPause  consumerAction = "pause"
)

// Request to the SFU to start or stop forwarding a producer to us.
type consumerRequest struct {
	Action     consumerAction `json:"action"`
	ProducerID string         `json:"producerId,omitempty"`
	AudioID    string         `json:"audioId,omitempty"`
	Name       string         `json:"name"`
	Layer      string         `json:"layer,omitempty"`
}

// Asks the SFU to resume or pause the consumers of tiles over a data channel.
// Messages are sent by a worker, so callers never wait for the network.
type DataChannelTransport struct {
	worker    *worker.Worker[string]
	keyframes *KeyframeRequester
	logger    *logrus.Entry
}

// Creates the transport. `keyframes` is optional: when set, a keyframe is requested
// for every video that gets resumed so that the tile does not stay black until the next one.
func NewDataChannelTransport(
	channel TextSender,
	keyframes *KeyframeRequester,
	queueSize int,
	logger *logrus.Entry,
) *DataChannelTransport {
	workerConfig := worker.Config[string]{
		ChannelSize: queueSize,
		Timeout:     time.Hour,
		OnTimeout:   func() {},
		OnTask: func(message string) {
			if state := channel.ReadyState(); state != webrtc.DataChannelStateOpen {
				logger.WithField("state", state.String()).Warn("dropping the message, channel not open")
				return
			}

			if err := channel.SendText(message); err != nil {
				logger.WithError(err).Error("failed to send data channel message")
			}
		},
	}

	return &DataChannelTransport{
		worker:    worker.StartWorker(workerConfig),
		keyframes: keyframes,
		logger:    logger,
	}
}

func (t *DataChannelTransport) Resume(ctx context.Context, ref TileRef) error {
	if err := t.send(ctx, actionResume, ref); err != nil {
		return err
	}

	if t.keyframes != nil && ref.ProducerID != "" {
		logger := t.logger.WithField("producer_id", ref.ProducerID)
		switch err := t.keyframes.Request(ref.ProducerID); {
		case err == nil, errors.Is(err, ErrKeyframeThrottled):
		case errors.Is(err, ErrUnknownProducer):
			logger.Debug("no SSRC bound, keyframe not requested")
		default:
			logger.WithError(err).Warn("failed to request keyframe")
		}
	}

	return nil
}

func (t *DataChannelTransport) Pause(ctx context.Context, ref TileRef) error {
	return t.send(ctx, actionPause, ref)
}

// Stops the worker, messages that are already queued are still sent.
func (t *DataChannelTransport) Close() {
	t.worker.Stop()
	<-t.worker.Done()
}

func (t *DataChannelTransport) send(ctx context.Context, action consumerAction, ref TileRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ref.ProducerID == "" && ref.AudioID == "" {
		return ErrNothingToConsume
	}

	request := consumerRequest{
		Action:     action,
		ProducerID: ref.ProducerID,
		AudioID:    ref.AudioID,
		Name:       ref.Name,
		Layer:      ref.Layer.RID(),
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", action, err)
	}

	if err := t.worker.Send(string(payload)); err != nil {
		return fmt.Errorf("failed to queue %s request: %w", action, err)
	}

	return nil
}
