package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

var ErrDataChannelNotAvailable = errors.New("data channel is not available")

// What we need from `webrtc.DataChannel`.
type TextSender interface {
	SendText(text string) error
	ReadyState() webrtc.DataChannelState
}

// Message sent over the data channel.
type dataChannelMessage struct {
	Type    string       `json:"type"`
	Content LayoutUpdate `json:"content"`
}

const layoutMessageType = "layout"

// Sends layout updates over a data channel of the peer connection with the SFU.
type DataChannelChannel struct {
	channel TextSender
	logger  *logrus.Entry
}

func NewDataChannelChannel(channel TextSender, logger *logrus.Entry) *DataChannelChannel {
	return &DataChannelChannel{channel: channel, logger: logger}
}

func (d *DataChannelChannel) EmitLayout(ctx context.Context, update LayoutUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if d.channel == nil {
		return ErrDataChannelNotAvailable
	}

	if state := d.channel.ReadyState(); state != webrtc.DataChannelStateOpen {
		return &RejectedError{Reason: fmt.Sprintf("data channel is %s", state)}
	}

	payload, err := json.Marshal(dataChannelMessage{Type: layoutMessageType, Content: update})
	if err != nil {
		return fmt.Errorf("failed to marshal layout update: %w", err)
	}

	if err := d.channel.SendText(string(payload)); err != nil {
		return fmt.Errorf("failed to send layout update: %w", err)
	}

	d.logger.WithField("names", len(update.Names)).Debug("layout update sent over data channel")
	return nil
}
