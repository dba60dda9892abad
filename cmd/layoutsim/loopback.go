package main

import (
	"context"
	"fmt"

	"github.com/matrix-org/tessera/pkg/webrtc_ext"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
)

// Two peer connections within the process: the layout engine talks over a data channel
// of the first one and the second one plays the SFU, logging what it receives.
type loopback struct {
	local   *webrtc.PeerConnection
	remote  *webrtc.PeerConnection
	channel *webrtc.DataChannel
}

func newLoopback(ctx context.Context, config webrtc_ext.Config, logger *logrus.Entry) (*loopback, error) {
	api, err := webrtc_ext.NewAPI(config)
	if err != nil {
		return nil, err
	}

	local, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, fmt.Errorf("failed to create local peer connection: %w", err)
	}

	remote, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("failed to create remote peer connection: %w", err)
	}

	l := &loopback{local: local, remote: remote}

	remote.OnDataChannel(func(channel *webrtc.DataChannel) {
		channel.OnMessage(func(msg webrtc.DataChannelMessage) {
			logger.WithField("label", channel.Label()).Debugf("sfu received %s", msg.Data)
		})
	})

	opened := make(chan struct{})
	l.channel, err = local.CreateDataChannel("tessera", nil)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to create data channel: %w", err)
	}
	l.channel.OnOpen(func() { close(opened) })

	if err := l.negotiate(); err != nil {
		l.Close()
		return nil, err
	}

	select {
	case <-opened:
		logger.Info("loopback data channel open")
		return l, nil
	case <-ctx.Done():
		l.Close()
		return nil, fmt.Errorf("data channel did not open: %w", ctx.Err())
	}
}

func (l *loopback) negotiate() error {
	offer, err := l.local.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}

	gathered := webrtc.GatheringCompletePromise(l.local)
	if err := l.local.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local offer: %w", err)
	}
	<-gathered

	if err := l.remote.SetRemoteDescription(*l.local.LocalDescription()); err != nil {
		return fmt.Errorf("failed to set remote offer: %w", err)
	}

	answer, err := l.remote.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	gathered = webrtc.GatheringCompletePromise(l.remote)
	if err := l.remote.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local answer: %w", err)
	}
	<-gathered

	if err := l.local.SetRemoteDescription(*l.remote.LocalDescription()); err != nil {
		return fmt.Errorf("failed to set remote answer: %w", err)
	}

	return nil
}

func (l *loopback) Close() {
	l.local.Close()
	l.remote.Close()
}
