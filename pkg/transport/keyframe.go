package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
)

var (
	ErrUnknownProducer   = errors.New("no SSRC known for producer")
	ErrKeyframeThrottled = errors.New("keyframe was requested recently")
)

// What we need from `webrtc.PeerConnection`.
type RTCPWriter interface {
	WriteRTCP(packets []rtcp.Packet) error
}

// Sends picture loss indications for the video of producers. Requests for the same
// SSRC are limited to one per `interval`.
type KeyframeRequester struct {
	mutex     sync.Mutex
	writer    RTCPWriter
	ssrcs     map[string]webrtc.SSRC
	requested map[webrtc.SSRC]time.Time
	interval  time.Duration
	now       func() time.Time
}

func NewKeyframeRequester(writer RTCPWriter, interval time.Duration) *KeyframeRequester {
	return &KeyframeRequester{
		writer:    writer,
		ssrcs:     make(map[string]webrtc.SSRC),
		requested: make(map[webrtc.SSRC]time.Time),
		interval:  interval,
		now:       time.Now,
	}
}

// Replaces the clock, used by tests.
func (k *KeyframeRequester) WithClock(now func() time.Time) *KeyframeRequester {
	k.now = now
	return k
}

// Remembers the SSRC of the video consumed for a producer.
func (k *KeyframeRequester) Bind(producerID string, ssrc webrtc.SSRC) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	k.ssrcs[producerID] = ssrc
}

func (k *KeyframeRequester) Unbind(producerID string) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	if ssrc, found := k.ssrcs[producerID]; found {
		delete(k.requested, ssrc)
		delete(k.ssrcs, producerID)
	}
}

func (k *KeyframeRequester) Request(producerID string) error {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	ssrc, found := k.ssrcs[producerID]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownProducer, producerID)
	}

	now := k.now()
	if last, found := k.requested[ssrc]; found && now.Sub(last) < k.interval {
		return ErrKeyframeThrottled
	}

	packet := &rtcp.PictureLossIndication{MediaSSRC: uint32(ssrc)}
	if err := k.writer.WriteRTCP([]rtcp.Packet{packet}); err != nil {
		return fmt.Errorf("failed to send PLI: %w", err)
	}

	k.requested[ssrc] = now
	return nil
}
