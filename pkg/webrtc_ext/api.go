package webrtc_ext

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// RFC 6464 client-to-mixer audio level.
const AudioLevelURI = "urn:ietf:params:rtp-hdrext:ssrc-audio-level"

type Config struct {
	// Negotiate the header extensions needed to receive simulcast layers.
	EnableSimulcast bool `yaml:"simulcast"`
}

// Creates Pion's WebRTC API for the connections that carry the media of the tiles and
// the layout control messages. Audio levels are always negotiated, loudness sorting relies on them.
func NewAPI(config Config) (*webrtc.API, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register default codecs: %w", err)
	}

	if err := mediaEngine.RegisterHeaderExtension(
		webrtc.RTPHeaderExtensionCapability{URI: AudioLevelURI},
		webrtc.RTPCodecTypeAudio,
	); err != nil {
		return nil, fmt.Errorf("failed to register audio level extension: %w", err)
	}

	if config.EnableSimulcast {
		for _, extension := range []string{
			"urn:ietf:params:rtp-hdrext:sdes:mid",
			"urn:ietf:params:rtp-hdrext:sdes:rtp-stream-id",
			"urn:ietf:params:rtp-hdrext:sdes:repaired-rtp-stream-id",
		} {
			if err := mediaEngine.RegisterHeaderExtension(
				webrtc.RTPHeaderExtensionCapability{URI: extension},
				webrtc.RTPCodecTypeVideo,
			); err != nil {
				return nil, fmt.Errorf("failed to register simulcast extension: %w", err)
			}
		}
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("failed to set default interceptors: %w", err)
	}

	return webrtc.NewAPI(webrtc.WithMediaEngine(mediaEngine), webrtc.WithInterceptorRegistry(registry)), nil
}

// Finds the negotiated ID of the audio level header extension.
func AudioLevelExtensionID(parameters webrtc.RTPParameters) (uint8, bool) {
	for _, extension := range parameters.HeaderExtensions {
		if extension.URI == AudioLevelURI {
			return uint8(extension.ID), true
		}
	}

	return 0, false
}
