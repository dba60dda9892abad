package signaling

import "maunium.net/go/mautrix/id"

// Configuration for the Matrix client.
type Config struct {
	// The Matrix ID (MXID) of the client.
	UserID id.UserID `yaml:"userId"`
	// The URL of the homeserver that the client talks to.
	HomeserverURL string `yaml:"homeserverUrl"`
	// The access token for the Matrix SDK.
	AccessToken string `yaml:"accessToken"`
	// The focus (SFU) that receives the layout updates.
	Focus Recipient `yaml:"focus"`
	// Conference the layout belongs to.
	ConferenceID string `yaml:"conferenceId"`
}

func (c Config) Enabled() bool {
	return c.HomeserverURL != "" && c.AccessToken != ""
}
