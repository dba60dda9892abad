/*
Copyright 2022 The Matrix.org Foundation C.I.C.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package signaling

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// To-device event that carries a layout update.
var LayoutEvent = event.Type{Type: "m.call.layout", Class: event.ToDeviceEventType}

// Defines the device that receives the to-device messages.
type Recipient struct {
	UserID   id.UserID   `yaml:"userId"`
	DeviceID id.DeviceID `yaml:"deviceId"`
}

type layoutEventContent struct {
	ConfID   string      `json:"conf_id"`
	DeviceID id.DeviceID `json:"device_id"`
	LayoutUpdate
}

// Creates a Matrix client and makes sure that the access token belongs to the configured user.
func NewMatrixClient(config Config) (*mautrix.Client, error) {
	client, err := mautrix.NewClient(config.HomeserverURL, config.UserID, config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	whoami, err := client.Whoami()
	if err != nil {
		return nil, fmt.Errorf("failed to identify user: %w", err)
	}

	if config.UserID != whoami.UserID {
		return nil, fmt.Errorf("access token is for the wrong user: %s", whoami.UserID)
	}

	logrus.WithField("device_id", whoami.DeviceID).Info("Identified client as DeviceID")
	client.DeviceID = whoami.DeviceID

	return client, nil
}

// Sends layout updates as to-device events to the focus of a conference.
type MatrixChannel struct {
	client       *mautrix.Client
	recipient    Recipient
	conferenceID string
	logger       *logrus.Entry
}

func NewMatrixChannel(client *mautrix.Client, recipient Recipient, conferenceID string, logger *logrus.Entry) *MatrixChannel {
	return &MatrixChannel{
		client:       client,
		recipient:    recipient,
		conferenceID: conferenceID,
		logger: logger.WithFields(logrus.Fields{
			"user_id":   recipient.UserID,
			"device_id": recipient.DeviceID,
		}),
	}
}

func (m *MatrixChannel) EmitLayout(ctx context.Context, update LayoutUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	eventContent := &event.Content{
		Parsed: layoutEventContent{
			ConfID:       m.conferenceID,
			DeviceID:     m.client.DeviceID,
			LayoutUpdate: update,
		},
	}

	sendRequest := &mautrix.ReqSendToDevice{
		Messages: map[id.UserID]map[id.DeviceID]*event.Content{
			m.recipient.UserID: {
				m.recipient.DeviceID: eventContent,
			},
		},
	}

	if _, err := m.client.SendToDevice(LayoutEvent, sendRequest); err != nil {
		return fmt.Errorf("failed to send to-device event: %w", err)
	}

	m.logger.WithField("main_screen_person", update.MainScreenPerson).Debug("layout update sent")
	return nil
}
