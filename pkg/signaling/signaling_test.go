package signaling_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/matrix-org/tessera/pkg/signaling"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix"
)

type fakeDataChannel struct {
	state webrtc.DataChannelState
	sent  []string
	err   error
}

func (f *fakeDataChannel) SendText(text string) error {
	f.sent = append(f.sent, text)
	return f.err
}

func (f *fakeDataChannel) ReadyState() webrtc.DataChannelState {
	return f.state
}

var update = signaling.LayoutUpdate{
	Names:            []string{"alice", "bob"},
	MainPercent:      34,
	MainScreenPerson: "host",
	ViewType:         tile.EventWebinar,
}

func logger() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func TestDataChannelEmit(t *testing.T) {
	channel := &fakeDataChannel{state: webrtc.DataChannelStateOpen}
	emitter := signaling.NewDataChannelChannel(channel, logger())

	require.NoError(t, emitter.EmitLayout(context.Background(), update))
	require.Len(t, channel.sent, 1)

	var message struct {
		Type    string                 `json:"type"`
		Content signaling.LayoutUpdate `json:"content"`
	}
	require.NoError(t, json.Unmarshal([]byte(channel.sent[0]), &message))
	assert.Equal(t, "layout", message.Type)
	assert.Equal(t, update, message.Content)
}

func TestDataChannelNotOpen(t *testing.T) {
	channel := &fakeDataChannel{state: webrtc.DataChannelStateConnecting}
	err := signaling.NewDataChannelChannel(channel, logger()).EmitLayout(context.Background(), update)

	var rejected *signaling.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Reason, "connecting")
	assert.Empty(t, channel.sent)

	err = signaling.NewDataChannelChannel(nil, logger()).EmitLayout(context.Background(), update)
	assert.ErrorIs(t, err, signaling.ErrDataChannelNotAvailable)
}

func TestDataChannelSendFailure(t *testing.T) {
	failure := errors.New("sctp closed")
	channel := &fakeDataChannel{state: webrtc.DataChannelStateOpen, err: failure}

	err := signaling.NewDataChannelChannel(channel, logger()).EmitLayout(context.Background(), update)
	assert.ErrorIs(t, err, failure)
}

func TestMatrixChannelSendsToDevice(t *testing.T) {
	var (
		mutex sync.Mutex
		paths []string
		body  []byte
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mutex.Lock()
		defer mutex.Unlock()

		paths = append(paths, r.URL.Path)
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("{}"))
	}))
	defer server.Close()

	client, err := mautrix.NewClient(server.URL, "@layout:example.org", "token")
	require.NoError(t, err)
	client.DeviceID = "CLIENT"

	recipient := signaling.Recipient{UserID: "@sfu:example.org", DeviceID: "SFU"}
	emitter := signaling.NewMatrixChannel(client, recipient, "conf", logger())
	require.NoError(t, emitter.EmitLayout(context.Background(), update))

	mutex.Lock()
	defer mutex.Unlock()

	require.Len(t, paths, 1)
	assert.True(t, strings.Contains(paths[0], "sendToDevice/m.call.layout"), paths[0])

	var request struct {
		Messages map[string]map[string]struct {
			ConfID           string   `json:"conf_id"`
			DeviceID         string   `json:"device_id"`
			Names            []string `json:"names"`
			MainPercent      int      `json:"mainPercent"`
			MainScreenPerson string   `json:"mainScreenPerson"`
			ViewType         string   `json:"viewType"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body, &request))

	content := request.Messages["@sfu:example.org"]["SFU"]
	assert.Equal(t, "conf", content.ConfID)
	assert.Equal(t, "CLIENT", content.DeviceID)
	assert.Equal(t, update.Names, content.Names)
	assert.Equal(t, 34, content.MainPercent)
	assert.Equal(t, "webinar", content.ViewType)
}

func TestMatrixChannelHonoursContext(t *testing.T) {
	client, err := mautrix.NewClient("http://127.0.0.1:1", "@layout:example.org", "token")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = signaling.NewMatrixChannel(client, signaling.Recipient{}, "conf", logger()).EmitLayout(ctx, update)
	assert.ErrorIs(t, err, context.Canceled)
}
