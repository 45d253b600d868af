package http

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestServer(t *testing.T, model *fakeModel) *websocket.Conn {
	t.Helper()
	handler, _ := newTestHandler(t, model)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, msg Message) Message {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestWebSocketPredict(t *testing.T) {
	model := &fakeModel{label: 1}
	conn := dialTestServer(t, model)

	reply := roundTrip(t, conn, Message{Type: MessagePredict, ID: "a1", Data: json.RawMessage(`{"age": 45}`)})
	assert.Equal(t, MessagePrediction, reply.Type)
	assert.Equal(t, "a1", reply.ID)

	var payload predictResponse
	require.NoError(t, json.Unmarshal(reply.Data, &payload))
	assert.Equal(t, 1, payload.Label)
	assert.Equal(t, "The model predicts: **Heart Failure Detected**.", payload.Message)
	assert.Equal(t, 45.0, payload.Features[0])

	// 同一连接上的第二次预测独立进行
	reply = roundTrip(t, conn, Message{Type: MessagePredict, ID: "a2"})
	assert.Equal(t, MessagePrediction, reply.Type)
	require.NoError(t, json.Unmarshal(reply.Data, &payload))
	assert.Equal(t, 52.0, payload.Features[0])
	assert.Len(t, model.calls(), 2)
}

func TestWebSocketErrors(t *testing.T) {
	conn := dialTestServer(t, &fakeModel{})

	reply := roundTrip(t, conn, Message{Type: MessagePredict, ID: "b1", Data: json.RawMessage(`{"ca": 7}`)})
	assert.Equal(t, MessageError, reply.Type)
	var body errorResponse
	require.NoError(t, json.Unmarshal(reply.Data, &body))
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "ca", body.Fields[0].Field)

	reply = roundTrip(t, conn, Message{Type: "subscribe", ID: "b2"})
	assert.Equal(t, MessageError, reply.Type)
	assert.Equal(t, "b2", reply.ID)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var raw Message
	require.NoError(t, conn.ReadJSON(&raw))
	assert.Equal(t, MessageError, raw.Type)

	reply = roundTrip(t, conn, Message{Type: MessagePing, ID: "b3"})
	assert.Equal(t, MessagePong, reply.Type)
	assert.Equal(t, "b3", reply.ID)
}

func TestWebSocketModelPanicKeepsConnection(t *testing.T) {
	conn := dialTestServer(t, &fakeModel{panics: true})

	reply := roundTrip(t, conn, Message{Type: MessagePredict, ID: "c1"})
	assert.Equal(t, MessageError, reply.Type)
	assert.Equal(t, "c1", reply.ID)
	var body errorResponse
	require.NoError(t, json.Unmarshal(reply.Data, &body))
	assert.Contains(t, body.Error, "inference failed")

	reply = roundTrip(t, conn, Message{Type: MessagePing, ID: "c2"})
	assert.Equal(t, MessagePong, reply.Type)
	assert.Equal(t, "c2", reply.ID)
}
