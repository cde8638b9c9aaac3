package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthResponse(t *testing.T) {
	// Example from the obs-websocket protocol documentation.
	got := AuthResponse(
		"supersecretpassword",
		"lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI=",
		"+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY=",
	)
	assert.Equal(t, "1Ct943GAT+6YQUUX47Ia/ncufilbe6+oD6lY+5kaCu4=", got)
}

func TestOpCodeString(t *testing.T) {
	tests := []struct {
		op   OpCode
		want string
	}{
		{OpHello, "Hello"},
		{OpIdentify, "Identify"},
		{OpIdentified, "Identified"},
		{OpEvent, "Event"},
		{OpRequest, "Request"},
		{OpRequestResponse, "RequestResponse"},
		{OpCode(42), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}

func TestRequestEnvelope(t *testing.T) {
	data, err := json.Marshal(outgoing{Op: OpRequest, D: requestData{
		RequestType: "SetCurrentProgramScene",
		RequestID:   "abc",
		RequestData: map[string]string{"sceneName": "Live"},
	}})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"op":6,"d":{"requestType":"SetCurrentProgramScene","requestId":"abc","requestData":{"sceneName":"Live"}}}`,
		string(data))

	data, err = json.Marshal(outgoing{Op: OpRequest, D: requestData{RequestType: "GetVersion", RequestID: "x"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":6,"d":{"requestType":"GetVersion","requestId":"x"}}`, string(data))
}

func TestErrorsFormat(t *testing.T) {
	assert.Equal(t, "connection closed with code 4009: Authentication failed.",
		(&CloseError{Code: 4009, Reason: "Authentication failed."}).Error())
	assert.Equal(t, "connection closed with code 1006", (&CloseError{Code: 1006}).Error())
	assert.Equal(t, "request SetCurrentProgramScene failed with status 600: No source was found by the name of `Nope`.",
		(&RequestError{Method: "SetCurrentProgramScene", Code: 600, Comment: "No source was found by the name of `Nope`."}).Error())
	assert.Equal(t, "authentication failed", CloseCodeText(CloseAuthenticationFailed))
	assert.Equal(t, "unknown", CloseCodeText(1234))
}

func TestEventDecode(t *testing.T) {
	ev := Event{Name: "CurrentProgramSceneChanged", Data: json.RawMessage(`{"sceneName":"Live"}`)}
	var payload struct {
		SceneName string `json:"sceneName"`
	}
	require.NoError(t, ev.Decode(&payload))
	assert.Equal(t, "Live", payload.SceneName)

	assert.Error(t, Event{Name: "Empty"}.Decode(&payload))
}
