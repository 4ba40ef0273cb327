package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlMessage_KeyIsNumericArray(t *testing.T) {
	msg := ControlMessage{Type: MessageKey, Key: ByteArray{0, 17, 255}}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":"key","key":[0,17,255]}`, string(data))
}

func TestControlMessage_DecodesBrowserChat(t *testing.T) {
	raw := `{"type":"chat","encMsg":{"iv":[1,2,3,4,5,6,7,8,9,10,11,12],"data":[200,201]}}`

	var msg ControlMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))

	assert.Equal(t, MessageChat, msg.Type)
	require.NotNil(t, msg.EncMsg)
	assert.Len(t, msg.EncMsg.IV, 12)
	assert.Equal(t, ByteArray{200, 201}, msg.EncMsg.Data)
}

func TestByteArray_AcceptsBase64(t *testing.T) {
	var b ByteArray
	require.NoError(t, json.Unmarshal([]byte(`"AAEC"`), &b))
	assert.Equal(t, ByteArray{0, 1, 2}, b)
}

func TestByteArray_RejectsOutOfRange(t *testing.T) {
	var b ByteArray
	err := json.Unmarshal([]byte(`[1,256]`), &b)
	assert.Error(t, err)
}

func TestControlMessage_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(ControlMessage{Type: MessageEnd})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"end"}`, string(data))
}

func TestCallKindValid(t *testing.T) {
	assert.True(t, CallKindVideo.Valid())
	assert.True(t, CallKindAudio.Valid())
	assert.False(t, CallKind("screen").Valid())
}
