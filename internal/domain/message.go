package domain

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// MessageType identifies an in-band control channel message
type MessageType string

const (
	MessageDeclined MessageType = "declined"
	MessageEnd      MessageType = "end"
	MessageKey      MessageType = "key"
	MessageChat     MessageType = "chat"
)

// ControlMessage is the envelope exchanged on the control channel
type ControlMessage struct {
	Type   MessageType       `json:"type"`
	Key    ByteArray         `json:"key,omitempty"`
	EncMsg *EncryptedPayload `json:"encMsg,omitempty"`
}

// EncryptedPayload is an AES-GCM sealed chat message
type EncryptedPayload struct {
	IV   ByteArray `json:"iv"`
	Data ByteArray `json:"data"`
}

// ByteArray marshals as a JSON array of numbers, the form browser peers
// produce with Array.from(Uint8Array). Base64 strings are also accepted.
type ByteArray []byte

// MarshalJSON implements json.Marshaler
func (b ByteArray) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.Grow(len(b)*4 + 2)
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Itoa(int(v)))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*b = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("byte array: %w", err)
		}
		*b = raw
		return nil
	}

	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("byte array: %w", err)
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte array: value %d at index %d out of range", n, i)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}
