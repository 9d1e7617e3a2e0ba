package gateway

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zlib"
)

// DecodeError reports an inbound frame that could not be turned into an
// Event. The session drops the frame and counts the strike; it never tears
// the connection down for a single one.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string { return "gateway: decode frame: " + e.Cause.Error() }

func (e *DecodeError) Unwrap() error { return e.Cause }

// DecodeEvent parses one websocket message into an Event. Binary messages
// are zlib-compressed and inflated first. Unknown JSON fields are ignored so
// new payload fields never break decoding.
func DecodeEvent(messageType int, data []byte) (*Event, error) {
	var reader io.Reader = bytes.NewReader(data)

	if messageType == websocket.BinaryMessage {
		z, err := zlib.NewReader(reader)
		if err != nil {
			return nil, &DecodeError{Cause: err}
		}
		defer z.Close()
		reader = z
	}

	json := jsoniter.ConfigCompatibleWithStandardLibrary

	var e Event
	if err := json.NewDecoder(reader).Decode(&e); err != nil {
		return nil, &DecodeError{Cause: err}
	}
	if !knownOp(e.Operation) {
		return nil, &DecodeError{Cause: fmt.Errorf("unknown opcode %d", e.Operation)}
	}
	return &e, nil
}

func knownOp(op int) bool {
	switch op {
	case OpDispatch, OpHeartbeat, OpIdentify, OpResume, OpReconnect, OpInvalidSession, OpHello, OpHeartbeatAck:
		return true
	}
	return false
}

// EncodePayload marshals an outbound intent (heartbeat, identify, resume).
// The payload structs in this package always marshal cleanly.
func EncodePayload(v any) ([]byte, error) {
	json := jsoniter.ConfigCompatibleWithStandardLibrary

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode payload: %w", err)
	}
	return data, nil
}
