package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes messages for one websocket frame type.
type Codec interface {
	Name() string
	FrameType() int
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// CodecByName returns the codec registered under name. An empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type JSONCodec struct{}

func (JSONCodec) Name() string   { return CodecJSON }
func (JSONCodec) FrameType() int { return websocket.TextMessage }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// MsgpackCodec sends binary frames. Field names follow the json tags so
// both codecs share one schema.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string   { return CodecMsgpack }
func (MsgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
