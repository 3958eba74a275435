package relay

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// frameKind tags an envelope travelling over a Channel.
type frameKind uint8

const (
	frameItem   frameKind = iota + 1 // producer → consumer item
	frameDrain                       // drain request
	frameHeader                      // reply header carrying the item count
	frameReply                       // one reply item
)

func (k frameKind) String() string {
	switch k {
	case frameItem:
		return "item"
	case frameDrain:
		return "drain"
	case frameHeader:
		return "header"
	case frameReply:
		return "reply"
	default:
		return fmt.Sprintf("frame(%d)", uint8(k))
	}
}

// envelope is the unit serialized into each frame.
type envelope[T any] struct {
	Kind  frameKind `cbor:"1,keyasint"`
	Token []byte    `cbor:"2,keyasint,omitempty"`
	Seq   uint64    `cbor:"3,keyasint,omitempty"`
	Count int       `cbor:"4,keyasint,omitempty"`
	Item  T         `cbor:"5,keyasint"`
}

// encMode uses Core Deterministic Encoding so equal envelopes produce equal
// frames.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("relay: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("relay: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeFrame[T any](env envelope[T]) ([]byte, error) {
	data, err := encMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", env.Kind, err)
	}
	return data, nil
}

func decodeFrame[T any](data []byte) (envelope[T], error) {
	var env envelope[T]
	if err := decMode.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("decode frame: %w", err)
	}
	return env, nil
}
