package gateway

import (
	"fmt"

	"golang.org/x/net/websocket"

	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

// frame is one websocket message together with its payload type.
type frame struct {
	binary bool
	data   []byte
}

// codec picks the envelope format matching the frame type: text frames
// carry JSON, binary frames carry CBOR.
func (f frame) codec() protocol.Codec {
	if f.binary {
		return protocol.CBOR
	}
	return protocol.JSON
}

// frameCodec keeps the payload type that websocket.Message discards.
var frameCodec = websocket.Codec{
	Marshal: func(v any) ([]byte, byte, error) {
		f, ok := v.(frame)
		if !ok {
			return nil, 0, fmt.Errorf("gateway: cannot marshal %T", v)
		}
		if f.binary {
			return f.data, websocket.BinaryFrame, nil
		}
		return f.data, websocket.TextFrame, nil
	},
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		f, ok := v.(*frame)
		if !ok {
			return fmt.Errorf("gateway: cannot unmarshal into %T", v)
		}
		f.data = data
		f.binary = payloadType == websocket.BinaryFrame
		return nil
	},
}
