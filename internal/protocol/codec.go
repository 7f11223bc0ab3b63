package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

const (
	typeTag  = "type"
	eventTag = "event"
)

var (
	// ErrUnknownType reports an envelope whose tag names no known kind.
	ErrUnknownType = errors.New("protocol: unknown message type")
	// ErrMalformed reports an envelope that could not be decoded.
	ErrMalformed = errors.New("protocol: malformed message")
)

// format is one serialization of the tagged envelope. Tags are merged into
// the body's own fields, so every body must encode as a map.
type format interface {
	encodeTagged(body any, tags map[string]string) ([]byte, error)
	readTag(data []byte, tag string) (string, error)
	decode(data []byte, v any) error
}

// Codec encodes and decodes envelopes in one wire format.
type Codec struct {
	name string
	f    format
}

var (
	// JSON is the text frame codec.
	JSON = Codec{name: "json", f: jsonFormat{}}
	// CBOR is the binary frame codec using Core Deterministic Encoding.
	CBOR = Codec{name: "cbor", f: newCBORFormat()}
)

// Name returns the codec's wire format name.
func (c Codec) Name() string { return c.name }

// EncodeRequest renders req as {"type": kind, ...fields}.
func (c Codec) EncodeRequest(req Request) ([]byte, error) {
	if isNil(req) {
		return nil, fmt.Errorf("encode request: %w", ErrUnknownType)
	}
	return c.f.encodeTagged(req, map[string]string{typeTag: req.Kind()})
}

// DecodeRequest parses an envelope into the request type named by its tag.
func (c Codec) DecodeRequest(data []byte) (Request, error) {
	kind, err := c.f.readTag(data, typeTag)
	if err != nil {
		return nil, err
	}
	factory, ok := requestFactories[kind]
	if !ok {
		return nil, fmt.Errorf("request %q: %w", kind, ErrUnknownType)
	}
	req := factory()
	if err := c.f.decode(data, req); err != nil {
		return nil, fmt.Errorf("request %q: %w: %v", kind, ErrMalformed, err)
	}
	return req, nil
}

// EncodeResponse renders resp. Events are flattened as
// {"type": "event", "event": kind, ...fields}.
func (c Codec) EncodeResponse(resp Response) ([]byte, error) {
	if isNil(resp) {
		return nil, fmt.Errorf("encode response: %w", ErrUnknownType)
	}
	if ev, ok := resp.(*EventResponse); ok {
		if isNil(ev.Event) {
			return nil, fmt.Errorf("encode event: %w", ErrUnknownType)
		}
		return c.f.encodeTagged(ev.Event, map[string]string{
			typeTag:  KindEvent,
			eventTag: ev.Event.Kind(),
		})
	}
	return c.f.encodeTagged(resp, map[string]string{typeTag: resp.Kind()})
}

// DecodeResponse parses a response envelope.
func (c Codec) DecodeResponse(data []byte) (Response, error) {
	kind, err := c.f.readTag(data, typeTag)
	if err != nil {
		return nil, err
	}
	if kind == KindEvent {
		ev, err := c.DecodeEvent(data)
		if err != nil {
			return nil, err
		}
		return &EventResponse{Event: ev}, nil
	}
	factory, ok := responseFactories[kind]
	if !ok {
		return nil, fmt.Errorf("response %q: %w", kind, ErrUnknownType)
	}
	resp := factory()
	if err := c.f.decode(data, resp); err != nil {
		return nil, fmt.Errorf("response %q: %w: %v", kind, ErrMalformed, err)
	}
	return resp, nil
}

// EncodeEvent renders a bare event as {"event": kind, ...fields}.
func (c Codec) EncodeEvent(ev Event) ([]byte, error) {
	if isNil(ev) {
		return nil, fmt.Errorf("encode event: %w", ErrUnknownType)
	}
	return c.f.encodeTagged(ev, map[string]string{eventTag: ev.Kind()})
}

// DecodeEvent parses an event, bare or wrapped in a response envelope.
func (c Codec) DecodeEvent(data []byte) (Event, error) {
	kind, err := c.f.readTag(data, eventTag)
	if err != nil {
		return nil, err
	}
	factory, ok := eventFactories[kind]
	if !ok {
		return nil, fmt.Errorf("event %q: %w", kind, ErrUnknownType)
	}
	ev := factory()
	if err := c.f.decode(data, ev); err != nil {
		return nil, fmt.Errorf("event %q: %w: %v", kind, ErrMalformed, err)
	}
	return ev, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

type jsonFormat struct{}

func (jsonFormat) encodeTagged(body any, tags map[string]string) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal json body: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("json body is not an object: %w", err)
	}
	for key, value := range tags {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal json tag %s: %w", key, err)
		}
		fields[key] = encoded
	}
	return json.Marshal(fields)
}

func (jsonFormat) readTag(data []byte, tag string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	raw, ok := fields[tag]
	if !ok {
		return "", fmt.Errorf("missing %q tag: %w", tag, ErrMalformed)
	}
	var kind string
	if err := json.Unmarshal(raw, &kind); err != nil {
		return "", fmt.Errorf("%q tag: %w: %v", tag, ErrMalformed, err)
	}
	return kind, nil
}

func (jsonFormat) decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type cborFormat struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORFormat() cborFormat {
	encOptions := cbor.CoreDetEncOptions()
	// Unix seconds would drop the sub-second part of every timestamp.
	encOptions.Time = cbor.TimeRFC3339Nano
	enc, err := encOptions.EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
	return cborFormat{enc: enc, dec: dec}
}

func (f cborFormat) encodeTagged(body any, tags map[string]string) ([]byte, error) {
	raw, err := f.enc.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal cbor body: %w", err)
	}
	fields := make(map[string]cbor.RawMessage)
	if err := f.dec.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("cbor body is not a map: %w", err)
	}
	for key, value := range tags {
		encoded, err := f.enc.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal cbor tag %s: %w", key, err)
		}
		fields[key] = encoded
	}
	return f.enc.Marshal(fields)
}

func (f cborFormat) readTag(data []byte, tag string) (string, error) {
	var fields map[string]cbor.RawMessage
	if err := f.dec.Unmarshal(data, &fields); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	raw, ok := fields[tag]
	if !ok {
		return "", fmt.Errorf("missing %q tag: %w", tag, ErrMalformed)
	}
	var kind string
	if err := f.dec.Unmarshal(raw, &kind); err != nil {
		return "", fmt.Errorf("%q tag: %w: %v", tag, ErrMalformed, err)
	}
	return kind, nil
}

func (f cborFormat) decode(data []byte, v any) error {
	return f.dec.Unmarshal(data, v)
}
