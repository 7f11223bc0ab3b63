package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/skorotkiewicz/gnunet-social/internal/models"
)

func TestDecodeRequestFromClientFrame(t *testing.T) {
	frame := []byte(`{"type":"create_post","content":"hi","media_hashes":[],"reply_to":null,"repost_of":null,"visibility":"followers_only"}`)

	req, err := JSON.DecodeRequest(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	post, ok := req.(*CreatePostRequest)
	if !ok {
		t.Fatalf("expected *CreatePostRequest, got %T", req)
	}
	if post.Content != "hi" || post.Visibility != models.VisibilityFollowersOnly {
		t.Fatalf("unexpected request: %+v", post)
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	cases := map[string]struct {
		frame string
		want  error
	}{
		"not json":       {frame: `{"type":`, want: ErrMalformed},
		"missing tag":    {frame: `{"peer_id":"a"}`, want: ErrMalformed},
		"unknown kind":   {frame: `{"type":"delete_everything"}`, want: ErrUnknownType},
		"bad field":      {frame: `{"type":"get_post","post_id":7}`, want: ErrMalformed},
		"non-string tag": {frame: `{"type":3}`, want: ErrMalformed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := JSON.DecodeRequest([]byte(tc.frame))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEventResponseIsFlattened(t *testing.T) {
	resp := &EventResponse{Event: &FriendAcceptedEvent{PeerID: "peerB", Requester: "peerA"}}

	data, err := JSON.EncodeResponse(resp)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["type"] != "event" || fields["event"] != "friend_accepted" || fields["peer_id"] != "peerB" {
		t.Fatalf("unexpected envelope: %s", data)
	}

	decoded, err := JSON.DecodeResponse(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ev, ok := decoded.(*EventResponse)
	if !ok {
		t.Fatalf("expected event response, got %T", decoded)
	}
	if accepted, ok := ev.Event.(*FriendAcceptedEvent); !ok || accepted.Requester != "peerA" {
		t.Fatalf("unexpected event: %#v", ev.Event)
	}
}

func TestCBORPreservesPrivateMessage(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 30, 15, 123456789, time.UTC)
	resp := &PrivateMessageResponse{Message: &models.PrivateMessage{
		ID:          "m1",
		SenderID:    "peerA",
		RecipientID: "peerB",
		Content:     "psst",
		MediaHashes: []string{"abc"},
		CreatedAt:   created,
	}}

	for _, codec := range []Codec{JSON, CBOR} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.EncodeResponse(resp)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := codec.DecodeResponse(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := decoded.(*PrivateMessageResponse)
			if got.Message == nil {
				t.Fatal("message lost")
			}
			if got.Message.ReadAt != nil {
				t.Fatalf("read_at should stay unset, got %v", got.Message.ReadAt)
			}
			if !got.Message.CreatedAt.Equal(created) {
				t.Fatalf("created_at changed: %v", got.Message.CreatedAt)
			}
			if got.Messages != nil {
				t.Fatalf("expected nil message list, got %v", got.Messages)
			}
		})
	}
}

func TestCBORRequestRoundTrip(t *testing.T) {
	limit := uint32(5)
	before := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := CBOR.EncodeRequest(&GetRoomMessagesRequest{RoomID: "r1", Limit: &limit, Before: &before})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	req, err := CBOR.DecodeRequest(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := req.(*GetRoomMessagesRequest)
	if got.RoomID != "r1" || got.Limit == nil || *got.Limit != 5 || got.Before == nil || !got.Before.Equal(before) {
		t.Fatalf("unexpected request: %+v", got)
	}

	if _, err := JSON.DecodeRequest(data); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected json codec to reject cbor frame, got %v", err)
	}
}

func TestCBOREncodingIsDeterministic(t *testing.T) {
	req := &CreateRoomRequest{Name: "general", IsGroup: true}
	first, err := CBOR.EncodeRequest(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := CBOR.EncodeRequest(req)
		if string(again) != string(first) {
			t.Fatal("encoding differs between runs")
		}
	}
}

func TestEncodeNilRejected(t *testing.T) {
	var req *AuthRequest
	if _, err := JSON.EncodeRequest(req); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	if _, err := JSON.EncodeResponse(&EventResponse{}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType for empty event, got %v", err)
	}
}

func TestRelayRoundTrip(t *testing.T) {
	data, err := EncodeRelay(&PostRelay{PostID: "p1", Author: "peerA", Content: "hello"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fields["relay_type"] != "post" {
		t.Fatalf("missing relay tag: %s", data)
	}

	relay, err := DecodeRelay(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	post, ok := relay.(*PostRelay)
	if !ok || post.Author != "peerA" {
		t.Fatalf("unexpected relay: %#v", relay)
	}

	if _, err := DecodeRelay([]byte(`{"relay_type":"gossip"}`)); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestActorOf(t *testing.T) {
	cases := []struct {
		event Event
		want  string
	}{
		{&NewPostEvent{Post: models.Post{AuthorID: "a"}}, "a"},
		{&NewRoomMessageEvent{Message: models.RoomMessage{SenderID: "b"}}, "b"},
		{&FriendRequestEvent{From: "c"}, "c"},
		{&UserOfflineEvent{PeerID: "d"}, "d"},
	}
	for _, tc := range cases {
		if got := ActorOf(tc.event); got != tc.want {
			t.Fatalf("ActorOf(%s) = %q want %q", tc.event.Kind(), got, tc.want)
		}
	}
}
