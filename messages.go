package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound message types.
const (
	TypeJoinRoom           = "join_room"
	TypeLeaveRoom          = "leave_room"
	TypeChatMessage        = "chat_message"
	TypeWebRTCOffer        = "webrtc_offer"
	TypeWebRTCAnswer       = "webrtc_answer"
	TypeWebRTCIceCandidate = "webrtc_ice_candidate"
)

// Outbound-only message types.
const (
	TypeError             = "error"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeRoomJoined        = "room_joined"
	TypeRoomReady         = "room_ready"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownType      = errors.New("unknown message type")
)

// Inbound is one decoded client message: JoinRoom, LeaveRoom, ChatMessage
// or Relay.
type Inbound interface {
	inbound()
}

type JoinRoom struct {
	RoomID   string
	Username string
}

type LeaveRoom struct {
	RoomID string
}

type ChatMessage struct {
	RoomID   string
	Text     string
	Username string
}

// Relay carries an offer, answer or ICE candidate. Payload is never decoded.
type Relay struct {
	Kind    string
	Target  string
	RoomID  string
	Payload json.RawMessage
}

func (JoinRoom) inbound()    {}
func (LeaveRoom) inbound()   {}
func (ChatMessage) inbound() {}
func (Relay) inbound()       {}

// Wire shapes. Each includes Type so strict decoding accepts the envelope.
type (
	joinRoomWire struct {
		Type     string `json:"type"`
		RoomID   string `json:"room_id"`
		Username string `json:"username"`
	}
	leaveRoomWire struct {
		Type   string `json:"type"`
		RoomID string `json:"room_id"`
	}
	chatMessageWire struct {
		Type     string  `json:"type"`
		RoomID   string  `json:"room_id"`
		Message  *string `json:"message"`
		Username string  `json:"username"`
	}
	offerWire struct {
		Type   string          `json:"type"`
		Target string          `json:"target"`
		RoomID string          `json:"room_id"`
		Offer  json.RawMessage `json:"offer"`
	}
	answerWire struct {
		Type   string          `json:"type"`
		Target string          `json:"target"`
		RoomID string          `json:"room_id"`
		Answer json.RawMessage `json:"answer"`
	}
	candidateWire struct {
		Type      string          `json:"type"`
		Target    string          `json:"target"`
		RoomID    string          `json:"room_id"`
		Candidate json.RawMessage `json:"candidate"`
	}
)

// DecodeInbound parses a client frame into its typed variant. Unknown types
// wrap ErrUnknownType; bad shapes and missing fields wrap ErrMalformedMessage.
func DecodeInbound(data []byte) (Inbound, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypeJoinRoom:
		var w joinRoomWire
		if err := decodeStrict(data, &w); err != nil {
			return nil, err
		}
		if w.RoomID == "" {
			return nil, missingField(env.Type, "room_id")
		}
		return JoinRoom{RoomID: w.RoomID, Username: w.Username}, nil

	case TypeLeaveRoom:
		var w leaveRoomWire
		if err := decodeStrict(data, &w); err != nil {
			return nil, err
		}
		if w.RoomID == "" {
			return nil, missingField(env.Type, "room_id")
		}
		return LeaveRoom{RoomID: w.RoomID}, nil

	case TypeChatMessage:
		var w chatMessageWire
		if err := decodeStrict(data, &w); err != nil {
			return nil, err
		}
		if w.RoomID == "" {
			return nil, missingField(env.Type, "room_id")
		}
		if w.Message == nil {
			return nil, missingField(env.Type, "message")
		}
		return ChatMessage{RoomID: w.RoomID, Text: *w.Message, Username: w.Username}, nil

	case TypeWebRTCOffer:
		var w offerWire
		if err := decodeStrict(data, &w); err != nil {
			return nil, err
		}
		return newRelay(env.Type, w.Target, w.RoomID, "offer", w.Offer)

	case TypeWebRTCAnswer:
		var w answerWire
		if err := decodeStrict(data, &w); err != nil {
			return nil, err
		}
		return newRelay(env.Type, w.Target, w.RoomID, "answer", w.Answer)

	case TypeWebRTCIceCandidate:
		var w candidateWire
		if err := decodeStrict(data, &w); err != nil {
			return nil, err
		}
		return newRelay(env.Type, w.Target, w.RoomID, "candidate", w.Candidate)

	case "":
		return nil, missingField("message", "type")

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func newRelay(kind, target, roomID, payloadField string, payload json.RawMessage) (Inbound, error) {
	if target == "" {
		return nil, missingField(kind, "target")
	}
	if roomID == "" {
		return nil, missingField(kind, "room_id")
	}
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, missingField(kind, payloadField)
	}
	return Relay{Kind: kind, Target: target, RoomID: roomID, Payload: payload}, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

func missingField(kind, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrMalformedMessage, kind, field)
}

// Outbound messages.

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type participantJoinedMessage struct {
	Type         string   `json:"type"`
	ClientID     string   `json:"client_id"`
	Username     string   `json:"username"`
	Participants []string `json:"participants"`
}

type participantLeftMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

type roomJoinedMessage struct {
	Type         string   `json:"type"`
	RoomID       string   `json:"room_id"`
	Participants []string `json:"participants"`
	Username     string   `json:"username"`
}

type roomReadyMessage struct {
	Type         string `json:"type"`
	RoomID       string `json:"room_id"`
	YouAreSender bool   `json:"you_are_sender"`
}

type chatBroadcastMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
}

// relayHeader is every relay field except the payload, which is spliced in
// by encodeRelay exactly as the sender wrote it.
type relayHeader struct {
	Type   string `json:"type"`
	From   string `json:"from"`
	RoomID string `json:"room_id"`
}

// payloadField names the key that carries a relay payload of the given kind.
func payloadField(kind string) string {
	switch kind {
	case TypeWebRTCOffer:
		return "offer"
	case TypeWebRTCAnswer:
		return "answer"
	default:
		return "candidate"
	}
}

// encodeRelay builds the frame forwarded to r.Target. The payload bytes are
// copied verbatim: no compaction, no HTML escaping.
func encodeRelay(r Relay, from string) ([]byte, error) {
	header, err := json.Marshal(relayHeader{Type: r.Kind, From: from, RoomID: r.RoomID})
	if err != nil {
		return nil, fmt.Errorf("encode relay header: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(header) + len(r.Payload) + 16)
	buf.Write(header[:len(header)-1])
	buf.WriteString(`,"`)
	buf.WriteString(payloadField(r.Kind))
	buf.WriteString(`":`)
	buf.Write(r.Payload)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
