package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
)

var errProbeFailed = errors.New("probe failed")

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run a two-client signaling round trip through the relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		p := &probe{api: newAPIClient(serverURL), timeout: timeout}
		defer p.close()

		printTitle("Probing " + serverURL)
		passed := p.run()
		printSummary(passed, p.steps)
		if !passed {
			return errProbeFailed
		}
		return nil
	},
}

func init() {
	probeCmd.Flags().Duration("timeout", 5*time.Second, "per-message wait")
}

// wsPeer is one probe participant on the relay.
type wsPeer struct {
	id   string
	conn *websocket.Conn
}

type probe struct {
	api     *apiClient
	timeout time.Duration
	steps   int

	roomID string
	host   *wsPeer
	guest  *wsPeer

	hostPC  *webrtc.PeerConnection
	guestPC *webrtc.PeerConnection
}

func (p *probe) run() bool {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"create room", p.createRoom},
		{"connect clients", p.connect},
		{"join room", p.join},
		{"relay offer", p.relayOffer},
		{"relay answer", p.relayAnswer},
		{"relay ICE candidate", p.relayCandidate},
		{"broadcast chat", p.chat},
		{"leave room", p.leave},
	}

	for _, s := range steps {
		start := time.Now()
		err := s.fn()
		printStep(err == nil, s.name, time.Since(start))
		if err != nil {
			printError(err.Error())
			return false
		}
		p.steps++
	}
	return true
}

func (p *probe) createRoom() error {
	room, err := p.api.CreateRoom(2)
	if err != nil {
		return err
	}
	if room.MaxParticipants != 2 {
		return fmt.Errorf("room %s has capacity %d, want 2", room.ID, room.MaxParticipants)
	}
	p.roomID = room.ID
	return nil
}

func (p *probe) connect() error {
	var err error
	if p.host, err = p.dial(); err != nil {
		return err
	}
	p.guest, err = p.dial()
	return err
}

func (p *probe) dial() (*wsPeer, error) {
	id := uuid.NewString()
	u, err := p.api.wsURL(id)
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return &wsPeer{id: id, conn: conn}, nil
}

func (p *probe) join() error {
	if err := p.send(p.host, map[string]any{"type": "join_room", "room_id": p.roomID, "username": "probe-host"}); err != nil {
		return err
	}
	if _, err := p.expect(p.host, "room_joined"); err != nil {
		return err
	}
	ready, err := p.expect(p.host, "room_ready")
	if err != nil {
		return err
	}
	if ready["you_are_sender"] != true {
		return fmt.Errorf("first joiner not marked as sender: %v", ready)
	}

	if err := p.send(p.guest, map[string]any{"type": "join_room", "room_id": p.roomID, "username": "probe-guest"}); err != nil {
		return err
	}
	joined, err := p.expect(p.guest, "room_joined")
	if err != nil {
		return err
	}
	if n := len(joined["participants"].([]any)); n != 2 {
		return fmt.Errorf("room_joined lists %d participants, want 2", n)
	}
	notice, err := p.expect(p.host, "participant_joined")
	if err != nil {
		return err
	}
	if notice["client_id"] != p.guest.id {
		return fmt.Errorf("participant_joined for %v, want %s", notice["client_id"], p.guest.id)
	}
	return nil
}

func (p *probe) relayOffer() error {
	var err error
	if p.hostPC, err = webrtc.NewPeerConnection(webrtc.Configuration{}); err != nil {
		return err
	}
	if _, err := p.hostPC.CreateDataChannel("probe", nil); err != nil {
		return err
	}
	offer, err := p.hostPC.CreateOffer(nil)
	if err != nil {
		return err
	}
	gathered := webrtc.GatheringCompletePromise(p.hostPC)
	if err := p.hostPC.SetLocalDescription(offer); err != nil {
		return err
	}
	<-gathered

	payload, err := json.Marshal(p.hostPC.LocalDescription())
	if err != nil {
		return err
	}
	msg, err := p.relay(p.host, p.guest, "webrtc_offer", "offer", payload)
	if err != nil {
		return err
	}

	var remote webrtc.SessionDescription
	if err := json.Unmarshal(msg["offer"], &remote); err != nil {
		return fmt.Errorf("decode relayed offer: %w", err)
	}
	if p.guestPC, err = webrtc.NewPeerConnection(webrtc.Configuration{}); err != nil {
		return err
	}
	return p.guestPC.SetRemoteDescription(remote)
}

func (p *probe) relayAnswer() error {
	answer, err := p.guestPC.CreateAnswer(nil)
	if err != nil {
		return err
	}
	gathered := webrtc.GatheringCompletePromise(p.guestPC)
	if err := p.guestPC.SetLocalDescription(answer); err != nil {
		return err
	}
	<-gathered

	payload, err := json.Marshal(p.guestPC.LocalDescription())
	if err != nil {
		return err
	}
	msg, err := p.relay(p.guest, p.host, "webrtc_answer", "answer", payload)
	if err != nil {
		return err
	}

	var remote webrtc.SessionDescription
	if err := json.Unmarshal(msg["answer"], &remote); err != nil {
		return fmt.Errorf("decode relayed answer: %w", err)
	}
	return p.hostPC.SetRemoteDescription(remote)
}

func (p *probe) relayCandidate() error {
	// Candidates were gathered into the SDP already; any well-formed host
	// candidate exercises the relay path.
	mid := "0"
	candidate := webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 9 typ host",
		SDPMid:    &mid,
	}
	payload, err := json.Marshal(candidate)
	if err != nil {
		return err
	}
	msg, err := p.relay(p.host, p.guest, "webrtc_ice_candidate", "candidate", payload)
	if err != nil {
		return err
	}

	var got webrtc.ICECandidateInit
	if err := json.Unmarshal(msg["candidate"], &got); err != nil {
		return fmt.Errorf("decode relayed candidate: %w", err)
	}
	return p.guestPC.AddICECandidate(got)
}

func (p *probe) chat() error {
	const text = "probe says hi"
	if err := p.send(p.guest, map[string]any{"type": "chat_message", "room_id": p.roomID, "message": text}); err != nil {
		return err
	}
	for _, peer := range []*wsPeer{p.host, p.guest} {
		msg, err := p.expect(peer, "chat_message")
		if err != nil {
			return err
		}
		if msg["message"] != text || msg["from"] != p.guest.id {
			return fmt.Errorf("unexpected chat at %s: %v", peer.id, msg)
		}
	}
	return nil
}

func (p *probe) leave() error {
	if err := p.send(p.guest, map[string]any{"type": "leave_room", "room_id": p.roomID}); err != nil {
		return err
	}
	msg, err := p.expect(p.host, "participant_left")
	if err != nil {
		return err
	}
	if msg["client_id"] != p.guest.id {
		return fmt.Errorf("participant_left for %v, want %s", msg["client_id"], p.guest.id)
	}
	return nil
}

// relay sends a signaling payload from one peer and checks that the other
// receives it unchanged with the right sender.
func (p *probe) relay(from, to *wsPeer, kind, field string, payload []byte) (map[string]json.RawMessage, error) {
	frame := map[string]any{
		"type":    kind,
		"target":  to.id,
		"room_id": p.roomID,
		field:     json.RawMessage(payload),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}
	var sent map[string]json.RawMessage
	if err := json.Unmarshal(data, &sent); err != nil {
		return nil, err
	}
	if err := p.write(from, data); err != nil {
		return nil, err
	}

	raw, err := p.expectRaw(to, kind)
	if err != nil {
		return nil, err
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}

	var sender string
	_ = json.Unmarshal(msg["from"], &sender)
	if sender != from.id {
		return nil, fmt.Errorf("%s arrived from %q, want %s", kind, sender, from.id)
	}

	if !bytes.Equal(msg[field], sent[field]) {
		return nil, fmt.Errorf("%s payload changed in transit", kind)
	}
	return msg, nil
}

func (p *probe) send(peer *wsPeer, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.write(peer, data)
}

func (p *probe) write(peer *wsPeer, data []byte) error {
	_ = peer.conn.SetWriteDeadline(time.Now().Add(p.timeout))
	return peer.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *probe) expect(peer *wsPeer, msgType string) (map[string]any, error) {
	raw, err := p.expectRaw(peer, msgType)
	if err != nil {
		return nil, err
	}
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// expectRaw reads frames for peer until one of msgType arrives. A relay
// error frame fails the wait.
func (p *probe) expectRaw(peer *wsPeer, msgType string) ([]byte, error) {
	deadline := time.Now().Add(p.timeout)
	for {
		_ = peer.conn.SetReadDeadline(deadline)
		_, data, err := peer.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", msgType, err)
		}

		var env struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("invalid frame from relay: %w", err)
		}
		switch env.Type {
		case msgType:
			return data, nil
		case "error":
			return nil, fmt.Errorf("relay error while waiting for %s: %s", msgType, env.Message)
		}
	}
}

func (p *probe) close() {
	for _, peer := range []*wsPeer{p.host, p.guest} {
		if peer != nil {
			peer.conn.Close()
		}
	}
	for _, pc := range []*webrtc.PeerConnection{p.hostPC, p.guestPC} {
		if pc != nil {
			_ = pc.Close()
		}
	}
}
