// Package signaling implements the JSON control-message protocol spoken over
// the platform's chat WebSocket. The same socket carries chat frames and the
// call-signaling frames; the relay routes each message to the other member
// of the conversation using the routing fields.
package signaling

import "encoding/json"

// MessageType identifies the kind of message on the wire.
type MessageType string

// Call-signaling message types.
const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "ice-candidate"
	MsgTypeReject    MessageType = "reject"
	MsgTypeEnd       MessageType = "end"
)

// Chat frames multiplexed on the same socket.
const (
	MsgTypeChat  MessageType = "message"
	MsgTypePing  MessageType = "ping"
	MsgTypePong  MessageType = "pong"
	MsgTypeError MessageType = "error"
)

// Message is the JSON structure exchanged over the WebSocket.
//
// ConversationID and TargetUserID are opaque routing fields consumed by the
// relay; SenderID and SenderName are stamped by the relay on delivery, so the
// callee learns who is ringing from the offer itself. Candidate carries an
// ICE candidate descriptor verbatim — the relay never looks inside it.
type Message struct {
	Type           MessageType     `json:"type"`
	SDP            string          `json:"sdp,omitempty"`
	Candidate      json.RawMessage `json:"candidate,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	TargetUserID   string          `json:"target_user_id,omitempty"`
	SenderID       string          `json:"sender_id,omitempty"`
	SenderName     string          `json:"sender_name,omitempty"`
	IsVideo        bool            `json:"is_video,omitempty"`

	// Chat frames only.
	Body    string `json:"body,omitempty"`
	ErrText string `json:"message,omitempty"`
}

// IsSignal reports whether the message is part of the call-signaling
// vocabulary (as opposed to a chat frame).
func (m Message) IsSignal() bool {
	switch m.Type {
	case MsgTypeOffer, MsgTypeAnswer, MsgTypeCandidate, MsgTypeReject, MsgTypeEnd:
		return true
	}
	return false
}
