// Package coordinator runs the vote handshake that unblocks a gated page.
//
// A requester asks for a page to be opened; the coordinator opens it in an
// auxiliary tab, asks the tab to vote, then asks it to close. The tab
// denies the close while the vote control is still on the page, in which
// case the coordinator waits and repeats. Only after the tab acknowledges
// the close is the tab removed and the original request acknowledged.
package coordinator

import (
	"encoding/json"
	"fmt"
)

// MsgType distinguishes requests from responses.
type MsgType string

const (
	TypeRequest  MsgType = "request"
	TypeResponse MsgType = "response"
)

// Op is the operation carried by a message.
type Op string

const (
	OpOpen  Op = "open"
	OpVote  Op = "vote"
	OpClose Op = "close"
	OpAck   Op = "ack"
	OpDeny  Op = "deny"
)

// Message is the wire shape shared by requester, coordinator and tab.
// A response carries the ID of the request it answers.
type Message struct {
	ID   int     `json:"id"`
	Type MsgType `json:"type"`
	Op   Op      `json:"op"`
	URL  string  `json:"url,omitempty"`
}

// Reply builds the response to m.
func (m Message) Reply(op Op) Message {
	return Message{ID: m.ID, Type: TypeResponse, Op: op}
}

// String returns a compact form for logs.
func (m Message) String() string {
	if m.URL != "" {
		return fmt.Sprintf("%s(op:%s)#%d %s", m.Type, m.Op, m.ID, m.URL)
	}
	return fmt.Sprintf("%s(op:%s)#%d", m.Type, m.Op, m.ID)
}

// Encode marshals m to JSON.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage unmarshals a JSON message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}
