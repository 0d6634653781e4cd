// Package hub fans committed record changes out to live subscriptions.
//
// Each websocket connection owns a Session. A subscription resolves to cursors
// through the rpc registry; the hub sends the records those cursors select
// once, then pushes every later change to the same records until the client
// unsubscribes or disconnects.
package hub

import (
	"encoding/json"

	"github.com/jason-s-yu/shootingstars/internal/rpc"
)

// Message types exchanged on the sync channel.
const (
	MsgConnect = "connect"
	MsgMethod  = "method"
	MsgSub     = "sub"
	MsgUnsub   = "unsub"
	MsgPing    = "ping"

	MsgConnected = "connected"
	MsgResult    = "result"
	MsgAdded     = "added"
	MsgChanged   = "changed"
	MsgRemoved   = "removed"
	MsgReady     = "ready"
	MsgNoSub     = "nosub"
	MsgPong      = "pong"
	MsgError     = "error"
)

// Message is one frame on the sync channel, in either direction. Fields that do
// not apply to a message type are omitted.
type Message struct {
	Msg        string            `json:"msg"`
	ID         string            `json:"id,omitempty"`
	Session    string            `json:"session,omitempty"`
	Method     string            `json:"method,omitempty"`
	Name       string            `json:"name,omitempty"`
	Params     []json.RawMessage `json:"params,omitempty"`
	Collection string            `json:"collection,omitempty"`
	Fields     map[string]any    `json:"fields,omitempty"`
	Cleared    []string          `json:"cleared,omitempty"`
	Subs       []string          `json:"subs,omitempty"`
	Result     any               `json:"result,omitempty"`
	Error      *rpc.Error        `json:"error,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}
