// Package protocol defines the request, response and update envelopes
// exchanged between client and server, and the ordered field codec they are
// encoded with.
//
// A request is [action, fields...]. The server answers every request it
// understands with [response, action, status, payload...] and pushes
// [update, kind, fields...] to recipients of fan-out actions.
package protocol

import (
	"errors"
	"fmt"
)

// Action names a request and the response or update it produces.
type Action string

const (
	ActionRegister    Action = "register"
	ActionLogin       Action = "login"
	ActionLogout      Action = "logout"
	ActionAddContact  Action = "add_contact"
	ActionWhisper     Action = "whisper"
	ActionCreateGroup Action = "create_group"
	ActionJoinGroup   Action = "join_group"
	ActionMsgGroup    Action = "msg_group"
	ActionVoiceMsg    Action = "voice_msg"
	ActionCallData    Action = "call_data"
)

// Envelope tags for server-originated messages.
const (
	TagResponse = "response"
	TagUpdate   = "update"
)

var actions = map[Action]bool{
	ActionRegister:    true,
	ActionLogin:       true,
	ActionLogout:      true,
	ActionAddContact:  true,
	ActionWhisper:     true,
	ActionCreateGroup: true,
	ActionJoinGroup:   true,
	ActionMsgGroup:    true,
	ActionVoiceMsg:    true,
	ActionCallData:    true,
}

// Known reports whether a is a recognised action.
func (a Action) Known() bool {
	return actions[a]
}

var (
	// ErrMalformed wraps any field-level decode failure of a known message.
	ErrMalformed = errors.New("protocol: malformed message")
	// ErrUnknownAction is returned for actions or update kinds this package
	// does not define.
	ErrUnknownAction = errors.New("protocol: unknown action")
	// ErrUnknownTag is returned for server messages that are neither a
	// response nor an update.
	ErrUnknownTag = errors.New("protocol: unknown envelope tag")
)

func malformed(a Action, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformed, a, err)
}
