package network

import (
	"encoding/json"
	"errors"
)

// Message types.
const (
	MsgTypeState         = "STATE"
	MsgTypeError         = "ERROR"
	MsgTypeSync          = "SYNC"
	MsgTypePlayCharacter = "PLAY_CHARACTER"
	MsgTypePlaceTrap     = "PLACE_TRAP"
)

// Close codes sent when a connection is refused.
const (
	CloseUnauthenticated = 4001
	CloseForbidden       = 4003
	CloseNotFound        = 4004
)

// Protocol error codes carried by ERROR messages.
const (
	CodeInvalidJSON    = "INVALID_JSON"
	CodeInvalidPayload = "INVALID_PAYLOAD"
	CodeUnsupported    = "UNSUPPORTED"
	CodeInternal       = "INTERNAL"
)

var (
	ErrInvalidJSON    = errors.New("invalid JSON")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Inbound is any client message. Absent ids decode as 0 and an absent
// position as -1, both of which the rules reject.
type Inbound struct {
	Type   string `json:"type"`
	CardID int    `json:"card_id"`
	TrapID int    `json:"trap_id"`
	Pos    int    `json:"pos"`
}

func DecodeInbound(data []byte) (*Inbound, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	msg := &Inbound{Pos: -1}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, ErrInvalidPayload
	}
	return msg, nil
}

type StateMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func NewState(payload interface{}) StateMessage {
	return StateMessage{Type: MsgTypeState, Payload: payload}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func NewError(code, message string) ErrorMessage {
	return ErrorMessage{Type: MsgTypeError, Message: message, Code: code}
}

// Requests as clients encode them.

type SyncRequest struct {
	Type string `json:"type"`
}

type PlayCharacterRequest struct {
	Type   string `json:"type"`
	CardID int    `json:"card_id"`
	Pos    int    `json:"pos"`
}

type PlaceTrapRequest struct {
	Type   string `json:"type"`
	TrapID int    `json:"trap_id"`
	Pos    int    `json:"pos"`
}
