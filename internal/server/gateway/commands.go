package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophchat/internal/server/models"
	"github.com/dmitrijs2005/gophchat/internal/server/realtime"
)

var (
	errMalformedFrame = errors.New("malformed frame")
	errUnknownEvent   = errors.New("unknown event")
)

// command is a decoded inbound frame.
type command interface {
	event() string
}

type authenticateCommand struct {
	Token string `json:"token"`
}

type joinRoomCommand struct {
	ConversationID int64 `json:"conversationId"`
}

type leaveRoomCommand struct {
	ConversationID int64 `json:"conversationId"`
}

type sendMessageCommand struct {
	ConversationID int64              `json:"conversationId"`
	Content        string             `json:"content"`
	Type           models.MessageType `json:"type"`
	ClientID       string             `json:"clientId,omitempty"`
}

type recallMessageCommand struct {
	MessageID int64 `json:"messageId"`
}

type markReadCommand struct {
	ConversationID int64 `json:"conversationId"`
	UptoMessageID  int64 `json:"uptoMessageId"`
}

type syncMessagesCommand struct {
	ConversationID int64 `json:"conversationId"`
	SinceSequence  int64 `json:"sinceSequence"`
	Limit          int   `json:"limit,omitempty"`
}

func (authenticateCommand) event() string  { return realtime.EventAuthenticate }
func (joinRoomCommand) event() string      { return realtime.EventJoinRoom }
func (leaveRoomCommand) event() string     { return realtime.EventLeaveRoom }
func (sendMessageCommand) event() string   { return realtime.EventSendMessage }
func (recallMessageCommand) event() string { return realtime.EventRecallMessage }
func (markReadCommand) event() string      { return realtime.EventMarkRead }
func (syncMessagesCommand) event() string  { return realtime.EventSyncMessages }

// decodeCommand turns raw frame bytes into a typed command. The event name
// is returned even when the payload is malformed so errors can refer to it.
func decodeCommand(raw []byte) (command, string, error) {
	var f realtime.Frame
	if err := json.Unmarshal(raw, &f); err != nil || f.Event == "" {
		return nil, "", errMalformedFrame
	}

	var (
		cmd command
		err error
	)
	switch f.Event {
	case realtime.EventAuthenticate:
		cmd, err = decodeAuthenticate(f.Data)
	case realtime.EventJoinRoom:
		cmd, err = decodeInto[joinRoomCommand](f.Data)
	case realtime.EventLeaveRoom:
		cmd, err = decodeInto[leaveRoomCommand](f.Data)
	case realtime.EventSendMessage:
		cmd, err = decodeInto[sendMessageCommand](f.Data)
	case realtime.EventRecallMessage:
		cmd, err = decodeInto[recallMessageCommand](f.Data)
	case realtime.EventMarkRead:
		cmd, err = decodeInto[markReadCommand](f.Data)
	case realtime.EventSyncMessages:
		cmd, err = decodeInto[syncMessagesCommand](f.Data)
	default:
		return nil, f.Event, fmt.Errorf("%w: %q", errUnknownEvent, f.Event)
	}
	if err != nil {
		return nil, f.Event, errMalformedFrame
	}
	return cmd, f.Event, nil
}

func decodeInto[T command](data json.RawMessage) (command, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeAuthenticate accepts either {"token": "..."} or a bare JSON string.
// A "Bearer " prefix is left for the verifier to strip.
func decodeAuthenticate(data json.RawMessage) (command, error) {
	var token string
	if err := json.Unmarshal(data, &token); err == nil {
		return authenticateCommand{Token: strings.TrimSpace(token)}, nil
	}
	var c authenticateCommand
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.Token = strings.TrimSpace(c.Token)
	return c, nil
}
