// Package server runs the session surface of the tool: it owns one worker
// per live client session, forwards client activity to the application
// engine, and delivers the engine's update actions back over plain
// request/response or a streaming socket.
package server

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Action is one client-originated action: a typed key plus an optional
// payload produced by the runtime.
type Action struct {
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// UpdateStrategy tags an update action.
type UpdateStrategy string

const (
	StrategyFullUpdate      UpdateStrategy = "FullUpdate"
	StrategyComponentUpdate UpdateStrategy = "ComponentUpdate"
	StrategyAddNotice       UpdateStrategy = "AddNotice"
)

// UpdateAction is one engine-produced update: replace the window, patch one
// component, or surface a notice.
type UpdateAction struct {
	Strategy UpdateStrategy  `json:"strategy"`
	Data     json.RawMessage `json:"data"`
}

// NoticeStyle selects how a notice is presented.
type NoticeStyle string

const (
	NoticeError   NoticeStyle = "Error"
	NoticeSuccess NoticeStyle = "Success"
)

// Notice is a transient user-facing message.
type Notice struct {
	Message string      `json:"message"`
	Style   NoticeStyle `json:"style"`
}

// NoticeUpdate builds an AddNotice action.
func NoticeUpdate(message string, style NoticeStyle) UpdateAction {
	data, _ := json.Marshal(Notice{Message: message, Style: style})
	return UpdateAction{Strategy: StrategyAddNotice, Data: data}
}

// Window is the full client window state: a title, an optional theme, and
// the root of the component tree.
type Window struct {
	Title         string          `json:"title"`
	Theme         *Theme          `json:"theme"`
	RootComponent json.RawMessage `json:"rootComponent"`
}

// ColorDefinition is one rgb color.
type ColorDefinition struct {
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

// ColorPalette names the semantic colors of one appearance.
type ColorPalette struct {
	Base           ColorDefinition `json:"base"`
	Fore           ColorDefinition `json:"fore"`
	DecorationFore ColorDefinition `json:"decorationFore"`
	Primary        ColorDefinition `json:"primary"`
	Secondary      ColorDefinition `json:"secondary"`
	Danger         ColorDefinition `json:"danger"`
	Warn           ColorDefinition `json:"warn"`
	Success        ColorDefinition `json:"success"`
	Notice         ColorDefinition `json:"notice"`
}

// Theme is the client's presentation settings.
type Theme struct {
	RoundBase       bool            `json:"roundBase"`
	WindowScrolling bool            `json:"windowScrolling"`
	SelectionMode   string          `json:"selectionMode"`
	LightPalette    ColorPalette    `json:"lightPalette"`
	DarkPalette     ColorPalette    `json:"darkPalette"`
	DefaultFont     *string         `json:"defaultFont"`
	FancyFont       *string         `json:"fancyFont"`
}

// SocketMessageKind tags a streaming frame.
type SocketMessageKind string

const (
	// Incoming kinds.
	SocketWatch            SocketMessageKind = "watch"
	SocketUnwatch          SocketMessageKind = "unwatch"
	SocketPerformOperation SocketMessageKind = "perform_operation"

	// Outgoing kinds.
	SocketInit         SocketMessageKind = "init"
	SocketRemoveObject SocketMessageKind = "remove_object"
	SocketSetObject    SocketMessageKind = "set_object"
	SocketSetTheme     SocketMessageKind = "set_theme"
	SocketAcknowledge  SocketMessageKind = "acknowledge"
)

// IncomingSocketMessage is one client frame: {kind, def}. The request id is
// chosen by the client and echoed in the matching acknowledge.
type IncomingSocketMessage struct {
	Kind SocketMessageKind   `json:"kind"`
	Def  IncomingSocketBody  `json:"def"`
}

// IncomingSocketBody carries the union of incoming frame fields.
type IncomingSocketBody struct {
	RequestID uuid.UUID `json:"request_id"`
	ID        string    `json:"id,omitempty"`
	ObjectID  string    `json:"object_id,omitempty"`
	Key       string    `json:"key,omitempty"`
}

// OutgoingSocketMessage is one server frame: {kind, def}.
type OutgoingSocketMessage struct {
	Kind SocketMessageKind  `json:"kind"`
	Def  OutgoingSocketBody `json:"def"`
}

// OutgoingSocketBody carries the union of outgoing frame fields.
type OutgoingSocketBody struct {
	Theme   *Theme                     `json:"theme,omitempty"`
	Objects map[string]json.RawMessage `json:"objects,omitempty"`
	ID      string                     `json:"id,omitempty"`
	Object  json.RawMessage            `json:"object,omitempty"`

	RequestID         *uuid.UUID `json:"request_id,omitempty"`
	Error             string     `json:"error,omitempty"`
	RetryAfterSeconds uint32     `json:"retry_after_seconds,omitempty"`
}

// Acknowledge builds the frame that closes out one client request.
func Acknowledge(requestID *uuid.UUID, errorText string, retryAfterSeconds uint32) OutgoingSocketMessage {
	return OutgoingSocketMessage{
		Kind: SocketAcknowledge,
		Def: OutgoingSocketBody{
			RequestID:         requestID,
			Error:             errorText,
			RetryAfterSeconds: retryAfterSeconds,
		},
	}
}

// translateUpdate maps one engine update action onto the streaming
// vocabulary. Full updates re-init the root object; component updates set
// the targeted object; notices become their own object so the client can
// surface them.
func translateUpdate(update UpdateAction) (OutgoingSocketMessage, error) {
	switch update.Strategy {
	case StrategyFullUpdate:
		var window Window
		if err := json.Unmarshal(update.Data, &window); err != nil {
			return OutgoingSocketMessage{}, fmt.Errorf("malformed full update payload: %w", err)
		}

		return OutgoingSocketMessage{
			Kind: SocketInit,
			Def: OutgoingSocketBody{
				Theme:   window.Theme,
				Objects: map[string]json.RawMessage{"root": update.Data},
			},
		}, nil

	case StrategyComponentUpdate:
		var pair [2]json.RawMessage
		if err := json.Unmarshal(update.Data, &pair); err != nil {
			return OutgoingSocketMessage{}, fmt.Errorf("malformed component update payload: %w", err)
		}

		var target json.Number
		if err := json.Unmarshal(pair[0], &target); err != nil {
			return OutgoingSocketMessage{}, fmt.Errorf("malformed component update target: %w", err)
		}

		return OutgoingSocketMessage{
			Kind: SocketSetObject,
			Def:  OutgoingSocketBody{ID: target.String(), Object: pair[1]},
		}, nil

	case StrategyAddNotice:
		return OutgoingSocketMessage{
			Kind: SocketSetObject,
			Def:  OutgoingSocketBody{ID: "notice", Object: update.Data},
		}, nil
	}

	return OutgoingSocketMessage{}, fmt.Errorf("unknown update strategy %q", update.Strategy)
}

// TranslateUpdates maps a full engine response onto streaming frames,
// dropping any malformed entries rather than stalling the stream.
func TranslateUpdates(updates []UpdateAction) []OutgoingSocketMessage {
	messages := make([]OutgoingSocketMessage, 0, len(updates))
	for _, update := range updates {
		message, err := translateUpdate(update)
		if err != nil {
			continue
		}
		messages = append(messages, message)
	}
	return messages
}
