package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

type EventKind string

const (
	EventComment  EventKind = "comment"
	EventActivity EventKind = "activity"
)

func (k EventKind) Valid() bool {
	return k == EventComment || k == EventActivity
}

type EventAction string

const (
	EventCreated EventAction = "created"
	EventUpdated EventAction = "updated"
	EventDeleted EventAction = "deleted"
)

func (a EventAction) Valid() bool {
	return a == EventCreated || a == EventUpdated || a == EventDeleted
}

// ErrMalformedEvent is returned for payloads that do not decode into a
// complete, known event.
var ErrMalformedEvent = errors.New("domain: malformed event")

// Event is a live card update. UserID is always set by the server.
type Event struct {
	Kind   EventKind       `json:"kind"`
	Action EventAction     `json:"action"`
	Data   json.RawMessage `json:"data"`
	UserID int64           `json:"user_id"`
}

// NewEvent builds a server-originated event for the given sender.
func NewEvent(kind EventKind, action EventAction, data any, userID int64) (Event, error) {
	if !kind.Valid() || !action.Valid() {
		return Event{}, fmt.Errorf("domain.NewEvent(%s/%s): %w", kind, action, ErrMalformedEvent)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("domain.NewEvent: marshal data: %w", err)
	}
	if !isObject(raw) {
		return Event{}, fmt.Errorf("domain.NewEvent: data must be an object: %w", ErrMalformedEvent)
	}

	return Event{Kind: kind, Action: action, Data: raw, UserID: userID}, nil
}

// ParseEvent decodes a client frame. The legacy "type" key is accepted in
// place of "kind". Any user_id in the payload is ignored. Frames that are
// not valid UTF-8 are rejected since peers receive them as text.
func ParseEvent(raw []byte) (Event, error) {
	if !utf8.Valid(raw) {
		return Event{}, fmt.Errorf("domain.ParseEvent: invalid utf-8: %w", ErrMalformedEvent)
	}

	var in struct {
		Kind   EventKind       `json:"kind"`
		Type   EventKind       `json:"type"`
		Action EventAction     `json:"action"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return Event{}, fmt.Errorf("domain.ParseEvent: %w: %w", ErrMalformedEvent, err)
	}

	kind := in.Kind
	if kind == "" {
		kind = in.Type
	}

	switch {
	case !kind.Valid():
		return Event{}, fmt.Errorf("domain.ParseEvent: kind %q: %w", kind, ErrMalformedEvent)
	case !in.Action.Valid():
		return Event{}, fmt.Errorf("domain.ParseEvent: action %q: %w", in.Action, ErrMalformedEvent)
	case !isObject(in.Data):
		return Event{}, fmt.Errorf("domain.ParseEvent: data: %w", ErrMalformedEvent)
	}

	return Event{Kind: kind, Action: in.Action, Data: in.Data}, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
