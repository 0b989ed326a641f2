package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errMalformedMessage = errors.New("malformed message")

// Outbound notifications are tagged in camelCase, inbound ones in PascalCase
// with snake_case payload fields. Existing clients depend on both.
type notification struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type notifications []notification

func (n notifications) encode() ([]byte, error) {
	return json.Marshal(n)
}

type playerNumberPayload struct {
	PlayerNumber int `json:"playerNumber"`
}

type setComponentsPayload struct {
	Components []component `json:"components"`
}

type setHandsPayload struct {
	Hands []hand `json:"hands"`
}

type connectPlayerPayload struct {
	PlayerNumber int  `json:"playerNumber"`
	Hand         hand `json:"hand"`
}

type disconnectPlayerPayload struct {
	PlayerNumber int `json:"playerNumber"`
}

type updateComponentPayload struct {
	ComponentID int       `json:"componentId"`
	Component   component `json:"component"`
}

type moveHandPayload struct {
	PlayerNumber int     `json:"playerNumber"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

func playerNumber(n int) notification {
	return notification{"playerNumber", playerNumberPayload{n}}
}

func setComponents(components []component) notification {
	return notification{"setComponents", setComponentsPayload{components}}
}

func setHands(hands []hand) notification {
	return notification{"setHands", setHandsPayload{hands}}
}

func connectPlayer(n int, h hand) notification {
	return notification{"connectPlayer", connectPlayerPayload{n, h}}
}

func disconnectPlayer(n int) notification {
	return notification{"disconnectPlayer", disconnectPlayerPayload{n}}
}

func updateComponent(c component) notification {
	return notification{"updateComponent", updateComponentPayload{c.ID, c}}
}

func moveHand(n int, x, y float64) notification {
	return notification{"moveHand", moveHandPayload{n, x, y}}
}

// Inbound message kinds.
const (
	SELECT = iota
	UNSELECT
	OPEN
	CLOSE
	INCREMENT
	DECREMENT
	MOVE
	MOVE_HAND
	IGNORED
)

var inboundKinds = map[string]int{
	"SelectComponent":    SELECT,
	"UnselectComponent":  UNSELECT,
	"OpenComponent":      OPEN,
	"CloseComponent":     CLOSE,
	"IncrementComponent": INCREMENT,
	"DecrementComponent": DECREMENT,
	"MoveComponent":      MOVE,
	"MoveOwnHand":        MOVE_HAND,

	// Valid tags the hub only ever sends.
	"PlayerNumber":     IGNORED,
	"SetComponents":    IGNORED,
	"SetHands":         IGNORED,
	"ConnectPlayer":    IGNORED,
	"DisconnectPlayer": IGNORED,
	"UpdateComponent":  IGNORED,
	"MoveHand":         IGNORED,
}

type clientMessage struct {
	kind        int
	tag         string
	componentID int
	x, y        float64
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type inboundPayload struct {
	ComponentID *int     `json:"component_id"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
}

func decodeClientMessage(text []byte) (clientMessage, error) {
	var env envelope
	if err := json.Unmarshal(text, &env); err != nil {
		return clientMessage{}, fmt.Errorf("%w: %v", errMalformedMessage, err)
	}
	kind, ok := inboundKinds[env.Type]
	if !ok {
		return clientMessage{}, fmt.Errorf("%w: unknown type %q", errMalformedMessage, env.Type)
	}
	msg := clientMessage{kind: kind, tag: env.Type}
	if kind == IGNORED {
		return msg, nil
	}

	var p inboundPayload
	if len(env.Payload) == 0 {
		return clientMessage{}, fmt.Errorf("%w: %s without payload", errMalformedMessage, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return clientMessage{}, fmt.Errorf("%w: %s payload: %v", errMalformedMessage, env.Type, err)
	}

	if kind != MOVE_HAND {
		if p.ComponentID == nil {
			return clientMessage{}, fmt.Errorf("%w: %s missing component_id", errMalformedMessage, env.Type)
		}
		msg.componentID = *p.ComponentID
	}
	if kind == MOVE || kind == MOVE_HAND {
		if p.X == nil || p.Y == nil {
			return clientMessage{}, fmt.Errorf("%w: %s missing x or y", errMalformedMessage, env.Type)
		}
		msg.x, msg.y = *p.X, *p.Y
	}
	return msg, nil
}
