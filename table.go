package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	errInvalidComponentID = errors.New("invalid component id")
	errNotOwner           = errors.New("not the component owner")
	errUnknownPlayer      = errors.New("unknown player")
)

type role int

const (
	CURSOR role = iota
	BUILDER
	TEXT
	COUNTER
	IMAGE
)

var roleNames = map[role]string{
	CURSOR:  "cursor",
	BUILDER: "builder",
	TEXT:    "text",
	COUNTER: "counter",
	IMAGE:   "image",
}

func (r role) String() string {
	return roleNames[r]
}

func (r role) MarshalText() ([]byte, error) {
	name, ok := roleNames[r]
	if !ok {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
	return []byte(name), nil
}

// UnmarshalText accepts both "counter" and "Counter".
func (r *role) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for k, v := range roleNames {
		if v == name {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", string(text))
}

// component ids are assigned from position in the table, never read from
// config.
type component struct {
	ID            int     `json:"id" yaml:"-"`
	Role          role    `json:"role" yaml:"role"`
	Selectability bool    `json:"selectability" yaml:"selectability"`
	IsOpened      bool    `json:"isOpened" yaml:"is_opened"`
	IsSelected    bool    `json:"isSelected" yaml:"is_selected"`
	Owner         *int    `json:"user" yaml:"user"`
	HideOthers    bool    `json:"hideOthers" yaml:"hide_others"`
	Text          string  `json:"text" yaml:"text"`
	Number        int64   `json:"number" yaml:"number"`
	Image         *string `json:"image" yaml:"image"`
	X             float64 `json:"x" yaml:"x"`
	Y             float64 `json:"y" yaml:"y"`
	W             float64 `json:"w" yaml:"w"`
	H             float64 `json:"h" yaml:"h"`
}

type hand struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// table is the canonical table state. It is not safe for concurrent use;
// the hub goroutine is its only caller.
type table struct {
	components []component
	hands      map[uuid.UUID]*hand
}

func newTable(seed []component) *table {
	components := make([]component, len(seed))
	copy(components, seed)
	for i := range components {
		components[i].ID = i
	}
	return &table{
		components: components,
		hands:      make(map[uuid.UUID]*hand),
	}
}

func (t *table) get(id int) (*component, error) {
	if id < 0 || id >= len(t.components) {
		return nil, fmt.Errorf("component %d: %w", id, errInvalidComponentID)
	}
	return &t.components[id], nil
}

func (t *table) update(id int, f func(*component)) (component, error) {
	c, err := t.get(id)
	if err != nil {
		return component{}, err
	}
	f(c)
	return *c, nil
}

func (t *table) selectComponent(id int) (component, error) {
	return t.update(id, func(c *component) { c.IsSelected = true })
}

func (t *table) unselectComponent(id int) (component, error) {
	return t.update(id, func(c *component) { c.IsSelected = false })
}

func (t *table) openComponent(id int) (component, error) {
	return t.update(id, func(c *component) { c.IsOpened = true })
}

func (t *table) closeComponent(id int) (component, error) {
	return t.update(id, func(c *component) { c.IsOpened = false })
}

func (t *table) incrementComponent(id int) (component, error) {
	return t.update(id, func(c *component) { c.Number++ })
}

func (t *table) decrementComponent(id int) (component, error) {
	return t.update(id, func(c *component) { c.Number-- })
}

// moveComponent is the only ownership-gated mutation.
func (t *table) moveComponent(id int, x, y float64, player int) (component, error) {
	c, err := t.get(id)
	if err != nil {
		return component{}, err
	}
	if c.Owner != nil && *c.Owner != player {
		return component{}, fmt.Errorf("component %d owned by player %d, moved by player %d: %w",
			id, *c.Owner, player, errNotOwner)
	}
	c.X, c.Y = x, y
	return *c, nil
}

func (t *table) addHand(id uuid.UUID, player int) hand {
	h := &hand{ID: player}
	t.hands[id] = h
	return *h
}

func (t *table) removeHand(id uuid.UUID) {
	delete(t.hands, id)
}

func (t *table) moveHand(id uuid.UUID, x, y float64) (hand, error) {
	h, ok := t.hands[id]
	if !ok {
		return hand{}, fmt.Errorf("hand %s: %w", id, errUnknownPlayer)
	}
	h.X, h.Y = x, y
	return *h, nil
}

// renumberHands sets each hand's id to the player number implied by order.
func (t *table) renumberHands(order []uuid.UUID) {
	for i, id := range order {
		if h, ok := t.hands[id]; ok {
			h.ID = i + 1
		}
	}
}

func (t *table) snapshotComponents() []component {
	components := make([]component, len(t.components))
	copy(components, t.components)
	return components
}

// snapshotHands lists hands in player order.
func (t *table) snapshotHands(order []uuid.UUID) []hand {
	hands := make([]hand, 0, len(order))
	for _, id := range order {
		if h, ok := t.hands[id]; ok {
			hands = append(hands, *h)
		}
	}
	return hands
}
