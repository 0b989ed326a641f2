package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Retries when a generated id collides with a live one.
const maxIDAttempts = 8

var (
	errNotRegistered     = errors.New("identity not registered")
	errIdentityExhausted = errors.New("could not generate a unique identity")
	errDeliveryFailure   = errors.New("delivery failure")
)

// outbound is the hub's handle on one client. deliver must not block.
type outbound interface {
	deliver(payload []byte) error
	close()
}

type registry struct {
	order   []uuid.UUID
	handles map[uuid.UUID]outbound
	newID   func() uuid.UUID
}

func newRegistry(newID func() uuid.UUID) *registry {
	if newID == nil {
		newID = uuid.New
	}
	return &registry{
		handles: make(map[uuid.UUID]outbound),
		newID:   newID,
	}
}

func (r *registry) register(handle outbound) (uuid.UUID, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := r.newID()
		if _, ok := r.handles[id]; ok || id == uuid.Nil {
			continue
		}
		r.handles[id] = handle
		r.order = append(r.order, id)
		return id, nil
	}
	return uuid.Nil, errIdentityExhausted
}

// unregister closes the handle. It reports whether id was registered.
func (r *registry) unregister(id uuid.UUID) bool {
	handle, ok := r.handles[id]
	if !ok {
		return false
	}
	delete(r.handles, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	handle.close()
	return true
}

func (r *registry) playerNumberOf(id uuid.UUID) (int, error) {
	for i, o := range r.order {
		if o == id {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", id, errNotRegistered)
}

func (r *registry) count() int {
	return len(r.order)
}

// players returns a copy of the connection order.
func (r *registry) players() []uuid.UUID {
	order := make([]uuid.UUID, len(r.order))
	copy(order, r.order)
	return order
}

func (r *registry) deliver(id uuid.UUID, payload []byte) error {
	handle, ok := r.handles[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, errNotRegistered)
	}
	if err := handle.deliver(payload); err != nil {
		mark("drops", 1)
		return fmt.Errorf("%s: %w: %v", id, errDeliveryFailure, err)
	}
	return nil
}

// broadcastExcept delivers payload to every client but except (uuid.Nil
// excludes nobody). A failed delivery is logged and does not stop the others.
func (r *registry) broadcastExcept(payload []byte, except uuid.UUID) {
	for _, id := range r.order {
		if id == except {
			continue
		}
		if err := r.deliver(id, payload); err != nil {
			log.WithError(err).Warn("broadcast delivery failed")
		}
	}
}
