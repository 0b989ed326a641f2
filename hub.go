package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Hub commands.
const (
	CONNECT = iota
	DISCONNECT
	MESSAGE
)

type command struct {
	cmd   int
	id    uuid.UUID
	conn  outbound
	text  []byte
	reply chan connectResult
}

type connectResult struct {
	id  uuid.UUID
	err error
}

type queue chan command

// hub owns the registry and the table. Only run touches them.
type hub struct {
	queue    queue
	registry *registry
	table    *table
}

func newHub(seed []component, newID func() uuid.UUID) *hub {
	if seed == nil {
		seed = defaultSeed()
	}
	return &hub{
		queue:    make(queue, 16),
		registry: newRegistry(newID),
		table:    newTable(seed),
	}
}

func (h *hub) run() {
	for cmd := range h.queue {
		switch cmd.cmd {
		case CONNECT:
			id, err := h.connect(cmd.conn)
			cmd.reply <- connectResult{id, err}
		case DISCONNECT:
			h.disconnect(cmd.id)
		case MESSAGE:
			h.message(cmd.id, cmd.text)
		default:
			panic(fmt.Sprintf("unexpected hub cmd: %v\n", cmd))
		}
	}
}

// Connect registers conn and blocks until the hub has assigned its identity.
func (h *hub) Connect(conn outbound) (uuid.UUID, error) {
	reply := make(chan connectResult, 1)
	h.queue <- command{cmd: CONNECT, conn: conn, reply: reply}
	res := <-reply
	return res.id, res.err
}

func (h *hub) Disconnect(id uuid.UUID) {
	h.queue <- command{cmd: DISCONNECT, id: id}
}

func (h *hub) ClientMessage(id uuid.UUID, text []byte) {
	h.queue <- command{cmd: MESSAGE, id: id, text: text}
}

func (h *hub) connect(conn outbound) (uuid.UUID, error) {
	id, err := h.registry.register(conn)
	if err != nil {
		conn.close()
		return uuid.Nil, err
	}
	n, _ := h.registry.playerNumberOf(id)
	hd := h.table.addHand(id, n)
	incr("players", 1)
	log.WithFields(log.Fields{"player": n, "players": h.registry.count()}).Info("player connected")

	h.send(id, notifications{
		playerNumber(n),
		setComponents(h.table.snapshotComponents()),
		setHands(h.table.snapshotHands(h.registry.players())),
	})
	h.broadcast(notifications{connectPlayer(n, hd)}, uuid.Nil)
	return id, nil
}

func (h *hub) disconnect(id uuid.UUID) {
	n, err := h.registry.playerNumberOf(id)
	if err != nil {
		log.WithError(err).Debug("disconnect ignored")
		return
	}
	h.broadcast(notifications{disconnectPlayer(n)}, uuid.Nil)
	h.registry.unregister(id)
	h.table.removeHand(id)
	decr("players", 1)
	log.WithFields(log.Fields{"player": n, "players": h.registry.count()}).Info("player disconnected")

	players := h.registry.players()
	h.table.renumberHands(players)
	for i, other := range players {
		h.send(other, notifications{playerNumber(i + 1)})
	}
}

func (h *hub) message(id uuid.UUID, text []byte) {
	n, err := h.registry.playerNumberOf(id)
	if err != nil {
		log.WithError(err).Debug("message from departed client dropped")
		return
	}
	logger := log.WithField("player", n)

	msg, err := decodeClientMessage(text)
	if err != nil {
		mark("rejections", 1)
		logger.WithError(err).Warnf("could not decode %q", text)
		return
	}

	var (
		c   component
		out = uuid.Nil
	)
	switch msg.kind {
	case SELECT:
		c, err = h.table.selectComponent(msg.componentID)
	case UNSELECT:
		c, err = h.table.unselectComponent(msg.componentID)
	case OPEN:
		c, err = h.table.openComponent(msg.componentID)
	case CLOSE:
		c, err = h.table.closeComponent(msg.componentID)
	case INCREMENT:
		c, err = h.table.incrementComponent(msg.componentID)
	case DECREMENT:
		c, err = h.table.decrementComponent(msg.componentID)
	case MOVE:
		// The mover already rendered the result.
		c, err = h.table.moveComponent(msg.componentID, msg.x, msg.y, n)
		out = id
	case MOVE_HAND:
		h.moveOwnHand(id, n, msg.x, msg.y)
		return
	default:
		logger.WithField("type", msg.tag).Debug("unexpected notification from client")
		return
	}

	if err != nil {
		mark("rejections", 1)
		entry := logger.WithError(err).WithField("component", msg.componentID)
		if errors.Is(err, errNotOwner) {
			entry.Debug("could not move the component")
		} else {
			entry.Warn("mutation rejected")
		}
		return
	}
	incr("mutations", 1)
	h.broadcast(notifications{updateComponent(c)}, out)
}

func (h *hub) moveOwnHand(id uuid.UUID, n int, x, y float64) {
	if _, err := h.table.moveHand(id, x, y); err != nil {
		mark("rejections", 1)
		log.WithError(err).WithField("player", n).Warn("hand move rejected")
		return
	}
	h.broadcast(notifications{moveHand(n, x, y)}, id)
}

func (h *hub) send(id uuid.UUID, n notifications) {
	payload, err := n.encode()
	if err != nil {
		log.WithError(err).Error("could not encode notifications")
		return
	}
	if err := h.registry.deliver(id, payload); err != nil {
		log.WithError(err).Warn("delivery failed")
	}
}

// broadcast sends n to every client except except (uuid.Nil for none).
func (h *hub) broadcast(n notifications, except uuid.UUID) {
	payload, err := n.encode()
	if err != nil {
		log.WithError(err).Error("could not encode notifications")
		return
	}
	h.registry.broadcastExcept(payload, except)
}
