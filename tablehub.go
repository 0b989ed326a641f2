// Package tablehub keeps a shared virtual tabletop in sync over websockets.
//
//	tablehub -addr=127.0.0.1:8080 -config=tablehub.yaml
//
// One table lives in memory for the life of the process. Clients connect to
//
//	ws://localhost:8080/ws/
//
// and are numbered 1..N in connection order. Numbers are dense: when a player
// leaves, everyone after them moves up one and is told their new number.
//
// On connect a client receives one frame holding its player number, every
// component and every hand. After that it receives one-element frames as
// other players connect, disconnect, move their hand or change a component.
// Frames are JSON arrays of {"type": ..., "payload": {...}}.
//
// Clients send single notifications such as
//
//	{"type": "MoveComponent", "payload": {"component_id": 0, "x": 50, "y": 60}}
//
// A component with a user may only be moved by that player. Rejected or
// unreadable messages are logged and dropped; the connection stays open.
//
// GET / redirects to /static/index.html, served from -static. GET /metrics
// serves counters in the Prometheus text format.
package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

func newHandler(cfg *config) http.Handler {
	h := newHub(cfg.seed(), nil)
	go h.run()
	ticker := newMTicker(cfg.Heartbeat.Interval)

	r := mux.NewRouter()
	r.Path("/ws/").Handler(newWsHandler(h, ticker, cfg.Origin, cfg.Heartbeat.Timeout))
	r.Methods("GET").Path("/metrics").Handler(metricsHandler{m: m})
	r.Methods("GET").PathPrefix("/static/").Handler(newStaticHandler(cfg.StaticDir))
	r.Methods("GET").Path("/").Handler(newIndexHandler())
	return r
}
