package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type wsHandler struct {
	h        *hub
	ticker   *mTicker
	upgrader *websocket.Upgrader
	pongWait time.Duration
}

// newWsHandler checks Origin against origin when one is given, and falls
// back to gorilla's same-host check otherwise.
func newWsHandler(h *hub, ticker *mTicker, origin string, pongWait time.Duration) wsHandler {
	upgrader := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if origin != "" {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == origin
		}
	}
	return wsHandler{h: h, ticker: ticker, upgrader: upgrader, pongWait: pongWait}
}

func (wsh wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := wsh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).WithField("remote", r.RemoteAddr).Debug("upgrade failed")
		return
	}
	c := newConnection(websocketInteractor{ws: ws, pongWait: wsh.pongWait}, wsh.h, wsh.ticker)
	c.run()
}

func newStaticHandler(dir string) http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
}

func newIndexHandler() http.Handler {
	return http.RedirectHandler("/static/index.html", http.StatusFound)
}
