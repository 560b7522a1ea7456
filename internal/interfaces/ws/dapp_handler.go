package ws

import (
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/core/application/conn"
	"github.com/dappward/walletd/internal/core/application/router"
	"github.com/dappward/walletd/pkg/provider"
)

// dappHandler terminates the persistent channels DApp pages talk over. Each
// connection identifies its page through the origin and tabId query params,
// stays registered for event delivery for its whole lifetime, and carries
// any number of request/response exchanges.
type dappHandler struct {
	upgrader    websocket.Upgrader
	router      *router.Router
	connections *conn.Registry
}

func newDappHandler(
	rtr *router.Router, connections *conn.Registry,
) *dappHandler {
	return &dappHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		router:      rtr,
		connections: connections,
	}
}

func (h *dappHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	tabID, err := strconv.Atoi(r.URL.Query().Get("tabId"))
	if origin == "" || err != nil {
		http.Error(w, "missing origin or tabId", http.StatusBadRequest)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("could not upgrade dapp connection")
		return
	}

	channel := newWsChannel(wsConn).(*wsChannel)
	h.connections.Register(r.Context(), tabID, origin, channel)
	defer func() {
		h.connections.Unregister(tabID)
		//nolint:errcheck
		wsConn.Close()
	}()

	log.WithFields(log.Fields{
		"origin": origin, "tab": tabID,
	}).Debug("dapp channel opened")

	for {
		var request provider.Request
		if err := wsConn.ReadJSON(&request); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.WithError(err).Debug("dapp channel read failed")
			}
			return
		}

		// requests block on user decisions, the channel must keep reading
		go func(request provider.Request) {
			response := h.router.Handle(r.Context(), origin, tabID, request)
			if err := channel.writeJSON(response); err != nil {
				log.WithError(err).Debug("could not write dapp response")
			}
		}(request)
	}
}
