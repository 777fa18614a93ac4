package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the gateway in front of this core.
	CheckOrigin: func(*http.Request) bool { return true },
}

// notificationStream upgrades to a websocket and pushes the caller's badge
// counts: the current value immediately, then every change. All sockets for
// one user share the same hub counter.
func (h *Handlers) notificationStream(c *gin.Context) {
	userID := callerID(c)

	counter, err := h.hub.Acquire(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer h.hub.Release(userID)

	ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer ws.Close()

	updates := counter.Subscribe()
	defer counter.Unsubscribe(updates)

	// Drain the reader so close frames and pongs are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case counts, ok := <-updates:
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(counts); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
