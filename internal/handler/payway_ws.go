package handler

import (
	"context"
	"log"

	"payway/internal/notify"
	"payway/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// UpgradeStatusWS streams status changes for one intent until it is paid or
// expired, the client leaves, or the watch times out.
func UpgradeStatusWS(notifier *notify.Notifier, hub *ws.Hub, upgrader *websocket.Upgrader) gin.HandlerFunc {
	return func(c *gin.Context) {
		md5 := c.Param("md5")
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] upgrade %s: %v", md5, err)
			return
		}
		sc := ws.NewStatusConn(conn)

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		sub := hub.Register(md5, cancel)
		defer hub.Unregister(sub)

		done := make(chan struct{})
		go sc.ReadPump(cancel)
		go sc.PingLoop(done)

		reason, err := notifier.Watch(ctx, md5, sc)
		close(done)

		code, text := closeFrame(reason)
		if err != nil {
			log.Printf("[WS] %s watch failed: %v", md5, err)
		} else if reason != notify.ReasonDisconnected {
			log.Printf("[WS] %s closed: %s", md5, reason)
		}
		sc.Close(code, text)
	}
}

func closeFrame(reason notify.Reason) (int, string) {
	switch reason {
	case notify.ReasonTerminal:
		return websocket.CloseNormalClosure, "final status sent"
	case notify.ReasonTimeout:
		return websocket.CloseNormalClosure, "watch timeout"
	case notify.ReasonError:
		return websocket.CloseInternalServerErr, "status lookup failed"
	default:
		return websocket.CloseGoingAway, "going away"
	}
}
