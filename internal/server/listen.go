package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Makepad-fr/tada/internal/store"
)

// listen upgrades to a websocket and streams snapshots of the collection,
// one JSON text frame each, until either side goes away. Frames from the
// client are read only to notice the close.
func (s *Server) listen(c *gin.Context) {
	collection := c.Param("collection")
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	session := uuid.NewString()
	logger := s.log.With("session", session, "collection", collection)
	logger.Debug("listener connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	unsub, err := s.store.Subscribe(ctx, store.Query{Collection: collection}, func(snap store.Snapshot) {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(snap); err != nil {
			logger.Debug("write snapshot", "err", err)
			cancel()
			ws.Close()
		}
	})
	if err != nil {
		logger.Error("subscribe", "err", err)
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return
	}
	defer unsub()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("listener read", "err", err)
			}
			break
		}
	}
	logger.Debug("listener disconnected")
}
