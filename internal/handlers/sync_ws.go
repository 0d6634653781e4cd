// internal/handlers/sync_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/shootingstars/internal/hub"
	"github.com/jason-s-yu/shootingstars/internal/middleware"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "sync"

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// SyncWSHandler upgrades the connection and serves the sync protocol: method
// calls, subscriptions and pings, with record changes pushed as they commit.
func SyncWSHandler(logger *logrus.Logger, srv *SyncServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the sync subprotocol")
			return
		}

		caller := rpc.Caller{ConnID: uuid.New(), RemoteAddr: r.RemoteAddr}
		session := srv.Hub.Connect(caller)
		middleware.LogSyncOpen(logger, session.ID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, session, logger)

		readErr := readPump(ctx, c, srv, session, logger)

		cancel()
		srv.Hub.Disconnect(session)
		middleware.LogSyncClose(logger, session.ID, r.RemoteAddr, readErr)
		if r.Context().Err() != nil {
			c.Close(ShuttingDownError, "server shutting down")
		}
	}
}

// readPump handles incoming frames until the connection closes or the session
// is dropped. Methods run in arrival order.
func readPump(ctx context.Context, c *websocket.Conn, srv *SyncServer, session *hub.Session, logger *logrus.Logger) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("Session %s: ignoring non-text message type %d", session.ID, typ)
			continue
		}

		var msg hub.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("Session %s: invalid json: %v", session.ID, err)
			srv.Hub.Reply(session, hub.Message{Msg: hub.MsgError, Reason: "invalid JSON format"})
			continue
		}
		handleSyncMessage(ctx, srv, session, msg, logger)
	}
}

// handleSyncMessage interprets one client message.
func handleSyncMessage(ctx context.Context, srv *SyncServer, session *hub.Session, msg hub.Message, logger *logrus.Logger) {
	switch msg.Msg {
	case hub.MsgConnect:
		srv.Hub.Reply(session, hub.Message{Msg: hub.MsgConnected, Session: session.ID.String()})
	case hub.MsgPing:
		srv.Hub.Reply(session, hub.Message{Msg: hub.MsgPong, ID: msg.ID})
	case hub.MsgMethod:
		if msg.ID == "" {
			srv.Hub.Reply(session, hub.Message{Msg: hub.MsgError, Reason: "method call requires an id"})
			return
		}
		result, werr := srv.Call(ctx, session.Caller, msg.Method, msg.Params)
		srv.Hub.Reply(session, hub.Message{Msg: hub.MsgResult, ID: msg.ID, Result: result, Error: werr})
	case hub.MsgSub:
		srv.Subscribe(ctx, session, msg.ID, msg.Name, msg.Params)
	case hub.MsgUnsub:
		srv.Hub.Unsubscribe(session, msg.ID)
	default:
		logger.Warnf("Session %s: unknown message '%s'", session.ID, msg.Msg)
		srv.Hub.Reply(session, hub.Message{Msg: hub.MsgError, Reason: "unknown message type: " + msg.Msg})
	}
}

// writePump drains the session queue onto the socket and keeps the connection
// alive with pings. A dropped session closes the socket.
func writePump(ctx context.Context, c *websocket.Conn, session *hub.Session, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-session.Done():
			if ctx.Err() == nil {
				c.Close(SlowConsumerError, "too far behind the change stream")
			}
			return
		case msg := <-session.Out():
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Session %s: failed to marshal outgoing %s: %v", session.ID, msg.Msg, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Session %s: write failed: %v", session.ID, err)
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Session %s: ping failed: %v", session.ID, err)
				return
			}
		}
	}
}
