// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/shootingstars/internal/hub"
	"github.com/jason-s-yu/shootingstars/internal/metrics"
	"github.com/jason-s-yu/shootingstars/internal/ratelimit"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
	"github.com/sirupsen/logrus"
)

// SyncServer holds what the websocket and HTTP handlers share: the method
// registry, the subscription hub and the rate limit rule.
type SyncServer struct {
	Registry *rpc.Registry
	Hub      *hub.Hub
	Limit    *ratelimit.Rule
	Logger   *logrus.Logger
}

// NewSyncServer returns a server dispatching to registry. limit may be nil.
func NewSyncServer(registry *rpc.Registry, h *hub.Hub, limit *ratelimit.Rule, logger *logrus.Logger) *SyncServer {
	return &SyncServer{
		Registry: registry,
		Hub:      h,
		Limit:    limit,
		Logger:   logger,
	}
}

// limitKey identifies the caller for rate limiting: the websocket connection,
// or the remote host for plain HTTP calls.
func limitKey(c rpc.Caller) string {
	if c.ConnID != uuid.Nil {
		return c.ConnID.String()
	}
	return remoteHost(c.RemoteAddr)
}

func (s *SyncServer) checkLimit(ctx context.Context, c rpc.Caller, name string) error {
	if err := s.Limit.Check(ctx, limitKey(c), name); err != nil {
		if errors.Is(err, ratelimit.ErrLimited) {
			metrics.RateLimited.WithLabelValues(name).Inc()
		}
		return err
	}
	return nil
}

// Call runs one method on behalf of c. Failures are returned in wire form.
func (s *SyncServer) Call(ctx context.Context, c rpc.Caller, name string, params []json.RawMessage) (any, *rpc.Error) {
	start := time.Now()
	result, err := s.call(ctx, c, name, params)
	outcome, label := "ok", name
	var werr *rpc.Error
	if err != nil {
		werr = rpc.WireError(err)
		outcome = string(werr.Kind)
		if werr.Kind == rpc.KindUnknownMethod {
			label = "unknown"
		}
		fields := logrus.Fields{
			"method": name,
			"remote": c.RemoteAddr,
			"kind":   werr.Kind,
		}
		if werr.Kind == rpc.KindInternal {
			s.Logger.WithFields(fields).WithError(err).Error("Method failed")
		} else {
			s.Logger.WithFields(fields).Debugf("Method rejected: %v", err)
		}
	}
	metrics.ObserveMethod(label, outcome, time.Since(start))
	return result, werr
}

func (s *SyncServer) call(ctx context.Context, c rpc.Caller, name string, params []json.RawMessage) (any, error) {
	if err := s.checkLimit(ctx, c, name); err != nil {
		return nil, err
	}
	return s.Registry.Call(ctx, c, name, params)
}

// Subscribe starts a subscription on session after checking the rate limit.
func (s *SyncServer) Subscribe(ctx context.Context, session *hub.Session, id, name string, params []json.RawMessage) {
	if err := s.checkLimit(ctx, session.Caller, name); err != nil {
		s.Hub.Reply(session, hub.Message{Msg: hub.MsgNoSub, ID: id, Error: rpc.WireError(err)})
		return
	}
	if err := s.Hub.Subscribe(ctx, session, id, name, params); err != nil {
		s.Logger.WithFields(logrus.Fields{
			"publication": name,
			"session":     session.ID,
		}).Debugf("Subscription refused: %v", err)
	}
}
