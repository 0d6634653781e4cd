// Package display implements the shared state behind the light display: the
// lights themselves, the blocks game, motion painting, nativity pictures and
// presence maps exchanged between installations.
package display

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/auth"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/sirupsen/logrus"
)

// Limits bounds every event log kept by the service.
type Limits struct {
	LightCount        int
	InputMaxAge       time.Duration
	InputMaxCount     int
	PaintMaxMovements int
	PaintMaxPainters  int
	MaxVelocities     int
	PresenceMaxEvents int
}

// DefaultLimits mirrors the installation the service was built for.
func DefaultLimits() Limits {
	return Limits{
		LightCount:        10,
		InputMaxAge:       5 * time.Second,
		InputMaxCount:     100,
		PaintMaxMovements: 10,
		PaintMaxPainters:  10,
		MaxVelocities:     100,
		PresenceMaxEvents: 10,
	}
}

// Service owns the display's methods and publications.
type Service struct {
	store       *store.StateStore
	controllers *auth.Gate
	presence    *auth.Gate
	limits      Limits
	logger      *logrus.Logger
}

// NewService wires the feature handlers to st. controllers gates the blocks game
// controller; presence gates presence installations.
func NewService(st *store.StateStore, controllers, presence *auth.Registry, limits Limits, logger *logrus.Logger) *Service {
	return &Service{
		store:       st,
		controllers: auth.NewGate(controllers),
		presence:    auth.NewGate(presence),
		limits:      limits,
		logger:      logger,
	}
}

type method func(ctx context.Context, params []json.RawMessage) (any, error)

func adapt(m method) rpc.MethodFunc {
	return func(ctx context.Context, _ rpc.Caller, params []json.RawMessage) (any, error) {
		return m(ctx, params)
	}
}

// Register adds every method and publication to r.
func (s *Service) Register(r *rpc.Registry) {
	r.Method("lights.setColourMode", adapt(s.setColourMode))
	r.Method("lights.setColourHue", adapt(s.setColourHue))
	r.Method("lights.setColourSaturation", adapt(s.setColourSaturation))
	r.Method("lights.setAnimation", adapt(s.setAnimation))

	r.Method("blocks.sendInput", adapt(s.sendInput))
	r.Method("blocks.updateState", adapt(s.updateState))

	r.Method("paint.sendMovement", adapt(s.sendMovement))

	r.Method("pictures.setPicture", adapt(s.setPicture))

	r.Method("presence.getConfig", adapt(s.getConfig))
	r.Method("presence.sendPresence", adapt(s.sendPresence))

	s.registerPublications(r)
}

// LightMethods are the calls covered by the per-connection rate limit: the
// light setters and the lights publication.
func LightMethods() []string {
	return []string{
		"lights.setColourMode",
		"lights.setColourHue",
		"lights.setColourSaturation",
		"lights.setAnimation",
		"lights",
	}
}

func (s *Service) nowMillis() int64 {
	return s.store.Now().UnixMilli()
}
