package display

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jason-s-yu/shootingstars/internal/eventlog"
	"github.com/jason-s-yu/shootingstars/internal/models"
	"github.com/jason-s-yu/shootingstars/internal/schema"
	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/sirupsen/logrus"
)

var presenceGrid = schema.GridBounds{MaxRows: 50, MaxCols: 50, MinValue: 0, MaxValue: 255}

func presenceKey(id int) string {
	return strconv.Itoa(id)
}

// getConfig returns the configuration bound to the caller's token.
func (s *Service) getConfig(_ context.Context, params []json.RawMessage) (any, error) {
	t, err := s.presence.Authorize(params)
	if err != nil {
		return nil, err
	}
	return t.Config, nil
}

// sendPresence appends a presence map to the caller's own record.
func (s *Service) sendPresence(ctx context.Context, params []json.RawMessage) (any, error) {
	var presenceMap [][]int
	t, err := s.presence.Authorize(params, schema.Arg{
		Name:   "presenceMap",
		Schema: schema.Grid(presenceGrid),
		Into:   &presenceMap,
	})
	if err != nil {
		return nil, err
	}

	policy := eventlog.Policy{MaxCount: s.limits.PresenceMaxEvents}
	_, err = store.Upsert(ctx, s.store, models.PresenceCollection, presenceKey(t.ID),
		func() models.Presence { return models.Presence{ID: t.ID} },
		func(rec *models.Presence) error {
			now := s.store.Now()
			rec.ID = t.ID
			rec.Config = t.Config
			rec.PresenceEvents = eventlog.Append(rec.PresenceEvents, models.PresenceEvent{
				PresenceMap: presenceMap,
				Timestamp:   now.UnixMilli(),
			}, policy, now)
			return nil
		})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"tenant": t.ID,
		"rows":   len(presenceMap),
	}).Debug("presence recorded")
	return nil, nil
}
