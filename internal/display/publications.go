package display

import (
	"context"
	"encoding/json"

	"github.com/jason-s-yu/shootingstars/internal/models"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
	"github.com/jason-s-yu/shootingstars/internal/schema"
)

func collection(name string, fields ...string) rpc.PublishFunc {
	return func(_ context.Context, _ rpc.Caller, params []json.RawMessage) ([]rpc.Cursor, error) {
		if err := schema.Bind(params); err != nil {
			return nil, err
		}
		return []rpc.Cursor{{Collection: name, Fields: fields}}, nil
	}
}

func (s *Service) registerPublications(r *rpc.Registry) {
	r.Publication("lights", collection(models.LightsCollection,
		"idx", "colourMode", "colourHue", "colourSaturation", "animation"))
	r.Publication("blocksInputs", collection(models.BlocksInputsCollection,
		"key", "inputs"))
	r.Publication("blocksStates", collection(models.BlocksStatesCollection,
		"key", "playfield", "aiMode", "score", "highScore"))
	r.Publication("paint", collection(models.PaintCollection,
		"key", "painterMovements"))
	r.Publication("pictures", collection(models.PicturesCollection,
		"key", "timestamp", "pictureKey"))
	r.Publication("presence", s.publishPresence)
}

// publishPresence shows every other tenant's presence record. The subscriber's
// own record is excluded; an unknown token sees nothing.
func (s *Service) publishPresence(_ context.Context, _ rpc.Caller, params []json.RawMessage) ([]rpc.Cursor, error) {
	var token string
	if err := schema.Bind(params, schema.Arg{Name: "token", Schema: schema.String(), Into: &token}); err != nil {
		return nil, err
	}
	t, ok := s.presence.Observer(token)
	if !ok {
		return nil, nil
	}
	own := presenceKey(t.ID)
	return []rpc.Cursor{{
		Collection: models.PresenceCollection,
		Fields:     []string{"id", "config", "presenceEvents"},
		Filter: func(key string, _ map[string]any) bool {
			return key != own
		},
	}}, nil
}
