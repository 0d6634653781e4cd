package display

import (
	"context"
	"encoding/json"

	"github.com/jason-s-yu/shootingstars/internal/eventlog"
	"github.com/jason-s-yu/shootingstars/internal/models"
	"github.com/jason-s-yu/shootingstars/internal/schema"
	"github.com/jason-s-yu/shootingstars/internal/store"
)

type movementParam struct {
	PainterID  int               `json:"painterId"`
	Colour     models.Colour     `json:"colour"`
	Velocities []models.Velocity `json:"velocities"`
}

func (s *Service) movementSchema() schema.Schema {
	return schema.Object(
		schema.Field{Name: "painterId", Schema: schema.Integer()},
		schema.Field{Name: "colour", Schema: schema.Object(
			schema.Field{Name: "hue", Schema: schema.Range(0, 1)},
			schema.Field{Name: "saturation", Schema: schema.Range(0, 1)},
		)},
		schema.Field{Name: "velocities", Schema: schema.Array(schema.Object(
			schema.Field{Name: "x", Schema: schema.Number()},
			schema.Field{Name: "y", Schema: schema.Number()},
			schema.Field{Name: "z", Schema: schema.Number()},
		), 0, s.limits.MaxVelocities)},
	)
}

// sendMovement records a batch of motion samples for one painter. Each painter
// keeps only its latest movements, and only the most recently active painters
// are kept at all.
func (s *Service) sendMovement(ctx context.Context, params []json.RawMessage) (any, error) {
	var mv movementParam
	if err := schema.Bind(params, schema.Arg{Name: "movement", Schema: s.movementSchema(), Into: &mv}); err != nil {
		return nil, err
	}

	perPainter := eventlog.Policy{MaxCount: s.limits.PaintMaxMovements}
	_, err := store.Upsert(ctx, s.store, models.PaintCollection, models.PaintKey,
		func() models.Paint {
			return models.Paint{Key: models.PaintKey, PainterMovements: map[int][]models.PainterMovement{}}
		},
		func(rec *models.Paint) error {
			now := s.store.Now()
			entry := models.PainterMovement{
				Timestamp:  now.UnixMilli(),
				Colour:     mv.Colour,
				Velocities: mv.Velocities,
			}
			if entry.Velocities == nil {
				entry.Velocities = []models.Velocity{}
			}
			rec.PainterMovements = eventlog.AppendKeyed(rec.PainterMovements, mv.PainterID, entry, perPainter, s.limits.PaintMaxPainters, now)
			return nil
		})
	return nil, err
}
