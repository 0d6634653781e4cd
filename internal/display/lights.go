package display

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jason-s-yu/shootingstars/internal/models"
	"github.com/jason-s-yu/shootingstars/internal/schema"
	"github.com/jason-s-yu/shootingstars/internal/store"
)

// SeedLights creates the configured number of lights with default settings.
// Lights that already exist keep their state.
func (s *Service) SeedLights(ctx context.Context) error {
	for idx := 0; idx < s.limits.LightCount; idx++ {
		created, err := store.Insert(ctx, s.store, models.LightsCollection, strconv.Itoa(idx), func() models.Light {
			return models.DefaultLight(idx)
		})
		if err != nil {
			return fmt.Errorf("seed light %d: %w", idx, err)
		}
		if created {
			s.logger.Debugf("Seeded light %d", idx)
		}
	}
	return nil
}

// updateLight applies fn to an existing light. Lights are only created by
// SeedLights, so an unknown id is reported as not found.
func (s *Service) updateLight(ctx context.Context, id string, fn func(*models.Light)) error {
	missing := false
	_, err := store.Upsert(ctx, s.store, models.LightsCollection, id, func() models.Light {
		missing = true
		return models.Light{}
	}, func(l *models.Light) error {
		if missing {
			return fmt.Errorf("light '%s': %w", id, store.ErrNotFound)
		}
		fn(l)
		return nil
	})
	return err
}

func (s *Service) setColourMode(ctx context.Context, params []json.RawMessage) (any, error) {
	var id, mode string
	if err := schema.Bind(params,
		schema.Arg{Name: "lightId", Schema: schema.String(), Into: &id},
		schema.Arg{Name: "colourMode", Schema: schema.OneOf(models.ColourModes...), Into: &mode},
	); err != nil {
		return nil, err
	}
	return nil, s.updateLight(ctx, id, func(l *models.Light) { l.ColourMode = mode })
}

func (s *Service) setColourHue(ctx context.Context, params []json.RawMessage) (any, error) {
	var id string
	var hue float64
	if err := schema.Bind(params,
		schema.Arg{Name: "lightId", Schema: schema.String(), Into: &id},
		schema.Arg{Name: "colourHue", Schema: schema.Range(0, 1), Into: &hue},
	); err != nil {
		return nil, err
	}
	return nil, s.updateLight(ctx, id, func(l *models.Light) { l.ColourHue = hue })
}

func (s *Service) setColourSaturation(ctx context.Context, params []json.RawMessage) (any, error) {
	var id string
	var sat float64
	if err := schema.Bind(params,
		schema.Arg{Name: "lightId", Schema: schema.String(), Into: &id},
		schema.Arg{Name: "colourSaturation", Schema: schema.Range(0, 1), Into: &sat},
	); err != nil {
		return nil, err
	}
	return nil, s.updateLight(ctx, id, func(l *models.Light) { l.ColourSaturation = sat })
}

func (s *Service) setAnimation(ctx context.Context, params []json.RawMessage) (any, error) {
	var id, anim string
	if err := schema.Bind(params,
		schema.Arg{Name: "lightId", Schema: schema.String(), Into: &id},
		schema.Arg{Name: "animation", Schema: schema.OneOf(models.Animations...), Into: &anim},
	); err != nil {
		return nil, err
	}
	return nil, s.updateLight(ctx, id, func(l *models.Light) { l.Animation = anim })
}
