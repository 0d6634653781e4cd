package display

import (
	"context"
	"encoding/json"

	"github.com/jason-s-yu/shootingstars/internal/models"
	"github.com/jason-s-yu/shootingstars/internal/schema"
	"github.com/jason-s-yu/shootingstars/internal/store"
)

func (s *Service) setPicture(ctx context.Context, params []json.RawMessage) (any, error) {
	var key string
	if err := schema.Bind(params, schema.Arg{Name: "pictureKey", Schema: schema.OneOf(models.PictureKeys...), Into: &key}); err != nil {
		return nil, err
	}
	_, err := store.Upsert(ctx, s.store, models.PicturesCollection, models.PictureKey,
		func() models.Picture { return models.Picture{Key: models.PictureKey} },
		func(rec *models.Picture) error {
			rec.PictureKey = key
			rec.Timestamp = s.nowMillis()
			return nil
		})
	return nil, err
}
