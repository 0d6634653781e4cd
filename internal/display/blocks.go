package display

import (
	"context"
	"encoding/json"

	"github.com/jason-s-yu/shootingstars/internal/eventlog"
	"github.com/jason-s-yu/shootingstars/internal/models"
	"github.com/jason-s-yu/shootingstars/internal/schema"
	"github.com/jason-s-yu/shootingstars/internal/store"
)

var playfieldGrid = schema.GridBounds{MaxRows: 50, MaxCols: 50, MinValue: 0, MaxValue: 255}

var blocksStateSchema = schema.Object(
	schema.Field{Name: "score", Schema: schema.Number()},
	schema.Field{Name: "playfield", Schema: schema.Grid(playfieldGrid)},
	schema.Field{Name: "aiMode", Schema: schema.Bool(), Optional: true},
)

type blocksStateParam struct {
	Score     float64 `json:"score"`
	Playfield [][]int `json:"playfield"`
	AIMode    bool    `json:"aiMode"`
}

func (s *Service) sendInput(ctx context.Context, params []json.RawMessage) (any, error) {
	var inputType string
	if err := schema.Bind(params, schema.Arg{Name: "type", Schema: schema.OneOf(models.InputTypes...), Into: &inputType}); err != nil {
		return nil, err
	}

	policy := eventlog.Policy{MaxAge: s.limits.InputMaxAge, MaxCount: s.limits.InputMaxCount}
	_, err := store.Upsert(ctx, s.store, models.BlocksInputsCollection, models.InputsKey,
		func() models.BlocksInputs { return models.BlocksInputs{Key: models.InputsKey} },
		func(rec *models.BlocksInputs) error {
			now := s.store.Now()
			entry := models.BlocksInput{Type: inputType, Timestamp: now.UnixMilli()}
			rec.Inputs = eventlog.Append(rec.Inputs, entry, policy, now)
			return nil
		})
	return nil, err
}

// updateState replaces the published game state with the controller's report.
// The high score never decreases.
func (s *Service) updateState(ctx context.Context, params []json.RawMessage) (any, error) {
	var st blocksStateParam
	if _, err := s.controllers.Authorize(params, schema.Arg{Name: "state", Schema: blocksStateSchema, Into: &st}); err != nil {
		return nil, err
	}

	_, err := store.Upsert(ctx, s.store, models.BlocksStatesCollection, models.GameStateKey,
		func() models.BlocksState { return models.BlocksState{Key: models.GameStateKey} },
		func(rec *models.BlocksState) error {
			rec.Score = st.Score
			rec.HighScore = max(rec.HighScore, st.Score)
			rec.Playfield = st.Playfield
			rec.AIMode = st.AIMode
			rec.Timestamp = s.nowMillis()
			return nil
		})
	return nil, err
}
