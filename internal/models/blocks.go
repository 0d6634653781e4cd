// internal/models/blocks.go
package models

// Collections and singleton keys for the shared blocks game.
const (
	BlocksInputsCollection = "blocksInputs"
	BlocksStatesCollection = "blocksStates"

	InputsKey    = "inputs"
	GameStateKey = "game-state"
)

// InputTypes are the moves a player can send to the game controller.
var InputTypes = []string{"left", "right", "rotate", "drop"}

// BlocksInput is one player move waiting to be consumed by the controller.
type BlocksInput struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

func (i BlocksInput) EventTime() int64 { return i.Timestamp }

// BlocksInputs is the shared, age-bounded log of recent moves.
type BlocksInputs struct {
	Key    string        `json:"key"`
	Inputs []BlocksInput `json:"inputs"`
}

// BlocksState is the latest game state reported by the controller.
type BlocksState struct {
	Key       string  `json:"key"`
	Score     float64 `json:"score"`
	HighScore float64 `json:"highScore"`
	Playfield [][]int `json:"playfield"`
	AIMode    bool    `json:"aiMode"`
	Timestamp int64   `json:"timestamp"`
}
