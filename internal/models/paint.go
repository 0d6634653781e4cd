// internal/models/paint.go
package models

const (
	PaintCollection = "paint"
	PaintKey        = "paint"
)

// Colour is a hue/saturation pair, both ratios in [0, 1].
type Colour struct {
	Hue        float64 `json:"hue"`
	Saturation float64 `json:"saturation"`
}

// Velocity is one device motion sample.
type Velocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PainterMovement is a batch of motion samples from one painter's phone.
type PainterMovement struct {
	Timestamp  int64      `json:"timestamp"`
	Colour     Colour     `json:"colour"`
	Velocities []Velocity `json:"velocities"`
}

func (m PainterMovement) EventTime() int64 { return m.Timestamp }

// Paint holds the recent movements of the most recently active painters.
type Paint struct {
	Key              string                    `json:"key"`
	PainterMovements map[int][]PainterMovement `json:"painterMovements"`
}
