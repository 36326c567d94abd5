package domain

import "time"

// EvalState records evaluation progress for a model directory.
type EvalState struct {
	LastStep  int64     `json:"last_step"`
	Evaluated int       `json:"evaluated"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasStep reports whether a checkpoint has been evaluated before.
func (s EvalState) HasStep() bool { return s.Evaluated > 0 }
