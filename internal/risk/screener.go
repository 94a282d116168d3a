// Package risk simulates sanctions and AML screening.
package risk

import (
	"context"

	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
	"github.com/akhil-rao/ap2-aani-demo/internal/sim"
)

// Level is a qualitative screening result.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

// Levels lists the possible results in draw order.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh}

// Note accompanies every screening result in the audit trail.
const Note = "Sanctions & AML screening simulated"

// Screener assesses a mandate.
type Screener interface {
	Screen(ctx context.Context, m *mandate.Mandate) (Level, error)
}

// RandomScreener draws a level uniformly, ignoring the mandate. Repeated
// calls for the same mandate may disagree.
type RandomScreener struct {
	src sim.RandomSource
}

// NewRandomScreener returns a screener drawing from src (sim.Uniform if nil).
func NewRandomScreener(src sim.RandomSource) *RandomScreener {
	if src == nil {
		src = sim.Uniform{}
	}
	return &RandomScreener{src: src}
}

func (r *RandomScreener) Screen(_ context.Context, _ *mandate.Mandate) (Level, error) {
	return sim.Pick(r.src, Levels), nil
}
