// Package risk holds the pure stop/target arithmetic. Nothing here touches
// the network or the ledger; all failure is input validation.
package risk

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRisk rejects a non-positive risk distance before any state change.
var ErrInvalidRisk = errors.New("risk distance must be positive")

// DefaultLadder is the canonical risk/reward ladder: tier 1 at half the risk
// distance up through tier 5 at triple. Alternate ladders substitute here (or
// via a template file) without touching the tick state machine.
var DefaultLadder = []decimal.Decimal{
	decimal.NewFromFloat(0.5),
	decimal.NewFromFloat(1.0),
	decimal.NewFromFloat(1.5),
	decimal.NewFromFloat(2.0),
	decimal.NewFromFloat(3.0),
}

// DefaultTrailStep is the discrete stop-trail increment in price points.
var DefaultTrailStep = decimal.NewFromInt(10)

// Template is the fixed risk template applied to every trade.
type Template struct {
	Ladder    []decimal.Decimal
	TrailStep decimal.Decimal
}

// Default returns the canonical template.
func Default() Template {
	return Template{Ladder: DefaultLadder, TrailStep: DefaultTrailStep}
}

// ComputeStop returns the initial stop-loss for a long entry.
func (t Template) ComputeStop(entry, riskDistance decimal.Decimal) (decimal.Decimal, error) {
	if !riskDistance.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrInvalidRisk, riskDistance)
	}
	return entry.Sub(riskDistance), nil
}

// ComputeTargets returns the ascending target sequence entry + riskDistance*m
// for each ladder multiplier.
func (t Template) ComputeTargets(entry, riskDistance decimal.Decimal) ([]decimal.Decimal, error) {
	if !riskDistance.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidRisk, riskDistance)
	}
	targets := make([]decimal.Decimal, len(t.Ladder))
	for i, m := range t.Ladder {
		targets[i] = entry.Add(riskDistance.Mul(m))
	}
	return targets, nil
}

// Trail advances the high-water mark in discrete steps. If price has moved at
// least one TrailStep above the stored mark it returns the new mark and the
// amount to raise the stop by; otherwise the mark is unchanged and the delta
// is zero. The stop trails the mark, not the raw price, so noisy ticks never
// oscillate it.
func (t Template) Trail(highWaterMark, price decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if price.GreaterThan(highWaterMark) && price.Sub(highWaterMark).GreaterThanOrEqual(t.TrailStep) {
		return price, t.TrailStep
	}
	return highWaterMark, decimal.Zero
}

// templateFile is the YAML shape of an override file.
type templateFile struct {
	Ladder    []float64 `yaml:"ladder"`
	TrailStep float64   `yaml:"trail_step"`
}

// LoadTemplate reads a template override from a YAML file. Missing fields
// keep their defaults.
func LoadTemplate(path string) (Template, error) {
	tmpl := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return tmpl, fmt.Errorf("read risk template: %w", err)
	}

	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return tmpl, fmt.Errorf("parse risk template: %w", err)
	}

	if len(f.Ladder) > 0 {
		ladder := make([]decimal.Decimal, len(f.Ladder))
		for i, m := range f.Ladder {
			ladder[i] = decimal.NewFromFloat(m)
		}
		tmpl.Ladder = ladder
	}
	if f.TrailStep > 0 {
		tmpl.TrailStep = decimal.NewFromFloat(f.TrailStep)
	}
	return tmpl, nil
}
