package qfilter

import (
	"context"
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/mat"
)

var dumpHistogram = func(h Histogram) string { return spew.Sdump(h) }

// Transform selects what is done to the encoded image before measurement.
type Transform int

const (
	TransformFilter Transform = iota
	TransformNegative
)

func (t Transform) String() string {
	if t == TransformNegative {
		return "negative"
	}
	return "filter"
}

/*
Experiment is one fully specified run: the image, the transform applied to
it and how the measurement is reduced.
*/
type Experiment struct {
	Image         Image
	Transform     Transform
	FilterType    FilterType
	D0            float64
	Shots         int
	Normalization Normalization
	Debug         bool // dump the raw histogram after the run
}

// NewExperiment builds a filter experiment from cfg.
func NewExperiment(cfg *Config, img Image) Experiment {
	return Experiment{
		Image:         img,
		Transform:     TransformFilter,
		FilterType:    cfg.FilterType,
		D0:            cfg.D0,
		Shots:         cfg.Shots,
		Normalization: cfg.Normalization,
		Debug:         cfg.Debug,
	}
}

/*
Result is what a run hands to the presentation layer. For a filter run,
Reconstruction holds the kept and rejected populations. For a negative run,
Image holds the whole-histogram reconstruction and Reconstruction is nil.
*/
type Result struct {
	ID             string
	Experiment     Experiment
	Original       *mat.Dense
	Histogram      Histogram
	Reconstruction *Reconstruction
	Image          *mat.Dense
	Metrics        *RunMetrics
}

/*
BuildFilterCircuit encodes img, moves the position register to the frequency
basis, marks kept components in the ancilla and moves back.
*/
func BuildFilterCircuit(img Image, ft FilterType, d0 float64) (*Circuit, error) {
	c := Encode(img)

	QFT2(c, PositionCol, PositionRow)
	if err := FilterOracle(c, [2]int{PositionCol, PositionRow}, Ancilla, ft, d0); err != nil {
		return nil, err
	}
	InverseQFT2(c, PositionCol, PositionRow)

	return c, nil
}

// BuildNegativeCircuit encodes img and inverts every intensity bit.
func BuildNegativeCircuit(img Image) *Circuit {
	return Negate(Encode(img))
}

// Circuit builds the circuit the experiment describes.
func (e Experiment) Circuit() (*Circuit, error) {
	switch e.Transform {
	case TransformFilter:
		return BuildFilterCircuit(e.Image, e.FilterType, e.D0)
	case TransformNegative:
		return BuildNegativeCircuit(e.Image), nil
	}
	return nil, fmt.Errorf("unknown transform %v", e.Transform)
}

// Run executes one experiment on backend and reduces the histogram.
func Run(ctx context.Context, exp Experiment, backend Backend) (*Result, error) {
	if exp.Shots <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidShots, exp.Shots)
	}

	circuit, err := exp.Circuit()
	if err != nil {
		return nil, err
	}

	result := &Result{
		ID:         uuid.New().String(),
		Experiment: exp,
		Original:   ImageMatrix(exp.Image),
		Metrics:    newRunMetrics(backend.Name(), circuit),
	}

	errnie.Info(
		"Run - %s on %s, depth %d, size %d, shots %d",
		exp.Transform, backend.Name(), result.Metrics.Depth, result.Metrics.Size, exp.Shots,
	)

	startTime := time.Now()
	h, err := backend.Run(ctx, circuit, exp.Shots)
	if err != nil {
		return nil, fmt.Errorf("running on %s: %w", backend.Name(), err)
	}
	result.Histogram = h
	result.Metrics.recordExecution(startTime, h)
	if exp.Debug {
		errnie.Debug("Run - histogram %s", dumpHistogram(h))
	}

	switch exp.Transform {
	case TransformFilter:
		rec, err := Reconstruct(h, exp.Normalization)
		if err != nil {
			return nil, err
		}
		result.Reconstruction = rec
		result.Metrics.recordSplit(rec)
	case TransformNegative:
		if result.Image, err = ReconstructImage(h, exp.Normalization); err != nil {
			return nil, err
		}
	}

	return result, nil
}
