package qfilter

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

/*
Artifact is the serialisable form of a Result, written for whatever renders
the images afterwards. Matrices are stored as row slices.
*/
type Artifact struct {
	ID              string         `msgpack:"id"`
	Transform       string         `msgpack:"transform"`
	FilterType      string         `msgpack:"filter_type"`
	D0              float64        `msgpack:"d0"`
	Normalization   string         `msgpack:"normalization"`
	Shots           int            `msgpack:"shots"`
	Original        [][]float64    `msgpack:"original"`
	Filtered        [][]float64    `msgpack:"filtered,omitempty"`
	Unfiltered      [][]float64    `msgpack:"unfiltered,omitempty"`
	Image           [][]float64    `msgpack:"image,omitempty"`
	FilteredShots   int            `msgpack:"filtered_shots"`
	UnfilteredShots int            `msgpack:"unfiltered_shots"`
	Counts          map[string]int `msgpack:"counts"`
	Metrics         map[string]any `msgpack:"metrics"`
}

// Artifact flattens the result.
func (r *Result) Artifact() Artifact {
	a := Artifact{
		ID:            r.ID,
		Transform:     r.Experiment.Transform.String(),
		FilterType:    r.Experiment.FilterType.String(),
		D0:            r.Experiment.D0,
		Normalization: r.Experiment.Normalization.String(),
		Shots:         r.Experiment.Shots,
		Original:      rows(r.Original),
		Image:         rows(r.Image),
		Counts:        map[string]int(r.Histogram),
	}

	if r.Reconstruction != nil {
		a.Filtered = rows(r.Reconstruction.Filtered)
		a.Unfiltered = rows(r.Reconstruction.Unfiltered)
		a.FilteredShots = r.Reconstruction.FilteredShots
		a.UnfilteredShots = r.Reconstruction.UnfilteredShots
	}
	if r.Metrics != nil {
		a.Metrics = r.Metrics.ExportMetrics()
	}

	return a
}

// Encode writes the result as msgpack.
func (r *Result) Encode(w io.Writer) error {
	if err := msgpack.NewEncoder(w).Encode(r.Artifact()); err != nil {
		return fmt.Errorf("encoding result %s: %w", r.ID, err)
	}
	return nil
}

// DecodeArtifact reads a result written by Encode.
func DecodeArtifact(rd io.Reader) (Artifact, error) {
	var a Artifact
	if err := msgpack.NewDecoder(rd).Decode(&a); err != nil {
		return a, fmt.Errorf("decoding artifact: %w", err)
	}
	return a, nil
}

func rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}

	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
