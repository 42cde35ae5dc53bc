package qfilter

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/theapemachine/errnie"
	"gonum.org/v1/gonum/stat/distuv"
)

var ErrInvalidShots = errors.New("shots must be positive")

/*
Backend executes a circuit with every qubit measured and returns the counts
per observed bitstring. The counts always sum to shots.
*/
type Backend interface {
	Name() string
	Run(ctx context.Context, circuit *Circuit, shots int) (Histogram, error)
}

/*
Simulator is a local state-vector backend. It prepares |0...0⟩, applies the
circuit exactly and draws shots from the resulting Born distribution.
*/
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
	src rand.Source
}

// NewSimulator returns a simulator whose sampling is reproducible for a
// given seed.
func NewSimulator(seed uint64) *Simulator {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Simulator{src: src, rng: rand.New(src)}
}

func (s *Simulator) Name() string {
	return "statevector_simulator"
}

// Statevector returns the exact state produced by the circuit.
func (s *Simulator) Statevector(circuit *Circuit) (*QuantumState, error) {
	qs := NewQuantumState(circuit.NumQubits)
	if err := circuit.Apply(qs); err != nil {
		return nil, err
	}
	return qs, nil
}

func (s *Simulator) Run(ctx context.Context, circuit *Circuit, shots int) (Histogram, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidShots, shots)
	}

	qs, err := s.Statevector(circuit)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dist := distuv.NewCategorical(qs.Probabilities(), s.src)
	samples := make(map[int]int)
	for shot := 0; shot < shots; shot++ {
		samples[int(dist.Rand())]++
	}

	h := make(Histogram, len(samples))
	for index, count := range samples {
		h[Bitstring(index, circuit.NumQubits)] = count
	}

	errnie.Debug("Simulator.Run - %d shots over %d outcomes", shots, len(h))
	return h, nil
}

// Collapse measures a fresh copy of the circuit's state once.
func (s *Simulator) Collapse(circuit *Circuit) (string, error) {
	qs, err := s.Statevector(circuit)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return Bitstring(qs.Measure(s.rng), circuit.NumQubits), nil
}
