package qfilter

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

/*
QuantumState is a dense state vector over n qubits. Amplitude i belongs to the
basis state whose bit k is the value of qubit k.
*/
type QuantumState struct {
	Vector    []complex128
	NumQubits int
}

// NewQuantumState returns |0...0⟩ over numQubits qubits.
func NewQuantumState(numQubits int) *QuantumState {
	vec := make([]complex128, 1<<numQubits)
	vec[0] = 1
	return &QuantumState{Vector: vec, NumQubits: numQubits}
}

// NewBasisState returns the computational basis state |index⟩.
func NewBasisState(numQubits, index int) *QuantumState {
	qs := &QuantumState{Vector: make([]complex128, 1<<numQubits), NumQubits: numQubits}
	qs.Vector[index] = 1
	return qs
}

func (qs *QuantumState) Clone() *QuantumState {
	vec := make([]complex128, len(qs.Vector))
	copy(vec, qs.Vector)
	return &QuantumState{Vector: vec, NumQubits: qs.NumQubits}
}

func (qs *QuantumState) checkQubit(q int) {
	if q < 0 || q >= qs.NumQubits {
		panic(fmt.Sprintf("qubit %d out of range for %d-qubit state", q, qs.NumQubits))
	}
}

// ApplyX flips qubit q.
func (qs *QuantumState) ApplyX(q int) {
	qs.checkQubit(q)
	bit := 1 << q
	for i := range qs.Vector {
		if i&bit == 0 {
			j := i | bit
			qs.Vector[i], qs.Vector[j] = qs.Vector[j], qs.Vector[i]
		}
	}
}

func (qs *QuantumState) ApplyHadamard(q int) {
	// H = 1/√2 * [1  1]
	//           [1 -1]
	qs.checkQubit(q)
	bit := 1 << q
	h := complex(1/math.Sqrt2, 0)
	for i := range qs.Vector {
		if i&bit == 0 {
			j := i | bit
			a, b := qs.Vector[i], qs.Vector[j]
			qs.Vector[i] = h * (a + b)
			qs.Vector[j] = h * (a - b)
		}
	}
}

// ApplyCPhase multiplies every amplitude with both qubits set by e^(iθ).
func (qs *QuantumState) ApplyCPhase(theta float64, control, target int) {
	qs.checkQubit(control)
	qs.checkQubit(target)
	mask := 1<<control | 1<<target
	phase := cmplx.Exp(complex(0, theta))
	for i := range qs.Vector {
		if i&mask == mask {
			qs.Vector[i] *= phase
		}
	}
}

// ApplyCCX flips target when both controls are set (Toffoli).
func (qs *QuantumState) ApplyCCX(c0, c1, target int) {
	qs.checkQubit(c0)
	qs.checkQubit(c1)
	qs.checkQubit(target)
	mask := 1<<c0 | 1<<c1
	bit := 1 << target
	for i := range qs.Vector {
		if i&mask == mask && i&bit == 0 {
			j := i | bit
			qs.Vector[i], qs.Vector[j] = qs.Vector[j], qs.Vector[i]
		}
	}
}

func (qs *QuantumState) ApplySwap(a, b int) {
	qs.checkQubit(a)
	qs.checkQubit(b)
	if a == b {
		return
	}
	ba, bb := 1<<a, 1<<b
	for i := range qs.Vector {
		// Visit each pair once, from the side where a=1 and b=0.
		if i&ba != 0 && i&bb == 0 {
			j := i ^ ba ^ bb
			qs.Vector[i], qs.Vector[j] = qs.Vector[j], qs.Vector[i]
		}
	}
}

// Probabilities returns |a|² per basis state.
func (qs *QuantumState) Probabilities() []float64 {
	probs := make([]float64, len(qs.Vector))
	for i, amplitude := range qs.Vector {
		prob := cmplx.Abs(amplitude)
		probs[i] = prob * prob
	}
	return probs
}

// Norm is the total probability mass, 1 for any valid state.
func (qs *QuantumState) Norm() float64 {
	return floats.Sum(qs.Probabilities())
}

/*
Measure collapses the whole register to a single basis state drawn from the
Born distribution and returns its index.
*/
func (qs *QuantumState) Measure(rng *rand.Rand) int {
	probs := qs.Probabilities()
	total := floats.Sum(probs)

	r := rng.Float64() * total
	cumulativeProb := 0.0
	measured := -1
	for i, prob := range probs {
		if prob == 0 {
			continue
		}
		cumulativeProb += prob
		measured = i
		if r < cumulativeProb {
			break
		}
	}
	if measured < 0 {
		return -1
	}

	collapsed := make([]complex128, len(qs.Vector))
	collapsed[measured] = 1
	qs.Vector = collapsed
	return measured
}

// Bitstring formats a basis index the way hardware reports counts:
// highest qubit first.
func Bitstring(index, numQubits int) string {
	buf := make([]byte, numQubits)
	for q := 0; q < numQubits; q++ {
		if index>>q&1 == 1 {
			buf[numQubits-1-q] = '1'
		} else {
			buf[numQubits-1-q] = '0'
		}
	}
	return string(buf)
}
