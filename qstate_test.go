package qfilter

import (
	"math"
	"math/rand/v2"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestQuantumStateGates(t *testing.T) {
	Convey("Given a fresh 3-qubit state", t, func() {
		qs := NewQuantumState(3)
		So(qs.Vector, ShouldHaveLength, 8)
		So(qs.Norm(), ShouldAlmostEqual, 1.0, 1e-12)

		Convey("X should move the amplitude to the flipped basis state", func() {
			qs.ApplyX(1)
			So(real(qs.Vector[2]), ShouldEqual, 1.0)
			So(real(qs.Vector[0]), ShouldEqual, 0.0)
		})

		Convey("Hadamard twice should be the identity", func() {
			qs.ApplyHadamard(2)
			So(real(qs.Vector[0]), ShouldAlmostEqual, 1/math.Sqrt2, 1e-12)
			So(real(qs.Vector[4]), ShouldAlmostEqual, 1/math.Sqrt2, 1e-12)

			qs.ApplyHadamard(2)
			So(real(qs.Vector[0]), ShouldAlmostEqual, 1.0, 1e-12)
			So(real(qs.Vector[4]), ShouldAlmostEqual, 0.0, 1e-12)
		})

		Convey("CCX should only flip when both controls are set", func() {
			qs.ApplyCCX(0, 1, 2)
			So(real(qs.Vector[0]), ShouldEqual, 1.0)

			qs.ApplyX(0)
			qs.ApplyX(1)
			qs.ApplyCCX(0, 1, 2)
			So(real(qs.Vector[7]), ShouldEqual, 1.0)
		})

		Convey("Swap should exchange qubit values", func() {
			qs.ApplyX(0)
			qs.ApplySwap(0, 2)
			So(real(qs.Vector[4]), ShouldEqual, 1.0)
			So(qs.Norm(), ShouldAlmostEqual, 1.0, 1e-12)
		})

		Convey("Controlled phase should only touch states with both bits set", func() {
			qs.ApplyHadamard(0)
			qs.ApplyHadamard(1)
			qs.ApplyCPhase(math.Pi, 0, 1)
			So(real(qs.Vector[3]), ShouldAlmostEqual, -0.5, 1e-12)
			So(real(qs.Vector[1]), ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("Out of range qubits should panic", func() {
			So(func() { qs.ApplyX(3) }, ShouldPanic)
		})
	})
}

func TestMeasure(t *testing.T) {
	Convey("Given a uniform superposition over two qubits", t, func() {
		qs := NewQuantumState(2)
		qs.ApplyHadamard(0)
		qs.ApplyHadamard(1)
		rng := rand.New(rand.NewPCG(7, 7))

		Convey("Measuring should collapse to a single basis state", func() {
			idx := qs.Measure(rng)
			So(idx, ShouldBeBetweenOrEqual, 0, 3)
			So(qs.Probabilities()[idx], ShouldEqual, 1.0)
			So(qs.Norm(), ShouldEqual, 1.0)

			Convey("And measuring again should give the same outcome", func() {
				So(qs.Measure(rng), ShouldEqual, idx)
			})
		})
	})
}

func TestBitstring(t *testing.T) {
	Convey("Bitstring should put the highest qubit first", t, func() {
		So(Bitstring(1, 4), ShouldEqual, "0001")
		So(Bitstring(1<<Ancilla|1<<PositionRow|0xC8, NumQubits), ShouldEqual, "11011001000")
	})
}
