package qfilter

import (
	"context"
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

// exactHistogram turns the circuit's Born distribution into counts. Every
// probability of the 2×2 filter circuits is a multiple of 1/64, so 6400
// shots give integer counts.
func exactHistogram(c *Circuit, shots int) Histogram {
	qs, err := NewSimulator(1).Statevector(c)
	if err != nil {
		panic(err)
	}

	h := make(Histogram)
	for i, p := range qs.Probabilities() {
		if n := int(math.Round(p * float64(shots))); n > 0 {
			h[Bitstring(i, c.NumQubits)] = n
		}
	}
	return h
}

func TestFilterCircuit(t *testing.T) {
	Convey("Given the exact distribution of the low-pass circuit", t, func() {
		c, err := BuildFilterCircuit(DefaultImage(), LowPass, DefaultD0)
		So(err, ShouldBeNil)

		qs, err := NewSimulator(1).Statevector(c)
		So(err, ShouldBeNil)

		Convey("The state should stay normalised", func() {
			So(qs.Norm(), ShouldAlmostEqual, 1.0, 1e-12)
		})

		h := exactHistogram(c, 6400)
		So(h.Total(), ShouldEqual, 6400)

		Convey("A quarter of the shots should be kept", func() {
			rec, err := Reconstruct(h, NormalizePixel)
			So(err, ShouldBeNil)
			So(rec.FilteredShots, ShouldEqual, 1600)
			So(rec.UnfilteredShots, ShouldEqual, 4800)

			Convey("And the kept image should be the mean intensity everywhere", func() {
				for r := 0; r < 2; r++ {
					for col := 0; col < 2; col++ {
						So(rec.Filtered.At(r, col), ShouldAlmostEqual, 138.75, 1e-9)
					}
				}
			})

			Convey("And the rejected image should keep the detail", func() {
				So(rec.Unfiltered.At(0, 0), ShouldAlmostEqual, 46.25, 1e-9)
				So(rec.Unfiltered.At(1, 1), ShouldAlmostEqual, 216.25, 1e-9)
			})
		})

		Convey("Group normalisation should divide by the population size", func() {
			rec, err := Reconstruct(h, NormalizeGroup)
			So(err, ShouldBeNil)
			So(rec.Filtered.At(0, 1), ShouldAlmostEqual, 555.0/16, 1e-9)
		})
	})

	Convey("Given the high-pass circuit", t, func() {
		low, err := BuildFilterCircuit(DefaultImage(), LowPass, DefaultD0)
		So(err, ShouldBeNil)
		high, err := BuildFilterCircuit(DefaultImage(), HighPass, DefaultD0)
		So(err, ShouldBeNil)

		Convey("Its kept and rejected images should swap with the low-pass ones", func() {
			lowRec, err := Reconstruct(exactHistogram(low, 6400), NormalizePixel)
			So(err, ShouldBeNil)
			highRec, err := Reconstruct(exactHistogram(high, 6400), NormalizePixel)
			So(err, ShouldBeNil)

			So(highRec.FilteredShots, ShouldEqual, 4800)
			So(mat.EqualApprox(highRec.Filtered, lowRec.Unfiltered, 1e-9), ShouldBeTrue)
			So(mat.EqualApprox(highRec.Unfiltered, lowRec.Filtered, 1e-9), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a filter experiment on the simulator", t, func() {
		cfg := NewConfig()
		cfg.Shots = 8192
		exp := NewExperiment(cfg, DefaultImage())
		exp.FilterType = LowPass

		res, err := Run(context.Background(), exp, NewSimulator(5))
		So(err, ShouldBeNil)

		Convey("Shots should be conserved and fully partitioned", func() {
			So(res.Histogram.Total(), ShouldEqual, 8192)
			So(res.Reconstruction.FilteredShots+res.Reconstruction.UnfilteredShots, ShouldEqual, 8192)
			So(res.Metrics.Shots, ShouldEqual, 8192)
		})

		Convey("About a quarter of the shots should be kept", func() {
			So(res.Metrics.FilteredFraction(), ShouldAlmostEqual, 0.25, 0.03)
		})

		Convey("The result should carry the original image and circuit metrics", func() {
			So(mat.Equal(res.Original, ImageMatrix(DefaultImage())), ShouldBeTrue)
			So(res.ID, ShouldNotBeEmpty)
			So(res.Metrics.Depth, ShouldBeGreaterThan, 0)
			So(res.Metrics.Backend, ShouldEqual, "statevector_simulator")
			So(res.Metrics.ExportMetrics()["shots"], ShouldEqual, 8192)
		})
	})

	Convey("Given a negative experiment", t, func() {
		exp := NewExperiment(NewConfig(), DefaultImage())
		exp.Transform = TransformNegative
		exp.Normalization = NormalizePixel
		exp.Shots = 2048

		res, err := Run(context.Background(), exp, NewSimulator(8))
		So(err, ShouldBeNil)

		Convey("Every pixel should be inverted exactly", func() {
			So(res.Reconstruction, ShouldBeNil)
			So(mat.Equal(res.Image, mat.NewDense(2, 2, []float64{255, 155, 55, 0})), ShouldBeTrue)
		})
	})

	Convey("Invalid experiments should fail before running", t, func() {
		exp := NewExperiment(NewConfig(), DefaultImage())
		exp.Shots = 0
		_, err := Run(context.Background(), exp, NewSimulator(1))
		So(errors.Is(err, ErrInvalidShots), ShouldBeTrue)

		exp = NewExperiment(NewConfig(), DefaultImage())
		exp.FilterType = FilterType(9)
		_, err = Run(context.Background(), exp, NewSimulator(1))
		So(errors.Is(err, ErrUnknownFilter), ShouldBeTrue)
	})
}

func TestRunHistogramDump(t *testing.T) {
	Convey("Given a run that counts histogram dumps", t, func() {
		dumps := 0
		original := dumpHistogram
		dumpHistogram = func(h Histogram) string {
			dumps++
			return original(h)
		}
		Reset(func() { dumpHistogram = original })

		exp := NewExperiment(NewConfig(), DefaultImage())
		exp.Shots = 64

		Convey("Nothing should be dumped with debug off", func() {
			_, err := Run(context.Background(), exp, NewSimulator(1))
			So(err, ShouldBeNil)
			So(dumps, ShouldEqual, 0)
		})

		Convey("The histogram should be dumped once with debug on", func() {
			exp.Debug = true
			_, err := Run(context.Background(), exp, NewSimulator(1))
			So(err, ShouldBeNil)
			So(dumps, ShouldEqual, 1)
		})
	})
}
