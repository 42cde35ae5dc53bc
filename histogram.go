package qfilter

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var ErrMalformedBitstring = errors.New("malformed bitstring")

/*
Histogram maps measured bitstrings to counts. Keys follow the hardware
convention of highest qubit first, so for the NEQR register:

	index 0      ancilla
	index 1      position row bit
	index 2      position col bit
	index 3..10  intensity, most significant bit first
*/
type Histogram map[string]int

// Total is the number of shots in the histogram.
func (h Histogram) Total() int {
	total := 0
	for _, count := range h {
		total += count
	}
	return total
}

// Keys returns the bitstrings in lexical order.
func (h Histogram) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Outcome is a single decoded measurement.
type Outcome struct {
	Ancilla   int
	Row       int
	Col       int
	Intensity int
}

// DecodeOutcome splits one histogram key into its registers.
func DecodeOutcome(bits string) (Outcome, error) {
	var out Outcome
	if len(bits) != NumQubits {
		return out, fmt.Errorf("%w: %q has %d bits, expected %d", ErrMalformedBitstring, bits, len(bits), NumQubits)
	}

	v, err := parseBits(bits, NumQubits)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedBitstring, err)
	}

	out.Ancilla = v >> Ancilla & 1
	out.Row = v >> PositionRow & 1
	out.Col = v >> PositionCol & 1
	out.Intensity = IntensityRegister().Value(v)
	return out, nil
}

/*
Partition splits a histogram on the ancilla bit into the filtered (ancilla=1)
and unfiltered (ancilla=0) populations. Every entry lands in exactly one of
the two.
*/
func Partition(h Histogram) (filtered, unfiltered Histogram, err error) {
	filtered = make(Histogram)
	unfiltered = make(Histogram)

	for bits, count := range h {
		if count < 0 {
			return nil, nil, fmt.Errorf("%w: negative count %d for %q", ErrMalformedBitstring, count, bits)
		}

		out, err := DecodeOutcome(bits)
		if err != nil {
			return nil, nil, err
		}

		if out.Ancilla == 1 {
			filtered[bits] += count
		} else {
			unfiltered[bits] += count
		}
	}

	return filtered, unfiltered, nil
}

// Normalization chooses the denominator used when averaging intensities.
type Normalization int

const (
	// NormalizeGroup divides each contribution by the shot count of the
	// whole population.
	NormalizeGroup Normalization = iota
	// NormalizePixel divides by the shot count observed at that pixel,
	// giving the conditional mean intensity per position.
	NormalizePixel
)

func (n Normalization) String() string {
	if n == NormalizePixel {
		return "pixel"
	}
	return "group"
}

// Reconstruction holds the two images recovered from a filtered run.
type Reconstruction struct {
	Filtered        *mat.Dense
	Unfiltered      *mat.Dense
	FilteredShots   int
	UnfilteredShots int
}

// Reconstruct partitions h and rebuilds an image from each population.
func Reconstruct(h Histogram, norm Normalization) (*Reconstruction, error) {
	filtered, unfiltered, err := Partition(h)
	if err != nil {
		return nil, err
	}

	rec := &Reconstruction{
		FilteredShots:   filtered.Total(),
		UnfilteredShots: unfiltered.Total(),
	}

	if rec.Filtered, err = ReconstructImage(filtered, norm); err != nil {
		return nil, err
	}
	if rec.Unfiltered, err = ReconstructImage(unfiltered, norm); err != nil {
		return nil, err
	}

	return rec, nil
}

/*
ReconstructImage turns a histogram into a 2×2 matrix of expected intensities.
Each outcome adds intensity × count / denominator to its pixel. An empty
histogram, or a pixel that was never observed under NormalizePixel, yields
zero. Values are not clamped.
*/
func ReconstructImage(h Histogram, norm Normalization) (*mat.Dense, error) {
	img := mat.NewDense(ImageSize, ImageSize, nil)
	total := h.Total()
	if total == 0 {
		return img, nil
	}

	outcomes := make(map[string]Outcome, len(h))
	pixelTotals := mat.NewDense(ImageSize, ImageSize, nil)
	for bits, count := range h {
		out, err := DecodeOutcome(bits)
		if err != nil {
			return nil, err
		}
		outcomes[bits] = out
		pixelTotals.Set(out.Row, out.Col, pixelTotals.At(out.Row, out.Col)+float64(count))
	}

	for bits, count := range h {
		out := outcomes[bits]

		denominator := float64(total)
		if norm == NormalizePixel {
			denominator = pixelTotals.At(out.Row, out.Col)
		}
		if denominator == 0 {
			continue
		}

		weight := float64(out.Intensity) * float64(count) / denominator
		img.Set(out.Row, out.Col, img.At(out.Row, out.Col)+weight)
	}

	return img, nil
}

// ImageMatrix converts an Image to a float matrix for side-by-side display.
func ImageMatrix(img Image) *mat.Dense {
	m := mat.NewDense(ImageSize, ImageSize, nil)
	for r := 0; r < ImageSize; r++ {
		for c := 0; c < ImageSize; c++ {
			m.Set(r, c, float64(img[r][c]))
		}
	}
	return m
}
