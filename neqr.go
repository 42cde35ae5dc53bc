package qfilter

import (
	"errors"
	"fmt"
)

var ErrInvalidImage = errors.New("invalid image")

// ImageSize is the side length of the encoded image.
const ImageSize = 2

// Image is a 2×2 8-bit grayscale image, indexed [row][col].
type Image [ImageSize][ImageSize]uint8

// DefaultImage is the 0, 100, 200, 255 fixture.
func DefaultImage() Image {
	return Image{{0, 100}, {200, 255}}
}

/*
NewImage validates a 2×2 matrix of pixel values and converts it to an Image.
Every value must be within [0, 255].
*/
func NewImage(pixels [][]int) (Image, error) {
	var img Image
	if len(pixels) != ImageSize {
		return img, fmt.Errorf("%w: expected %d rows, got %d", ErrInvalidImage, ImageSize, len(pixels))
	}

	for r, row := range pixels {
		if len(row) != ImageSize {
			return img, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrInvalidImage, r, len(row), ImageSize)
		}
		for c, v := range row {
			if v < 0 || v > 255 {
				return img, fmt.Errorf("%w: pixel (%d,%d) = %d outside [0,255]", ErrInvalidImage, r, c, v)
			}
			img[r][c] = uint8(v)
		}
	}

	return img, nil
}

/*
ImageFromBits builds an image from position codes ("00", "01", "10", "11",
row bit first) mapped to 8-character binary intensity strings, most
significant bit first.
*/
func ImageFromBits(pixels map[string]string) (Image, error) {
	var img Image
	if len(pixels) != ImageSize*ImageSize {
		return img, fmt.Errorf("%w: expected %d positions, got %d", ErrInvalidImage, ImageSize*ImageSize, len(pixels))
	}

	for pos := 0; pos < ImageSize*ImageSize; pos++ {
		code := PositionCode(pos)
		bits, ok := pixels[code]
		if !ok {
			return img, fmt.Errorf("%w: missing position %s", ErrInvalidImage, code)
		}

		v, err := parseBits(bits, IntensityQubits)
		if err != nil {
			return img, fmt.Errorf("%w: position %s: %v", ErrInvalidImage, code, err)
		}
		img[pos>>1][pos&1] = uint8(v)
	}

	return img, nil
}

// PositionCode formats a row-major pixel index as its two-bit code.
func PositionCode(pos int) string {
	return fmt.Sprintf("%d%d", pos>>1&1, pos&1)
}

// Bits returns the original string form of the image.
func (img Image) Bits() map[string]string {
	out := make(map[string]string, ImageSize*ImageSize)
	for pos := 0; pos < ImageSize*ImageSize; pos++ {
		out[PositionCode(pos)] = fmt.Sprintf("%08b", img[pos>>1][pos&1])
	}
	return out
}

// Pixel returns the intensity at a row-major position index.
func (img Image) Pixel(pos int) uint8 {
	return img[pos>>1][pos&1]
}

/*
Encode builds the NEQR circuit for img over NumQubits qubits.

The position register is put into uniform superposition. For every position
with a non-zero intensity, the position qubits whose code bit is 0 are
flipped so that "position equals code" becomes an all-ones control pattern,
one CCX per set intensity bit writes the value, and the flips are undone.
The ancilla is left at |0⟩.
*/
func Encode(img Image) *Circuit {
	c := NewCircuit(NumQubits)

	c.H(PositionCol)
	c.H(PositionRow)
	c.Barrier()

	for pos := 0; pos < ImageSize*ImageSize; pos++ {
		value := img.Pixel(pos)
		if value == 0 {
			continue
		}

		flips := make([]int, 0, PositionQubits)
		if pos&1 == 0 {
			flips = append(flips, PositionCol)
		}
		if pos>>1&1 == 0 {
			flips = append(flips, PositionRow)
		}

		for _, q := range flips {
			c.X(q)
		}
		for bit := 0; bit < IntensityQubits; bit++ {
			if value>>bit&1 == 1 {
				c.CCX(PositionCol, PositionRow, bit)
			}
		}
		for _, q := range flips {
			c.X(q)
		}
		c.Barrier()
	}

	return c
}

func parseBits(bits string, width int) (int, error) {
	if len(bits) != width {
		return 0, fmt.Errorf("expected %d bits, got %d in %q", width, len(bits), bits)
	}

	v := 0
	for _, ch := range bits {
		switch ch {
		case '0':
			v <<= 1
		case '1':
			v = v<<1 | 1
		default:
			return 0, fmt.Errorf("non-binary character %q in %q", ch, bits)
		}
	}
	return v, nil
}
