package qfilter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/theapemachine/errnie"
)

var ErrUnknownFilter = errors.New("unknown filter type")

// FilterType selects which frequency components the oracle keeps.
type FilterType int

const (
	LowPass FilterType = iota
	HighPass
)

func (ft FilterType) String() string {
	switch ft {
	case LowPass:
		return "low_pass"
	case HighPass:
		return "high_pass"
	default:
		return fmt.Sprintf("FilterType(%d)", int(ft))
	}
}

// ParseFilterType accepts "low_pass"/"high_pass", also with dashes or as
// "low"/"high".
func ParseFilterType(s string) (FilterType, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "low_pass", "lowpass", "low":
		return LowPass, nil
	case "high_pass", "highpass", "high":
		return HighPass, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFilter, s)
}

/*
FilterOracle marks the ancilla with 1 for kept frequency components. With the
position register in the frequency basis, (0,0) is the DC component.

  - LowPass flips the ancilla exactly when both position qubits are 0.
  - HighPass sets the ancilla first, so the same flip clears it again at
    (0,0) and leaves it at 1 everywhere else.

The X/CCX/X body is self-inverse but the leading X of HighPass is not undone,
so the oracle must not be applied twice to the same ancilla without a reset.

d0 is carried for callers that record the intended cutoff. With two position
qubits there is one low bin and three high bins, so it has no effect.
*/
func FilterOracle(c *Circuit, pos [2]int, ancilla int, ft FilterType, d0 float64) error {
	if ft != LowPass && ft != HighPass {
		return fmt.Errorf("%w: %v", ErrUnknownFilter, ft)
	}

	errnie.Debug("FilterOracle - type %s, d0 %v", ft, d0)

	c.Barrier()
	if ft == HighPass {
		c.X(ancilla)
	}
	c.X(pos[0])
	c.X(pos[1])
	c.CCX(pos[0], pos[1], ancilla)
	c.X(pos[0])
	c.X(pos[1])
	c.Barrier()

	return nil
}

// Negate flips every intensity qubit, turning each pixel v into 255-v.
func Negate(c *Circuit) *Circuit {
	for _, q := range IntensityRegister() {
		c.X(q)
	}
	c.Barrier()
	return c
}
