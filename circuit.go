package qfilter

import (
	"fmt"
	"strings"
)

// Gate names understood by the simulator and the QASM exporter.
const (
	GateX       = "x"
	GateH       = "h"
	GateCP      = "cp"
	GateCCX     = "ccx"
	GateSwap    = "swap"
	GateBarrier = "barrier"
)

// Gate is one operation on a list of qubits. Controls come before targets.
type Gate struct {
	Name   string
	Qubits []int
	Params []float64
}

/*
Circuit is an ordered gate sequence over a fixed number of qubits. It is the
hand-off format between circuit construction and whatever backend executes
it, local or remote.
*/
type Circuit struct {
	NumQubits int
	Gates     []Gate
}

func NewCircuit(numQubits int) *Circuit {
	return &Circuit{NumQubits: numQubits}
}

func (c *Circuit) add(name string, params []float64, qubits ...int) *Circuit {
	for _, q := range qubits {
		if q < 0 || q >= c.NumQubits {
			panic(fmt.Sprintf("%s: qubit %d out of range for %d-qubit circuit", name, q, c.NumQubits))
		}
	}
	c.Gates = append(c.Gates, Gate{Name: name, Qubits: qubits, Params: params})
	return c
}

func (c *Circuit) X(q int) *Circuit { return c.add(GateX, nil, q) }

func (c *Circuit) H(q int) *Circuit { return c.add(GateH, nil, q) }

// CP adds a controlled phase rotation of theta.
func (c *Circuit) CP(theta float64, control, target int) *Circuit {
	return c.add(GateCP, []float64{theta}, control, target)
}

// CCX adds a doubly-controlled bit flip.
func (c *Circuit) CCX(c0, c1, target int) *Circuit {
	return c.add(GateCCX, nil, c0, c1, target)
}

func (c *Circuit) Swap(a, b int) *Circuit { return c.add(GateSwap, nil, a, b) }

// Barrier separates logical stages. It has no effect on the state.
func (c *Circuit) Barrier() *Circuit {
	c.Gates = append(c.Gates, Gate{Name: GateBarrier})
	return c
}

// Append copies the gates of other onto the end of c.
func (c *Circuit) Append(other *Circuit) *Circuit {
	for _, g := range other.Gates {
		c.Gates = append(c.Gates, g.clone())
	}
	return c
}

/*
Inverse returns the adjoint circuit: the gate list reversed with every phase
negated. X, H, CCX and SWAP are their own inverses.
*/
func (c *Circuit) Inverse() *Circuit {
	inv := NewCircuit(c.NumQubits)
	for i := len(c.Gates) - 1; i >= 0; i-- {
		g := c.Gates[i].clone()
		for j := range g.Params {
			g.Params[j] = -g.Params[j]
		}
		inv.Gates = append(inv.Gates, g)
	}
	return inv
}

// Apply runs every gate against the state in order.
func (c *Circuit) Apply(qs *QuantumState) error {
	if qs.NumQubits != c.NumQubits {
		return fmt.Errorf("circuit has %d qubits, state has %d", c.NumQubits, qs.NumQubits)
	}

	for _, g := range c.Gates {
		switch g.Name {
		case GateX:
			qs.ApplyX(g.Qubits[0])
		case GateH:
			qs.ApplyHadamard(g.Qubits[0])
		case GateCP:
			qs.ApplyCPhase(g.Params[0], g.Qubits[0], g.Qubits[1])
		case GateCCX:
			qs.ApplyCCX(g.Qubits[0], g.Qubits[1], g.Qubits[2])
		case GateSwap:
			qs.ApplySwap(g.Qubits[0], g.Qubits[1])
		case GateBarrier:
		default:
			return fmt.Errorf("unsupported gate %q", g.Name)
		}
	}
	return nil
}

// Size is the number of gates, barriers excluded.
func (c *Circuit) Size() int {
	size := 0
	for _, g := range c.Gates {
		if g.Name != GateBarrier {
			size++
		}
	}
	return size
}

// Depth is the length of the longest chain of gates sharing a qubit.
func (c *Circuit) Depth() int {
	levels := make([]int, c.NumQubits)
	depth := 0
	for _, g := range c.Gates {
		if g.Name == GateBarrier {
			continue
		}
		level := 0
		for _, q := range g.Qubits {
			level = max(level, levels[q])
		}
		level++
		for _, q := range g.Qubits {
			levels[q] = level
		}
		depth = max(depth, level)
	}
	return depth
}

// Counts tallies gates by name.
func (c *Circuit) Counts() map[string]int {
	counts := make(map[string]int)
	for _, g := range c.Gates {
		if g.Name != GateBarrier {
			counts[g.Name]++
		}
	}
	return counts
}

/*
QASM renders the circuit as OpenQASM 2.0 with every qubit measured into the
classical bit of the same index, which is the layout the reconstructor
expects.
*/
func (c *Circuit) QASM() string {
	var b strings.Builder

	b.WriteString("OPENQASM 2.0;\n")
	b.WriteString("include \"qelib1.inc\";\n\n")
	fmt.Fprintf(&b, "qreg q[%d];\n", c.NumQubits)
	fmt.Fprintf(&b, "creg c[%d];\n\n", c.NumQubits)

	for _, g := range c.Gates {
		if g.Name == GateBarrier {
			fmt.Fprintf(&b, "barrier q;\n")
			continue
		}

		b.WriteString(g.Name)
		if len(g.Params) > 0 {
			params := make([]string, len(g.Params))
			for i, p := range g.Params {
				params[i] = fmt.Sprintf("%.17g", p)
			}
			fmt.Fprintf(&b, "(%s)", strings.Join(params, ","))
		}

		operands := make([]string, len(g.Qubits))
		for i, q := range g.Qubits {
			operands[i] = fmt.Sprintf("q[%d]", q)
		}
		fmt.Fprintf(&b, " %s;\n", strings.Join(operands, ","))
	}

	b.WriteString("\n")
	for q := 0; q < c.NumQubits; q++ {
		fmt.Fprintf(&b, "measure q[%d] -> c[%d];\n", q, q)
	}

	return b.String()
}

func (g Gate) clone() Gate {
	out := Gate{Name: g.Name}
	if g.Qubits != nil {
		out.Qubits = append([]int(nil), g.Qubits...)
	}
	if g.Params != nil {
		out.Params = append([]float64(nil), g.Params...)
	}
	return out
}
