package qfilter

import "math"

// QFT2 applies the two-point QFT to (q0, q1), q0 being the low bit.
func QFT2(c *Circuit, q0, q1 int) *Circuit {
	c.H(q1)
	c.CP(math.Pi/2, q0, q1)
	c.H(q0)
	c.Swap(q0, q1)
	return c
}

// InverseQFT2 undoes QFT2.
func InverseQFT2(c *Circuit, q0, q1 int) *Circuit {
	c.Swap(q0, q1)
	c.H(q0)
	c.CP(-math.Pi/2, q0, q1)
	c.H(q1)
	return c
}

/*
QFT appends the quantum Fourier transform over qubits, qubits[0] being the
least significant. Working down from the top qubit, each one gets a Hadamard
followed by controlled phases of π/2^(top-j) from every lower qubit j. The
register order is then reversed with swaps. An empty register is a no-op.
*/
func QFT(c *Circuit, qubits Register) *Circuit {
	n := len(qubits)
	for top := n - 1; top >= 0; top-- {
		c.H(qubits[top])
		for j := 0; j < top; j++ {
			c.CP(math.Pi/math.Exp2(float64(top-j)), qubits[j], qubits[top])
		}
	}
	for i := 0; i < n/2; i++ {
		c.Swap(qubits[i], qubits[n-1-i])
	}
	return c
}

// InverseQFT appends the exact reverse of QFT with negated phases.
func InverseQFT(c *Circuit, qubits Register) *Circuit {
	forward := QFT(NewCircuit(c.NumQubits), qubits)
	return c.Append(forward.Inverse())
}
