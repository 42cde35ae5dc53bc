package qfilter

// Qubit layout of the NEQR image register. Basis index bit k is qubit k.
const (
	IntensityQubits = 8
	PositionQubits  = 2

	// PositionCol is the least significant position qubit, PositionRow the
	// most significant one.
	PositionCol = IntensityQubits
	PositionRow = IntensityQubits + 1
	Ancilla     = IntensityQubits + PositionQubits

	NumQubits = IntensityQubits + PositionQubits + 1
)

// Register is an ordered list of qubit indices, least significant first.
type Register []int

// IntensityRegister returns q0..q7.
func IntensityRegister() Register {
	reg := make(Register, IntensityQubits)
	for i := range reg {
		reg[i] = i
	}
	return reg
}

// PositionRegister returns the two position qubits, column bit first.
func PositionRegister() Register {
	return Register{PositionCol, PositionRow}
}

/*
Value reads the register out of a basis index, treating the first qubit in
the register as the least significant bit.
*/
func (r Register) Value(index int) int {
	v := 0
	for i, q := range r {
		v |= ((index >> q) & 1) << i
	}
	return v
}
