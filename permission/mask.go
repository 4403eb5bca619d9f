package permission

// MaxBits is the number of usable bits in a [Mask32]. Bit 31 is the sign
// bit of a signed 32-bit integer and is never assigned.
const MaxBits = 31

// Mask32 is the bitmask-mode permission set of a role or user.
type Mask32 uint32

// Has reports whether the given bit is set.
func (m Mask32) Has(bit int) bool {
	if bit < 0 || bit >= MaxBits {
		return false
	}
	return m&(1<<bit) != 0
}

// Set sets the given bit in the mask.
func (m *Mask32) Set(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	*m |= 1 << bit
}

// Clear clears the given bit in the mask.
func (m *Mask32) Clear(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	*m &^= 1 << bit
}

// Raw returns the mask as an unsigned integer.
func (m Mask32) Raw() uint32 {
	return uint32(m)
}

// Valid reports whether the sign bit is clear.
func (m Mask32) Valid() bool {
	return m&(1<<MaxBits) == 0
}

// BitValue returns 2^bit, or 0 when bit is outside 0..30.
func BitValue(bit int) uint32 {
	if bit < 0 || bit >= MaxBits {
		return 0
	}
	return 1 << bit
}
