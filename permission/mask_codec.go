package permission

import "encoding/binary"

// MaskSize is the encoded length of a [Mask32].
const MaskSize = 4

// EncodeMask serializes a mask as 4 big-endian bytes. It is the wire form
// used in token claims.
func EncodeMask(mask Mask32) []byte {
	b := make([]byte, MaskSize)
	binary.BigEndian.PutUint32(b, uint32(mask))
	return b
}

// DecodeMask parses the output of [EncodeMask]. Inputs of the wrong length
// or with the sign bit set are rejected.
func DecodeMask(data []byte) (Mask32, error) {
	if len(data) != MaskSize {
		return 0, ErrInvalidMaskSize
	}
	m := Mask32(binary.BigEndian.Uint32(data))
	if !m.Valid() {
		return 0, ErrInvalidBit
	}
	return m, nil
}
