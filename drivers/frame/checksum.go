package frame

// ChecksumFunc computes a one-byte checksum over the covered bytes.
// Each serial device family carries its own rule; layouts are parameterized
// with the rule rather than hardcoding one.
type ChecksumFunc func(p []byte) byte

// SumComplement is the two's-complement of the byte sum modulo 256
// ((~sum + 1) & 0xFF). Used by the ZPHS01C family: the sum of all covered
// bytes plus the checksum is zero.
func SumComplement(p []byte) byte {
	var s byte
	for _, b := range p {
		s += b
	}
	return ^s + 1
}

// SumLow is the low byte of the plain byte sum.
func SumLow(p []byte) byte {
	var s byte
	for _, b := range p {
		s += b
	}
	return s
}

// XOR folds the covered bytes with exclusive-or.
func XOR(p []byte) byte {
	var s byte
	for _, b := range p {
		s ^= b
	}
	return s
}

// Verify reports whether the received checksum matches fn over covered.
func Verify(fn ChecksumFunc, covered []byte, received byte) bool {
	return fn(covered) == received
}
