/*
 * FEC-AL: a convolutional forward error correction codec over GF(2^8),
 * built on the Siamese code construction.
 */

package fecal

// Code construction constants. These are fixed by the Siamese matrix
// construction; changing any of them breaks interoperability with any
// other implementation of this code.
const (
	// columnLaneCount is the number of parallel lanes columns are
	// distributed across. Lane(column) = column % columnLaneCount.
	columnLaneCount = 8

	// columnSumCount is the number of running sums maintained per lane.
	// Sum 0 is the XOR parity of all lane columns, sum 1 is the XOR of
	// each column times its ColumnValue, sum 2 is the same times
	// ColumnValue^2. This cannot be changed without touching the opcode
	// math below, which hard-codes a 3-sum layout.
	columnSumCount = 3

	// columnValuePeriod is the period of the ColumnValue LCG; it visits
	// every value in [3,255] exactly once before repeating.
	columnValuePeriod = 253

	// rowValuePeriod is the period of RowValue, visiting every value in
	// [1,255] exactly once before repeating.
	rowValuePeriod = 255

	// pairAddRate determines how many pair draws are performed per row:
	// ceil(K / pairAddRate).
	pairAddRate = 16

	// rowOpcodeArbitraryOffset tunes the density of the generated matrix
	// for small row indices, which are the common case for the first
	// block of data. It is folded into the opcode hash input.
	rowOpcodeArbitraryOffset = 3
)

const (
	opcodeSumMask  = (1 << (columnSumCount * 2)) - 1 // 0x3F
	opcodeZeroFill = 1 << ((columnSumCount - 1) * 2) // 0x10
)

// int32Hash is Thomas Wang's 32-bit integer hash
// (http://burtleburtle.net/bob/hash/integer.html). It is the normative
// mixing function behind RowOpcode; any reimplementation of this codec
// must reproduce it bit for bit.
func int32Hash(key uint32) uint32 {
	key += ^(key << 15)
	key ^= key >> 10
	key += key << 3
	key ^= key >> 6
	key += ^(key << 11)
	key ^= key >> 16
	return key
}

// columnValue returns the GF(2^8) multiplier associated with column c.
// Restricted to c in [0, columnValuePeriod), this is a permutation of
// [3, 255]: a linear-congruential walk with step 199 over a 253-period
// ring, offset by 3.
func columnValue(c uint32) byte {
	return byte(3 + (c*199)%columnValuePeriod)
}

// rowValue returns the GF(2^8) multiplier associated with recovery row r.
func rowValue(r uint32) byte {
	return byte(1 + (r+1)%rowValuePeriod)
}

// rowOpcode returns the 6-bit operation code selecting which lane sums of
// `lane` contribute to recovery row `row`: bits 0..2 select which of
// Sum[0..3) feed the "sum" accumulator, bits 3..5 select which feed the
// "product" accumulator. A zero hash is replaced with opcodeZeroFill so
// that every (lane, row) pair references at least one lane sum.
func rowOpcode(lane, row uint32) uint32 {
	opcode := int32Hash(lane+(row+rowOpcodeArbitraryOffset)*columnLaneCount) & opcodeSumMask
	if opcode == 0 {
		return opcodeZeroFill
	}
	return opcode
}

// pairCount returns the number of pair draws ("ceil(k / pairAddRate)")
// performed per row during encode, matrix generation, and original-data
// elimination. All three MUST use the exact same PRNG sequence derived
// from this count to stay consistent with one another.
func pairCount(k int) int {
	return (k + pairAddRate - 1) / pairAddRate
}
