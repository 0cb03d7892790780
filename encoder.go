package fecal

import "github.com/fec-al/fecal/internal/gf256"

// Encoder produces an unbounded stream of recovery symbols for a fixed set
// of K original symbols. It amortizes the cost of scanning all originals
// into per-lane running sums computed once in NewEncoder, so each Encode
// call is O(K/pairAddRate + columnLaneCount*columnSumCount + symbolBytes)
// rather than O(K).
//
// An Encoder is not safe for concurrent use; distinct Encoders share no
// state and may be used concurrently with one another.
type Encoder struct {
	window encoderWindow

	// laneSums[lane][sumIndex] accumulates a linear combination of every
	// original column in that lane: sum 0 is plain XOR parity, sum 1 is
	// XOR of column*ColumnValue(column), sum 2 is the same with
	// ColumnValue squared.
	laneSums [columnLaneCount][columnSumCount][]byte

	productWorkspace []byte
}

// NewEncoder builds an encoder for inputCount symbols covering totalBytes
// of application data. input must have length inputCount; input[c] must be
// at least columnBytes(c) bytes for every column c (symbolBytes for all
// but the last column, finalBytes for the last). The encoder keeps these
// slices read-only for as long as it is used; the caller must not mutate
// or release them.
func NewEncoder(inputCount int, input [][]byte, totalBytes uint64) (*Encoder, error) {
	e := &Encoder{}

	if err := e.window.setParameters(inputCount, totalBytes); err != nil {
		return nil, err
	}
	if len(input) != inputCount {
		return nil, ErrInvalidInput
	}
	for c, data := range input {
		if len(data) < e.window.columnBytes(c) {
			return nil, ErrInvalidInput
		}
	}
	e.window.setInput(input)

	symbolBytes := e.window.symbolBytes
	for lane := 0; lane < columnLaneCount; lane++ {
		for sumIndex := 0; sumIndex < columnSumCount; sumIndex++ {
			e.laneSums[lane][sumIndex] = make([]byte, symbolBytes)
		}
	}
	e.productWorkspace = make([]byte, symbolBytes)

	for column := 0; column < inputCount; column++ {
		data := input[column]
		columnBytes := e.window.columnBytes(column)
		lane := column % columnLaneCount
		cx := columnValue(uint32(column))
		cx2 := gf256.Sqr(cx)

		gf256.AddMem(e.laneSums[lane][0][:columnBytes], data[:columnBytes])
		gf256.MulAddMem(e.laneSums[lane][1][:columnBytes], cx, data[:columnBytes])
		gf256.MulAddMem(e.laneSums[lane][2][:columnBytes], cx2, data[:columnBytes])
	}

	return e, nil
}

// Encode writes the recovery symbol for the given row into out, which must
// be exactly SymbolBytes() long. Rows are an unbounded, caller-chosen
// namespace: encoding the same row twice always produces the same bytes.
func (e *Encoder) Encode(row uint32, out []byte) error {
	symbolBytes := e.window.symbolBytes
	if len(out) != symbolBytes {
		return ErrInvalidInput
	}

	count := e.window.inputCount
	outSum := out
	outProduct := e.productWorkspace

	var prng pcgRand
	prng.seed(uint64(row), uint64(count))

	draws := pairCount(count)

	element1 := int(prng.next()) % count
	elementRX := int(prng.next()) % count
	copyColumn(outSum, e.window.originals[element1], e.window.columnBytes(element1))
	copyColumn(outProduct, e.window.originals[elementRX], e.window.columnBytes(elementRX))

	var sum, product xorSummer
	sum.init(outSum)
	product.init(outProduct)

	for i := 1; i < draws; i++ {
		element1 := int(prng.next()) % count
		elementRX := int(prng.next()) % count

		if e.window.isFinalColumn(element1) {
			gf256.AddMem(outSum[:e.window.finalBytes], e.window.originals[element1][:e.window.finalBytes])
		} else {
			sum.add(e.window.originals[element1])
		}

		if e.window.isFinalColumn(elementRX) {
			gf256.AddMem(outProduct[:e.window.finalBytes], e.window.originals[elementRX][:e.window.finalBytes])
		} else {
			product.add(e.window.originals[elementRX])
		}
	}

	for lane := uint32(0); lane < columnLaneCount; lane++ {
		opcode := rowOpcode(lane, row)

		mask := uint32(1)
		for sumIndex := 0; sumIndex < columnSumCount; sumIndex++ {
			if opcode&mask != 0 {
				sum.add(e.laneSums[lane][sumIndex])
			}
			mask <<= 1
		}
		for sumIndex := 0; sumIndex < columnSumCount; sumIndex++ {
			if opcode&mask != 0 {
				product.add(e.laneSums[lane][sumIndex])
			}
			mask <<= 1
		}
	}

	sum.finalize()
	product.finalize()

	gf256.MulAddMem(outSum, rowValue(row), outProduct)

	return nil
}

// SymbolBytes returns the fixed length every recovery symbol (and every
// non-final original) must have.
func (e *Encoder) SymbolBytes() int {
	return e.window.symbolBytes
}

// copyColumn copies the first n bytes of src into dst and zero-fills the
// remainder of dst, used to seed the sum/product accumulators from a
// (possibly short, final-column) original.
func copyColumn(dst, src []byte, n int) {
	copy(dst, src[:n])
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
