package fecal

import "github.com/fec-al/fecal/internal/gf256"

// Decoder collects original and recovery symbols for a fixed K and
// attempts to recover any originals that never arrived. A Decoder is not
// safe for concurrent use; distinct Decoders share no state.
//
// Decode is idempotent when no new symbols have arrived since the last
// call: AddOriginal/AddRecovery re-arm a fresh attempt, but calling Decode
// twice in a row with nothing new in between returns ErrNeedMoreData the
// second time without redoing any work.
type Decoder struct {
	win         decoderWindow
	matrixState recoveryMatrixState

	recoveryAttempted bool

	// laneSums[lane][sumIndex] is allocated lazily, the first time a
	// solution row's elimination actually needs it; only lanes/sums
	// referenced by rows used for the solution are ever computed.
	laneSums [columnLaneCount][columnSumCount][]byte

	productWorkspace []byte
}

// NewDecoder creates a decoder expecting inputCount original symbols
// covering totalBytes of application data.
func NewDecoder(inputCount int, totalBytes uint64) (*Decoder, error) {
	d := &Decoder{}
	if err := d.win.setParameters(inputCount, totalBytes); err != nil {
		return nil, err
	}
	d.win.allocate()
	d.matrixState.win = &d.win
	return d, nil
}

// SymbolBytes returns the fixed length every recovery symbol (and every
// non-final original) must have.
func (d *Decoder) SymbolBytes() int {
	return d.win.symbolBytes
}

// DecodeAttempted reports whether the most recent Decode call already ran
// Gaussian elimination against the data received so far, with no
// subsequent AddOriginal/AddRecovery to invalidate that attempt.
func (d *Decoder) DecodeAttempted() bool {
	return d.recoveryAttempted
}

// AddOriginal records the original symbol for the given column. Adding the
// same column twice is a no-op: the second call returns nil without
// changing any state.
func (d *Decoder) AddOriginal(column int, data []byte) error {
	if column < 0 || column >= d.win.inputCount || data == nil ||
		len(data) != d.win.columnBytes(column) {
		return ErrInvalidInput
	}
	if d.win.addOriginal(column, data) {
		d.recoveryAttempted = false
	}
	return nil
}

// AddRecovery records a recovery symbol for the given row. data is mutated
// in place by a later Decode call; the caller must not assume it is left
// unchanged. Adding the same row twice is a no-op.
func (d *Decoder) AddRecovery(row uint32, data []byte) error {
	if data == nil || len(data) != d.win.symbolBytes {
		return ErrInvalidInput
	}
	if d.win.addRecovery(data, row) {
		d.recoveryAttempted = false
	}
	return nil
}

// GetOriginal returns the original symbol for the given column if it has
// been received or recovered, or ErrNeedMoreData if it has not.
func (d *Decoder) GetOriginal(column int) ([]byte, error) {
	if column < 0 || column >= d.win.inputCount {
		return nil, ErrInvalidInput
	}
	data := d.win.originals[column].data
	if data == nil {
		return nil, ErrNeedMoreData
	}
	return data[:d.win.columnBytes(column)], nil
}

// Decode attempts to recover any original symbols that have not yet
// arrived. It returns (nil, nil) if every original has already been
// received, ErrNeedMoreData if there is not yet enough data (or the last
// attempt failed and nothing new has arrived since), or the recovered
// symbols on success.
func (d *Decoder) Decode() ([]RecoveredSymbol, error) {
	if d.win.originalGotCount >= d.win.inputCount {
		return nil, nil
	}
	if d.win.originalGotCount+len(d.win.recovery) < d.win.inputCount {
		return nil, ErrNeedMoreData
	}
	if d.recoveryAttempted {
		return nil, ErrNeedMoreData
	}
	d.recoveryAttempted = true

	d.matrixState.generateMatrix()

	if !d.matrixState.gaussianElimination() {
		return nil, ErrNeedMoreData
	}

	d.eliminateOriginalData()
	d.multiplyLowerTriangle()
	return d.backSubstitution(), nil
}

// eliminateOriginalData eliminates every received original from each
// solution row's data, using the same opcode-driven lane sums and pair
// draws as the encoder but restricted to originals the decoder actually
// has. After this, each solution row holds the linear combination of the
// lost originals alone: the right-hand side of the M x M system.
func (d *Decoder) eliminateOriginalData() {
	symbolBytes := d.win.symbolBytes
	if len(d.productWorkspace) != symbolBytes {
		d.productWorkspace = make([]byte, symbolBytes)
	}

	for i := range d.win.recovery {
		rec := &d.win.recovery[i]
		if !rec.usedForSolution {
			continue
		}

		for j := range d.productWorkspace {
			d.productWorkspace[j] = 0
		}

		var sum, product xorSummer
		sum.init(rec.data)
		product.init(d.productWorkspace)

		for lane := uint32(0); lane < columnLaneCount; lane++ {
			opcode := rowOpcode(lane, rec.row)

			mask := uint32(1)
			for s := 0; s < columnSumCount; s++ {
				if opcode&mask != 0 {
					sum.add(d.getLaneSum(int(lane), s))
				}
				mask <<= 1
			}
			for s := 0; s < columnSumCount; s++ {
				if opcode&mask != 0 {
					product.add(d.getLaneSum(int(lane), s))
				}
				mask <<= 1
			}
		}

		inputCount := d.win.inputCount
		var prng pcgRand
		prng.seed(uint64(rec.row), uint64(inputCount))
		draws := pairCount(inputCount)

		for k := 0; k < draws; k++ {
			element1 := int(prng.next()) % inputCount
			if original1 := d.win.originals[element1].data; original1 != nil {
				if d.win.isFinalColumn(element1) {
					gf256.AddMem(rec.data[:d.win.finalBytes], original1[:d.win.finalBytes])
				} else {
					sum.add(original1)
				}
			}

			elementRX := int(prng.next()) % inputCount
			if originalRX := d.win.originals[elementRX].data; originalRX != nil {
				if d.win.isFinalColumn(elementRX) {
					gf256.AddMem(d.productWorkspace[:d.win.finalBytes], originalRX[:d.win.finalBytes])
				} else {
					product.add(originalRX)
				}
			}
		}

		sum.finalize()
		product.finalize()

		gf256.MulAddMem(rec.data, rowValue(rec.row), d.productWorkspace)
	}
}

// getLaneSum returns (computing and caching on first use) the running sum
// for (lane, sumIndex) over received originals only: sum 0 is XOR parity,
// sum 1/2 are XOR of ColumnValue/ColumnValue^2 times each received column
// in that lane.
func (d *Decoder) getLaneSum(lane, sumIndex int) []byte {
	if d.laneSums[lane][sumIndex] != nil {
		return d.laneSums[lane][sumIndex]
	}

	symbolBytes := d.win.symbolBytes
	sum := make([]byte, symbolBytes)
	inputEnd := d.win.inputCount - 1

	if sumIndex == 0 {
		var summer xorSummer
		summer.init(sum)
		for column := lane; column < inputEnd; column += columnLaneCount {
			if data := d.win.originals[column].data; data != nil {
				summer.add(data)
			}
		}
		if inputEnd%columnLaneCount == lane {
			if data := d.win.originals[inputEnd].data; data != nil {
				gf256.AddMem(sum[:d.win.finalBytes], data[:d.win.finalBytes])
			}
		}
		summer.finalize()
		d.laneSums[lane][sumIndex] = sum
		return sum
	}

	for column := lane; column < inputEnd; column += columnLaneCount {
		data := d.win.originals[column].data
		if data == nil {
			continue
		}
		cx := columnValue(uint32(column))
		if sumIndex == 2 {
			cx = gf256.Sqr(cx)
		}
		gf256.MulAddMem(sum, cx, data)
	}
	if inputEnd%columnLaneCount == lane {
		if data := d.win.originals[inputEnd].data; data != nil {
			cx := columnValue(uint32(inputEnd))
			if sumIndex == 2 {
				cx = gf256.Sqr(cx)
			}
			gf256.MulAddMem(sum[:d.win.finalBytes], cx, data[:d.win.finalBytes])
		}
	}

	d.laneSums[lane][sumIndex] = sum
	return sum
}

// multiplyLowerTriangle multiplies the solved lower triangle into every
// later solution row, in pivot (left-to-right solution) order, so that
// back-substitution only has to deal with the diagonal and upper
// triangle.
func (d *Decoder) multiplyLowerTriangle() {
	columns := len(d.matrixState.columns)
	if columns == 0 {
		return
	}

	for colI := 0; colI < columns-1; colI++ {
		rowIdxI := d.matrixState.pivots[colI]
		srcData := d.win.recovery[rowIdxI].data

		for colJ := colI + 1; colJ < columns; colJ++ {
			rowIdxJ := d.matrixState.pivots[colJ]
			y := d.matrixState.matrix.get(rowIdxJ, colI)
			if y == 0 {
				continue
			}
			gf256.MulAddMem(d.win.recovery[rowIdxJ].data, y, srcData)
		}
	}
}

// backSubstitution walks the pivots right to left, dividing each solution
// row by its diagonal to reveal the lost original it corresponds to, then
// eliminating that column from every row above it.
func (d *Decoder) backSubstitution() []RecoveredSymbol {
	columns := len(d.matrixState.columns)
	recovered := make([]RecoveredSymbol, columns)

	for colI := columns - 1; colI >= 0; colI-- {
		rowIdx := d.matrixState.pivots[colI]
		data := d.win.recovery[rowIdx].data
		y := d.matrixState.matrix.get(rowIdx, colI)

		originalColumn := d.matrixState.columns[colI].column
		originalBytes := d.win.columnBytes(originalColumn)

		gf256.DivMem(data[:originalBytes], data[:originalBytes], y)
		d.win.originals[originalColumn].data = data

		recovered[colI] = RecoveredSymbol{
			Data:  data[:originalBytes],
			Index: uint32(originalColumn),
		}

		for colJ := 0; colJ < colI; colJ++ {
			pivotJ := d.matrixState.pivots[colJ]
			x := d.matrixState.matrix.get(pivotJ, colI)
			if x == 0 {
				continue
			}
			gf256.MulAddMem(d.win.recovery[pivotJ].data[:originalBytes], x, data[:originalBytes])
		}
	}

	return recovered
}
