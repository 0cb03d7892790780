package fecal

import "github.com/fec-al/fecal/internal/gf256"

// recoveryColumn records one lost column's position in the recovery
// matrix plus its cached ColumnValue, since it is looked up once per row
// per pair-draw during matrix generation.
type recoveryColumn struct {
	column int
	cx     byte
}

// recoveryMatrixState holds the decoder's square GF(2^8) recovery system:
// one row per received recovery symbol, one column per currently-lost
// original column. It survives across repeated Decode attempts, growing
// as more recovery symbols (rows) or lost columns arrive, and resumes
// Gaussian elimination from where it last failed rather than restarting.
type recoveryMatrixState struct {
	win *decoderWindow

	columns []recoveryColumn
	matrix  byteMatrix

	// pivots[logicalPivot] = physical row index; GE swaps entries here
	// instead of swapping whole matrix rows.
	pivots []int

	// geResumePivot is the first pivot column Gaussian elimination failed
	// to find a nonzero row for, and the point a later call resumes at.
	// Zero means there is no elimination progress to resume: GE has not
	// run, has not failed, or failed at pivot 0 before eliminating anything.
	geResumePivot int

	// filledRows is how many matrix rows have already been populated by
	// generateMatrix, the resumable-fill cursor.
	filledRows int
}

// populateColumns fills columns[0:n] with the n currently-lost columns in
// ascending order, and records each one's back-pointer into
// originalInfo.recoveryMatrixColumn so matrix generation can translate a
// lost column number into its matrix column index in O(1).
func (s *recoveryMatrixState) populateColumns(n int) {
	s.columns = make([]recoveryColumn, n)

	nextSearch := 0
	for matrixColumn := 0; matrixColumn < n; matrixColumn++ {
		lostColumn := s.win.findNextLostElement(nextSearch)
		if lostColumn >= s.win.inputCount {
			// Should never happen: the caller only asks for as many
			// columns as there are currently-lost originals.
			break
		}
		nextSearch = lostColumn + 1

		s.columns[matrixColumn] = recoveryColumn{
			column: lostColumn,
			cx:     columnValue(uint32(lostColumn)),
		}
		s.win.originals[lostColumn].recoveryMatrixColumn = matrixColumn
	}
}

// generateMatrix (re)builds the recovery matrix for the current lost-
// column set and received-row count. If the lost-column set changed since
// the last call, the matrix and GE state are reset from scratch; otherwise
// only the newly arrived rows are filled in and, if GE had previously
// failed partway through, those new rows are brought up to date with the
// pivots already found (resumeGE) before the caller retries elimination.
func (s *recoveryMatrixState) generateMatrix() {
	inputCount := s.win.inputCount
	columns := inputCount - s.win.originalGotCount
	rows := len(s.win.recovery)

	if columns != len(s.columns) {
		s.populateColumns(columns)
		s.pivots = nil
		s.geResumePivot = 0
		s.filledRows = 0
		s.matrix.initialize(rows, columns)
	} else {
		s.matrix.resize(rows, columns)
	}

	oldFilledRows := s.filledRows

	for i := oldFilledRows; i < rows; i++ {
		row := s.win.recovery[i].row
		rx := rowValue(row)
		rowData := s.matrix.rowBytes(i)

		for j := 0; j < columns; j++ {
			column := s.columns[j].column
			cx := s.columns[j].cx
			cx2 := gf256.Sqr(cx)
			lane := uint32(column % columnLaneCount)
			opcode := rowOpcode(lane, row)

			var v byte
			if opcode&1 != 0 {
				v ^= 1
			}
			if opcode&2 != 0 {
				v ^= cx
			}
			if opcode&4 != 0 {
				v ^= cx2
			}
			if opcode&8 != 0 {
				v ^= rx
			}
			if opcode&16 != 0 {
				v ^= gf256.Mul(cx, rx)
			}
			if opcode&32 != 0 {
				v ^= gf256.Mul(cx2, rx)
			}
			rowData[j] = v
		}

		var prng pcgRand
		prng.seed(uint64(row), uint64(inputCount))
		draws := pairCount(inputCount)

		for k := 0; k < draws; k++ {
			element1 := int(prng.next()) % inputCount
			if s.win.originals[element1].data == nil {
				mc := s.win.originals[element1].recoveryMatrixColumn
				rowData[mc] ^= 1
			}

			elementRX := int(prng.next()) % inputCount
			if s.win.originals[elementRX].data == nil {
				mc := s.win.originals[elementRX].recoveryMatrixColumn
				rowData[mc] ^= rx
			}
		}
	}

	if rows > len(s.pivots) {
		newPivots := make([]int, rows)
		copy(newPivots, s.pivots)
		for i := len(s.pivots); i < rows; i++ {
			newPivots[i] = i
		}
		s.pivots = newPivots
	}

	if s.geResumePivot > 0 {
		s.resumeGE(oldFilledRows, rows)
	}

	s.filledRows = rows
}

// resumeGE re-applies every pivot already found (pivots 0..geResumePivot)
// to the rows newly appended between oldRows and rows, preserving the
// triangular state already established for earlier rows without touching
// them again.
func (s *recoveryMatrixState) resumeGE(oldRows, rows int) {
	if oldRows >= rows {
		return
	}
	columns := s.matrix.columns

	for pivotI := 0; pivotI < s.geResumePivot; pivotI++ {
		rowIdx := s.pivots[pivotI]
		geRow := s.matrix.rowBytes(rowIdx)
		valI := geRow[pivotI]

		for newRowIndex := oldRows; newRowIndex < rows; newRowIndex++ {
			remRow := s.matrix.rowBytes(newRowIndex)
			eliminateRow(geRow, remRow, pivotI, columns, valI)
		}
	}
}

// gaussianElimination attempts to put the matrix in upper-triangular form.
// It tries the cheap non-pivoted path first (the matrix is dense, so most
// diagonals are nonzero), falling back to row-swapping pivoted elimination
// as soon as a zero diagonal is hit. Returns false (need more recovery
// data) if a full set of pivots could not be found with the rows
// currently available; geResumePivot then marks where to resume once more
// rows arrive.
func (s *recoveryMatrixState) gaussianElimination() bool {
	if s.geResumePivot > 0 {
		return s.pivotedGaussianElimination(s.geResumePivot)
	}

	columns := s.matrix.columns
	rows := s.matrix.rows

	for pivotI := 0; pivotI < columns; pivotI++ {
		geRow := s.matrix.rowBytes(pivotI)
		valI := geRow[pivotI]
		if valI == 0 {
			return s.pivotedGaussianElimination(pivotI)
		}

		s.win.recovery[pivotI].usedForSolution = true

		for pivotJ := pivotI + 1; pivotJ < rows; pivotJ++ {
			remRow := s.matrix.rowBytes(pivotJ)
			eliminateRow(geRow, remRow, pivotI, columns, valI)
		}
	}

	return true
}

// pivotedGaussianElimination resumes (or begins) elimination at startPivot
// using the pivots[] permutation to swap logical rows instead of physical
// ones. It is entered both the first time a zero diagonal is hit during
// the fast path, and directly on a resumed Decode attempt.
func (s *recoveryMatrixState) pivotedGaussianElimination(startPivot int) bool {
	columns := s.matrix.columns
	rows := s.matrix.rows

	for pivotI := startPivot; pivotI < columns; pivotI++ {
		searchStart := pivotI
		if pivotI == startPivot {
			searchStart = startPivot + 1
		}

		found := false
		for pivotJ := searchStart; pivotJ < rows; pivotJ++ {
			rowIdxJ := s.pivots[pivotJ]
			geRow := s.matrix.rowBytes(rowIdxJ)
			valI := geRow[pivotI]
			if valI == 0 {
				continue
			}

			if pivotI != pivotJ {
				s.pivots[pivotI], s.pivots[pivotJ] = s.pivots[pivotJ], s.pivots[pivotI]
			}
			s.win.recovery[rowIdxJ].usedForSolution = true

			if pivotI >= columns-1 {
				// Last pivot: no remaining rows depend on it.
				return true
			}

			for pivotK := pivotI + 1; pivotK < rows; pivotK++ {
				rowIdxK := s.pivots[pivotK]
				remRow := s.matrix.rowBytes(rowIdxK)
				eliminateRow(geRow, remRow, pivotI, columns, valI)
			}

			found = true
			break
		}

		if !found {
			s.geResumePivot = pivotI
			return false
		}
	}

	return true
}

// eliminateRow zeroes column pivot in remRow using geRow as the pivot row,
// storing the elimination multiplier y back into remRow[pivot] instead of
// zero. This dual use of the lower triangle is load-bearing: the data-side
// replay in decoder.go's multiplyLowerTriangle depends on finding exactly
// this multiplier there.
func eliminateRow(geRow, remRow []byte, pivot, columnEnd int, valI byte) {
	valJ := remRow[pivot]
	if valJ == 0 {
		return
	}
	y := gf256.Div(valJ, valI)
	remRow[pivot] = y
	gf256.MulAddMem(remRow[pivot+1:columnEnd], y, geRow[pivot+1:columnEnd])
}
