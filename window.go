package fecal

// window holds the application-data parameters shared between encoder and
// decoder: K equally sized symbols (the last possibly shorter) covering a
// total byte count.
type window struct {
	inputCount  int
	totalBytes  uint64
	symbolBytes int // bytes in every column except the last
	finalBytes  int // bytes in the last column, 1 <= finalBytes <= symbolBytes
}

// setParameters validates and derives symbolBytes/finalBytes from
// (inputCount, totalBytes). K = inputCount must be at least 1 and
// totalBytes must be at least K; symbolBytes = ceil(totalBytes / K).
func (w *window) setParameters(inputCount int, totalBytes uint64) error {
	if inputCount <= 0 || totalBytes < uint64(inputCount) {
		return ErrInvalidInput
	}

	w.inputCount = inputCount
	w.totalBytes = totalBytes

	symbolBytes := (totalBytes + uint64(inputCount) - 1) / uint64(inputCount)
	w.symbolBytes = int(symbolBytes)

	final := int(totalBytes % symbolBytes)
	if final <= 0 {
		final = w.symbolBytes
	}
	w.finalBytes = final

	return nil
}

func (w *window) isFinalColumn(column int) bool {
	return column == w.inputCount-1
}

// columnBytes returns the length of the given column's symbol: finalBytes
// for the last column, symbolBytes for every other column.
func (w *window) columnBytes(column int) int {
	if w.isFinalColumn(column) {
		return w.finalBytes
	}
	return w.symbolBytes
}

//------------------------------------------------------------------------------
// encoderWindow

// encoderWindow is the encoder's specialization of window: read-only
// pointers to caller-owned original data.
type encoderWindow struct {
	window
	originals [][]byte
}

func (w *encoderWindow) setInput(input [][]byte) {
	w.originals = input
}

//------------------------------------------------------------------------------
// decoderWindow

// originalInfo tracks one original column's state on the decoder side.
type originalInfo struct {
	data []byte

	// recoveryMatrixColumn is the back-pointer into the current recovery
	// matrix's column set, valid only while that column is still lost;
	// it is refreshed by recoveryMatrixState.populateColumns whenever the
	// lost-column set changes.
	recoveryMatrixColumn int
}

// recoveryInfo tracks one received recovery symbol.
type recoveryInfo struct {
	data            []byte
	row             uint32
	usedForSolution bool
}

// decoderWindow is the decoder's specialization of window: bookkeeping for
// originals and recovery symbols received so far, plus a bitset index over
// columns so the recovery matrix builder can enumerate lost columns
// quickly.
type decoderWindow struct {
	window

	originals []originalInfo
	recovery  []recoveryInfo

	subwindows       []subwindow
	originalGotCount int

	rowSet map[uint32]struct{}
}

func (w *decoderWindow) allocate() {
	w.originals = make([]originalInfo, w.inputCount)
	w.recovery = make([]recoveryInfo, 0, w.inputCount/5+1)

	subwindowCount := (w.inputCount + subwindowSize - 1) / subwindowSize
	w.subwindows = make([]subwindow, subwindowCount)

	w.rowSet = make(map[uint32]struct{})
}

// addOriginal records original column data, returning false (a no-op) if
// that column was already received.
func (w *decoderWindow) addOriginal(column int, data []byte) bool {
	if w.originals[column].data != nil {
		return false
	}
	w.originals[column].data = data
	w.markGotElement(column)
	w.originalGotCount++
	return true
}

// addRecovery records a recovery symbol, returning false (a no-op) if its
// row was already received.
func (w *decoderWindow) addRecovery(data []byte, row uint32) bool {
	if _, ok := w.rowSet[row]; ok {
		return false
	}
	w.rowSet[row] = struct{}{}
	w.recovery = append(w.recovery, recoveryInfo{data: data, row: row})
	return true
}

func (w *decoderWindow) markGotElement(element int) {
	sw := &w.subwindows[element/subwindowSize]
	sw.set(element % subwindowSize)
}

// findNextLostElement scans subwindows starting at elementStart, skipping
// any subwindow that is fully received, and returns the index of the first
// not-yet-received column at or after elementStart. It returns inputCount
// if every remaining column has been received.
func (w *decoderWindow) findNextLostElement(elementStart int) int {
	if elementStart >= w.inputCount {
		return w.inputCount
	}

	subwindowIndex := elementStart / subwindowSize
	bitIndex := elementStart % subwindowSize

	for subwindowIndex < len(w.subwindows) {
		sw := &w.subwindows[subwindowIndex]
		if sw.gotCount < subwindowSize {
			clear := sw.findFirstClear(bitIndex)
			if clear < subwindowSize {
				element := subwindowIndex*subwindowSize + clear
				// Defensive clamp: the subwindow tiling guarantees this
				// can never actually exceed inputCount, but it costs
				// nothing to keep the same guard the original carries.
				if element > w.inputCount {
					element = w.inputCount
				}
				return element
			}
		}
		bitIndex = 0
		subwindowIndex++
	}

	return w.inputCount
}
