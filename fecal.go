// Package fecal implements FEC-AL, a block-oriented forward error
// correction codec over GF(2^8) derived from the Siamese code
// construction. Given K equally sized original symbols (the last may be
// shorter), the Encoder produces an unbounded stream of recovery symbols
// such that any K' >= K received symbols (original or recovery) recover
// all originals with overwhelming probability.
//
// The codec is a convolutional code, not maximum-distance-separable: a
// decode attempt with exactly K received symbols succeeds about 99% of the
// time, and a caller should be prepared to retry with one or two more
// recovery symbols on ErrNeedMoreData.
package fecal

import (
	"errors"

	"github.com/fec-al/fecal/internal/gf256"
)

// ErrInvalidInput is returned when a caller-supplied parameter is invalid:
// zero input count, total bytes smaller than the input count, a symbol
// buffer of the wrong length, or an out-of-range column index. Recovery
// row numbers are not range-checked: every uint32 row is valid.
var ErrInvalidInput = errors.New("fecal: invalid input")

// ErrOutOfMemory stands for a failed internal allocation. Go's allocator
// panics rather than returning nil on exhaustion, so no function in this
// package returns it (invalid K/total-bytes pairs are rejected with
// ErrInvalidInput before any allocation); it is kept as a distinct
// sentinel for parity with the FecalResult contract.
var ErrOutOfMemory = errors.New("fecal: out of memory")

// ErrNeedMoreData is returned by Decode when either not enough symbols
// have arrived yet, or Gaussian elimination failed at its current pivot
// and no new symbols have arrived since the last attempt. It is not a
// failure: the caller should supply more recovery symbols and retry.
var ErrNeedMoreData = errors.New("fecal: need more data")

// Symbol is a single original or recovery symbol. Index is the column
// number for an original, or the row number for a recovery symbol.
type Symbol struct {
	Data  []byte
	Index uint32
}

// RecoveredSymbol is one original symbol recovered by Decode. Data aliases
// into one of the recovery buffers supplied to AddRecovery; callers must
// not assume the buffer is otherwise untouched. Index is the recovered
// symbol's original column number.
type RecoveredSymbol struct {
	Data  []byte
	Index uint32
}

// Init performs process-wide static initialization and capability
// detection. It is idempotent and safe to call more than once; calling it
// before constructing an Encoder or Decoder is conventional but not
// required, since Go's package init() already runs the GF(2^8) table
// setup. It returns an error only if run on a platform this codec cannot
// support, which in the pure-Go build never happens.
func Init() error {
	_ = gf256.WideTablesEnabled()
	return nil
}
