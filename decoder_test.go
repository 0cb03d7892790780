package fecal

import (
	"bytes"
	"math/rand"
	"testing"
)

// roundTrip encodes k originals covering totalBytes, drops the columns in
// lost, feeds the decoder the surviving originals plus recoveryRows worth
// of recovery symbols (rows 0..recoveryRows-1), and returns the recovered
// symbols (or an error, typically ErrNeedMoreData).
func roundTrip(t *testing.T, k int, totalBytes uint64, lost map[int]bool, recoveryRows int) ([][]byte, []RecoveredSymbol, error) {
	t.Helper()

	rng := rand.New(rand.NewSource(int64(k)*7919 + int64(totalBytes)))
	input := randomColumns(rng, k, totalBytes)

	enc, err := NewEncoder(k, input, totalBytes)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	dec, err := NewDecoder(k, totalBytes)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}

	for c := 0; c < k; c++ {
		if lost[c] {
			continue
		}
		if err := dec.AddOriginal(c, input[c]); err != nil {
			t.Fatalf("AddOriginal(%d): %v", c, err)
		}
	}

	for row := 0; row < recoveryRows; row++ {
		symbol := make([]byte, enc.SymbolBytes())
		if err := enc.Encode(uint32(row), symbol); err != nil {
			t.Fatalf("Encode(%d): %v", row, err)
		}
		if err := dec.AddRecovery(uint32(row), symbol); err != nil {
			t.Fatalf("AddRecovery(%d): %v", row, err)
		}
	}

	recovered, err := dec.Decode()
	return input, recovered, err
}

func checkRecovered(t *testing.T, input [][]byte, recovered []RecoveredSymbol, lost map[int]bool) {
	t.Helper()
	if len(recovered) != len(lost) {
		t.Fatalf("recovered %d symbols, want %d", len(recovered), len(lost))
	}
	for _, r := range recovered {
		if !lost[int(r.Index)] {
			t.Fatalf("recovered unexpected column %d", r.Index)
		}
		if !bytes.Equal(r.Data, input[r.Index]) {
			t.Fatalf("column %d: recovered bytes do not match original", r.Index)
		}
	}
}

// E1: K=1 round trip using the recovery symbol alone.
func TestRoundTripSingleColumn(t *testing.T) {
	input, recovered, err := roundTrip(t, 1, 4, map[int]bool{0: true}, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	checkRecovered(t, input, recovered, map[int]bool{0: true})
}

// E2: K=4, one lost column, one recovery row.
func TestRoundTripOneLostColumn(t *testing.T) {
	input, recovered, err := roundTrip(t, 4, 16, map[int]bool{2: true}, 1)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	checkRecovered(t, input, recovered, map[int]bool{2: true})
}

// E3: K=10, two lost columns, two recovery rows.
func TestRoundTripTwoLostColumns(t *testing.T) {
	lost := map[int]bool{3: true, 7: true}
	input, recovered, err := roundTrip(t, 10, 80, lost, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	checkRecovered(t, input, recovered, lost)
}

// E4: K=100, 10 lost columns; start with one recovery row per lost column
// (K symbols received in all) and retry with one extra row at a time, up
// to five attempts, until it succeeds.
func TestRoundTripRetryOnNeedMoreData(t *testing.T) {
	k := 100
	lost := make(map[int]bool)
	rng := rand.New(rand.NewSource(42))
	for len(lost) < 10 {
		lost[rng.Intn(k)] = true
	}

	rows := 10
	var input [][]byte
	var recovered []RecoveredSymbol
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		input, recovered, err = roundTrip(t, k, 2000, lost, rows)
		if err == nil {
			break
		}
		if err != ErrNeedMoreData {
			t.Fatalf("unexpected error: %v", err)
		}
		rows++
	}
	if err != nil {
		t.Fatalf("did not succeed after retries: %v", err)
	}
	checkRecovered(t, input, recovered, lost)
}

// Exercises resumable Gaussian elimination directly: recovery rows are
// added to the same Decoder one at a time, calling Decode after each,
// until it succeeds. geResumePivot must carry GE's progress forward
// rather than restarting from scratch each time.
func TestResumableDecodeAcrossCalls(t *testing.T) {
	k := 60
	totalBytes := uint64(900)
	lost := map[int]bool{0: true, 10: true, 20: true, 30: true}

	rng := rand.New(rand.NewSource(99))
	input := randomColumns(rng, k, totalBytes)
	enc, err := NewEncoder(k, input, totalBytes)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewDecoder(k, totalBytes)
	if err != nil {
		t.Fatal(err)
	}
	for c := 0; c < k; c++ {
		if lost[c] {
			continue
		}
		if err := dec.AddOriginal(c, input[c]); err != nil {
			t.Fatal(err)
		}
	}

	var recovered []RecoveredSymbol
	for row := uint32(0); row < 10; row++ {
		symbol := make([]byte, enc.SymbolBytes())
		if err := enc.Encode(row, symbol); err != nil {
			t.Fatal(err)
		}
		if err := dec.AddRecovery(row, symbol); err != nil {
			t.Fatal(err)
		}
		recovered, err = dec.Decode()
		if err == nil {
			break
		}
		if err != ErrNeedMoreData {
			t.Fatalf("row %d: unexpected error: %v", row, err)
		}
	}
	if err != nil {
		t.Fatalf("did not converge within 10 recovery rows: %v", err)
	}
	checkRecovered(t, input, recovered, lost)
}

// E6: duplicate AddRecovery is a silent no-op.
func TestAddRecoveryIdempotent(t *testing.T) {
	dec, err := NewDecoder(4, 16)
	if err != nil {
		t.Fatal(err)
	}
	symbol := make([]byte, dec.SymbolBytes())
	if err := dec.AddRecovery(0, symbol); err != nil {
		t.Fatal(err)
	}
	if err := dec.AddRecovery(0, symbol); err != nil {
		t.Fatal(err)
	}
	if got := len(dec.win.recovery); got != 1 {
		t.Fatalf("recovery row count = %d, want 1", got)
	}

	if _, err := dec.Decode(); err != ErrNeedMoreData {
		t.Fatalf("Decode with only 1 of 4 rows: got %v, want ErrNeedMoreData", err)
	}
}

// Duplicate AddOriginal is a silent no-op and does not re-arm a decode
// attempt.
func TestAddOriginalIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	input := randomColumns(rng, 4, 16)

	enc, err := NewEncoder(4, input, 16)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := NewDecoder(4, 16)
	if err != nil {
		t.Fatal(err)
	}
	for c := 0; c < 3; c++ {
		if err := dec.AddOriginal(c, input[c]); err != nil {
			t.Fatal(err)
		}
	}
	symbol := make([]byte, enc.SymbolBytes())
	if err := enc.Encode(0, symbol); err != nil {
		t.Fatal(err)
	}
	if err := dec.AddRecovery(0, symbol); err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Decode(); err != nil {
		t.Fatalf("Decode with 3/4 originals and one recovery row: got %v", err)
	}
	if !dec.DecodeAttempted() {
		t.Fatalf("DecodeAttempted() = false after a Decode call")
	}

	if err := dec.AddOriginal(0, input[0]); err != nil {
		t.Fatal(err)
	}
	if !dec.DecodeAttempted() {
		t.Fatalf("re-adding an already-received column should not reset recoveryAttempted")
	}
}

// Property 4: once every original has arrived, Decode is a no-op.
func TestDecodeNoLossIsNoOp(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	input := randomColumns(rng, 8, 64)

	dec, err := NewDecoder(8, 64)
	if err != nil {
		t.Fatal(err)
	}
	for c, data := range input {
		if err := dec.AddOriginal(c, data); err != nil {
			t.Fatal(err)
		}
	}
	recovered, err := dec.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(recovered) != 0 {
		t.Fatalf("recovered %d symbols with no loss, want 0", len(recovered))
	}
}

// Property 7: arrival order of recovery rows must not affect the result.
func TestIncrementalGEOrderIndependent(t *testing.T) {
	k := 40
	totalBytes := uint64(800)
	lost := map[int]bool{1: true, 2: true, 3: true}

	rng := rand.New(rand.NewSource(55))
	input := randomColumns(rng, k, totalBytes)
	enc, err := NewEncoder(k, input, totalBytes)
	if err != nil {
		t.Fatal(err)
	}

	symbols := make([][]byte, 5)
	for row := range symbols {
		symbols[row] = make([]byte, enc.SymbolBytes())
		if err := enc.Encode(uint32(row), symbols[row]); err != nil {
			t.Fatal(err)
		}
	}

	runDecode := func(order []int) []RecoveredSymbol {
		dec, err := NewDecoder(k, totalBytes)
		if err != nil {
			t.Fatal(err)
		}
		for c := 0; c < k; c++ {
			if lost[c] {
				continue
			}
			if err := dec.AddOriginal(c, input[c]); err != nil {
				t.Fatal(err)
			}
		}
		for _, row := range order {
			symbol := append([]byte(nil), symbols[row]...)
			if err := dec.AddRecovery(uint32(row), symbol); err != nil {
				t.Fatal(err)
			}
		}
		recovered, err := dec.Decode()
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		return recovered
	}

	forward := runDecode([]int{0, 1, 2, 3, 4})
	reversed := runDecode([]int{4, 3, 2, 1, 0})

	if len(forward) != len(reversed) {
		t.Fatalf("recovered count differs: %d vs %d", len(forward), len(reversed))
	}
	byIndex := make(map[uint32][]byte, len(forward))
	for _, r := range forward {
		byIndex[r.Index] = r.Data
	}
	for _, r := range reversed {
		want, ok := byIndex[r.Index]
		if !ok {
			t.Fatalf("column %d recovered in reversed order but not forward", r.Index)
		}
		if !bytes.Equal(want, r.Data) {
			t.Fatalf("column %d recovered differently depending on arrival order", r.Index)
		}
	}
}

// Property 8: the final column recovers exactly F bytes, every other
// recovered column recovers exactly B bytes.
func TestRecoveredLengthsMatchFinalColumn(t *testing.T) {
	k := 6
	totalBytes := uint64(17) // B=3, F=2
	lost := map[int]bool{1: true, k - 1: true}

	input, recovered, err := roundTrip(t, k, totalBytes, lost, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	checkRecovered(t, input, recovered, lost)

	for _, r := range recovered {
		if int(r.Index) == k-1 {
			if len(r.Data) != 2 {
				t.Fatalf("final column recovered length = %d, want 2", len(r.Data))
			}
		} else if len(r.Data) != 3 {
			t.Fatalf("column %d recovered length = %d, want 3", r.Index, len(r.Data))
		}
	}
}

func TestGetOriginalBeforeAndAfterRecovery(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	input := randomColumns(rng, 5, 40)

	dec, err := NewDecoder(5, 40)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dec.GetOriginal(2); err != ErrNeedMoreData {
		t.Fatalf("GetOriginal before any data: got %v", err)
	}
	if _, err := dec.GetOriginal(5); err != ErrInvalidInput {
		t.Fatalf("GetOriginal out of range: got %v", err)
	}

	for c, data := range input {
		if c == 2 {
			continue
		}
		if err := dec.AddOriginal(c, data); err != nil {
			t.Fatal(err)
		}
	}

	enc, err := NewEncoder(5, input, 40)
	if err != nil {
		t.Fatal(err)
	}
	symbol := make([]byte, enc.SymbolBytes())
	if err := enc.Encode(0, symbol); err != nil {
		t.Fatal(err)
	}
	if err := dec.AddRecovery(0, symbol); err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Decode(); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got, err := dec.GetOriginal(2)
	if err != nil {
		t.Fatalf("GetOriginal after recovery: %v", err)
	}
	if !bytes.Equal(got, input[2]) {
		t.Fatalf("GetOriginal(2) after recovery does not match original")
	}
}

// A scaled-down version of E5: four fixed (K, symbol size, loss count)
// shapes with a random loss set each, starting with one recovery row per
// lost column and retrying with up to three extra rows; each is expected
// to succeed.
func TestRoundTripManyShapes(t *testing.T) {
	shapes := []struct {
		k           int
		symbolBytes uint64
		lossCount   int
	}{
		{5, 1, 1},
		{16, 2, 3},
		{64, 16, 5},
		{128, 1300, 10},
	}

	for _, shape := range shapes {
		totalBytes := shape.symbolBytes * uint64(shape.k)
		rng := rand.New(rand.NewSource(int64(shape.k)))
		lost := make(map[int]bool)
		for len(lost) < shape.lossCount {
			lost[rng.Intn(shape.k)] = true
		}

		var recovered []RecoveredSymbol
		var input [][]byte
		var err error
		rows := shape.lossCount
		for attempt := 0; attempt < 4; attempt++ {
			input, recovered, err = roundTrip(t, shape.k, totalBytes, lost, rows)
			if err == nil {
				break
			}
			if err != ErrNeedMoreData {
				t.Fatalf("K=%d: unexpected error: %v", shape.k, err)
			}
			rows++
		}
		if err != nil {
			t.Fatalf("K=%d: did not converge: %v", shape.k, err)
		}
		checkRecovered(t, input, recovered, lost)
	}
}
