package fecal

import (
	"bytes"
	"math/rand"
	"testing"
)

func randomColumns(rng *rand.Rand, k int, totalBytes uint64) [][]byte {
	symbolBytes := int((totalBytes + uint64(k) - 1) / uint64(k))
	columns := make([][]byte, k)
	for i := range columns {
		n := symbolBytes
		if i == k-1 {
			if final := int(totalBytes % uint64(symbolBytes)); final > 0 {
				n = final
			}
		}
		buf := make([]byte, n)
		rng.Read(buf)
		columns[i] = buf
	}
	return columns
}

func TestEncoderSymbolBytes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	input := randomColumns(rng, 10, 77)

	enc, err := NewEncoder(10, input, 77)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := enc.SymbolBytes(), 8; got != want {
		t.Fatalf("SymbolBytes() = %d, want %d", got, want)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	input := randomColumns(rng, 50, 5000)

	enc, err := NewEncoder(50, input, 5000)
	if err != nil {
		t.Fatal(err)
	}

	a := make([]byte, enc.SymbolBytes())
	b := make([]byte, enc.SymbolBytes())
	for _, row := range []uint32{0, 1, 17, 1000} {
		if err := enc.Encode(row, a); err != nil {
			t.Fatal(err)
		}
		if err := enc.Encode(row, b); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("row %d: Encode not deterministic", row)
		}
	}
}

func TestEncodeRejectsWrongLength(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	input := randomColumns(rng, 4, 16)

	enc, err := NewEncoder(4, input, 16)
	if err != nil {
		t.Fatal(err)
	}

	out := make([]byte, enc.SymbolBytes()+1)
	if err := enc.Encode(0, out); err != ErrInvalidInput {
		t.Fatalf("Encode with wrong-length buffer: got %v, want ErrInvalidInput", err)
	}
}

func TestNewEncoderValidatesParameters(t *testing.T) {
	if _, err := NewEncoder(0, nil, 0); err != ErrInvalidInput {
		t.Fatalf("K=0: got %v, want ErrInvalidInput", err)
	}
	if _, err := NewEncoder(4, make([][]byte, 4), 2); err != ErrInvalidInput {
		t.Fatalf("T<K: got %v, want ErrInvalidInput", err)
	}
	if _, err := NewEncoder(4, make([][]byte, 3), 16); err != ErrInvalidInput {
		t.Fatalf("wrong input slice length: got %v, want ErrInvalidInput", err)
	}
}
