// Package gf256 implements the GF(2^8) byte-field arithmetic primitives
// that the FEC-AL codec treats as an external collaborator: add, mul, div,
// sqr, and the bulk buffer operations (add_mem, add2_mem, muladd_mem,
// div_mem) that the encoder/decoder hot paths are built on.
package gf256

import (
	"github.com/klauspost/cpuid/v2"
)

// Poly is the reducing polynomial for the field, x^8 + x^4 + x^3 + x^2 + 1
// (0x11d), the same primitive polynomial used by the common byte-oriented
// GF(2^8) libraries this codec family builds on. Any fixed, irreducible
// polynomial is a valid choice for the codec's own internal consistency;
// this one is chosen for parity with the wider FEC literature.
const Poly = 0x11d

// Generator is a primitive element of the field used to build the
// log/antilog tables.
const Generator = 2

var (
	expTable [512]byte // exp[i] = Generator^i, doubled to avoid a modulo in Mul
	logTable [256]byte // log[exp[i]] = i

	// mulTable[a][b] = Mul(a, b), a full 256x256 table traded for branchless
	// bulk multiplies. 64KiB, fits comfortably in L1/L2 on every target this
	// codec runs on.
	mulTable [256][256]byte
)

// wideTables records whether the CPU looked capable enough (AVX2/SSSE3) to
// make the larger precomputed tables worth the cache pressure; on narrower
// cores we still build the same tables (there is no portable inline asm to
// fall back to here), but the flag lets callers/benchmarks report what the
// CPU would have supported for a SIMD kernel.
var wideTables bool

func init() {
	wideTables = cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Has(cpuid.SSSE3)

	// Build log/antilog tables by walking the multiplicative group
	// generated by Generator.
	x := 1
	for i := 0; i < 255; i++ {
		expTable[i] = byte(x)
		logTable[byte(x)] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= Poly
		}
	}
	for i := 255; i < 512; i++ {
		expTable[i] = expTable[i-255]
	}

	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			mulTable[a][b] = mulNoTable(byte(a), byte(b))
		}
	}
}

// WideTablesEnabled reports whether the CPU capability probe found AVX2 or
// SSSE3 support. It has no effect on the (pure Go) arithmetic in this
// package; it exists so callers such as cmd/fecalbench can report whether a
// SIMD-accelerated build of the bulk primitives would be worthwhile here.
func WideTablesEnabled() bool {
	return wideTables
}

func mulNoTable(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	sum := int(logTable[a]) + int(logTable[b])
	return expTable[sum]
}

// Add returns a XOR b, addition in GF(2^8).
func Add(a, b byte) byte {
	return a ^ b
}

// Mul returns the product of a and b in GF(2^8).
func Mul(a, b byte) byte {
	return mulTable[a][b]
}

// Sqr returns a*a in GF(2^8).
func Sqr(a byte) byte {
	return mulTable[a][a]
}

// Div returns a/b in GF(2^8). b must not be zero.
func Div(a, b byte) byte {
	if a == 0 {
		return 0
	}
	// b != 0 is a precondition; log(0) is undefined.
	diff := int(logTable[a]) - int(logTable[b])
	if diff < 0 {
		diff += 255
	}
	return expTable[diff]
}

// AddMem computes dst[i] ^= src[i] for i < n.
func AddMem(dst, src []byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] ^= src[i]
	}
}

// Add2Mem computes dst[i] ^= a[i] ^ b[i] for i < n, fusing two XOR
// accumulations into a single pass over dst.
func Add2Mem(dst, a, b []byte) {
	n := len(dst)
	if len(a) < n {
		n = len(a)
	}
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dst[i] ^= a[i] ^ b[i]
	}
}

// MulAddMem computes dst[i] ^= Mul(y, src[i]) for i < n.
func MulAddMem(dst []byte, y byte, src []byte) {
	if y == 0 {
		return
	}
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	table := &mulTable[y]
	for i := 0; i < n; i++ {
		dst[i] ^= table[src[i]]
	}
}

// DivMem computes dst[i] = Div(src[i], y) for i < n. dst and src may alias.
func DivMem(dst, src []byte, y byte) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	if n == 0 {
		return
	}
	if y == 1 {
		if &dst[0] != &src[0] {
			copy(dst[:n], src[:n])
		}
		return
	}
	for i := 0; i < n; i++ {
		dst[i] = Div(src[i], y)
	}
}
