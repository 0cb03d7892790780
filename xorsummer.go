package fecal

import "github.com/fec-al/fecal/internal/gf256"

// xorSummer accumulates a sequence of XOR contributions into a destination
// buffer, fusing pairs of adds into a single three-input XOR
// (dst ^= a ^ b) where possible. This is a throughput optimization only:
// the result is identical to adding each source one at a time.
type xorSummer struct {
	dest    []byte
	waiting []byte
}

func (s *xorSummer) init(dest []byte) {
	s.dest = dest
	s.waiting = nil
}

func (s *xorSummer) add(src []byte) {
	if s.waiting != nil {
		gf256.Add2Mem(s.dest, src, s.waiting)
		s.waiting = nil
	} else {
		s.waiting = src
	}
}

func (s *xorSummer) finalize() {
	if s.waiting != nil {
		gf256.AddMem(s.dest, s.waiting)
		s.waiting = nil
	}
}
