package fecal

// pcgRand is the 64-bit-state, 32-bit-output PCG variant the codec uses to
// draw the sparse "pair" contributions for each recovery row. The seeding
// and output functions are part of the wire contract: any implementation
// of this codec must reproduce them exactly, since the encoder and decoder
// must derive the identical sequence from (row, K) independently.
type pcgRand struct {
	state uint64
	inc   uint64
}

// seed initializes the generator from (y, x), matching PCGRandom::Seed.
// FEC-AL always calls this with y=row, x=inputCount.
func (p *pcgRand) seed(y, x uint64) {
	p.state = 0
	p.inc = (y << 1) | 1
	p.next()
	p.state += x
	p.next()
}

// next returns the next pseudo-random 32-bit output and advances state.
func (p *pcgRand) next() uint32 {
	oldState := p.state
	p.state = oldState*6364136223846793005 + p.inc
	xorshifted := uint32(((oldState >> 18) ^ oldState) >> 27)
	rot := uint32(oldState >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}
