package main

import "math/rand"

// randomInput builds k columns covering totalBytes of deterministic pseudo-
// random data, the same shape fecal.NewEncoder expects: all but the last
// column hold ceil(totalBytes/k) bytes, the last holds the remainder.
func randomInput(k int, totalBytes uint64) ([][]byte, error) {
	symbolBytes := int((totalBytes + uint64(k) - 1) / uint64(k))
	rng := rand.New(rand.NewSource(0))

	input := make([][]byte, k)
	for i := range input {
		n := symbolBytes
		if i == k-1 {
			final := int(totalBytes % uint64(symbolBytes))
			if final > 0 {
				n = final
			}
		}
		buf := make([]byte, n)
		rng.Read(buf)
		input[i] = buf
	}
	return input, nil
}
