package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/klauspost/reedsolomon"

	"github.com/fec-al/fecal"
)

// compareCommand benchmarks fecal's convolutional recovery against
// reedsolomon's Leopard-8 mode recovering from the same loss pattern: K
// data shards, one of them (the same column for both codecs) lost; fecal
// gets two recovery rows, reedsolomon has M parity shards.
var compareCommand = cli.Command{
	Name:  "compare",
	Usage: "compare fecal against reedsolomon's Leopard-8 mode on the same loss pattern",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "k", Value: 128, Usage: "data shard count"},
		cli.IntFlag{Name: "m", Value: 16, Usage: "parity shard count (reedsolomon only)"},
		cli.IntFlag{Name: "bytes", Value: 16 << 20, Usage: "total application bytes"},
		cli.Int64Flag{Name: "seed", Value: 1, Usage: "loss pattern PRNG seed"},
	},
	Action: func(c *cli.Context) error {
		k := c.Int("k")
		m := c.Int("m")
		totalBytes := uint64(c.Int("bytes"))
		seed := c.Int64("seed")

		input, err := randomInput(k, totalBytes)
		if err != nil {
			return errors.Wrap(err, "generating input")
		}

		// Each run gets its own generator from the same seed, so both
		// draw the same lost column.
		fecalElapsed, err := runFecal(k, totalBytes, input, rand.New(rand.NewSource(seed)))
		if err != nil {
			return errors.Wrap(err, "fecal round trip")
		}

		rsElapsed, err := runReedSolomon(k, m, input, rand.New(rand.NewSource(seed)))
		if err != nil {
			return errors.Wrap(err, "reedsolomon round trip")
		}

		fmt.Printf("fecal (K=%d):        recovered in %v\n", k, fecalElapsed.Round(time.Microsecond))
		fmt.Printf("reedsolomon (K=%d,M=%d): recovered in %v\n", k, m, rsElapsed.Round(time.Microsecond))
		return nil
	},
}

func runFecal(k int, totalBytes uint64, input [][]byte, rng *rand.Rand) (time.Duration, error) {
	enc, err := fecal.NewEncoder(k, input, totalBytes)
	if err != nil {
		return 0, errors.Wrap(err, "NewEncoder")
	}
	dec, err := fecal.NewDecoder(k, totalBytes)
	if err != nil {
		return 0, errors.Wrap(err, "NewDecoder")
	}

	lost := rng.Intn(k)
	start := time.Now()
	for column := 0; column < k; column++ {
		if column == lost {
			continue
		}
		if err := dec.AddOriginal(column, input[column]); err != nil {
			return 0, errors.Wrap(err, "AddOriginal")
		}
	}
	for row := 0; row < 2; row++ {
		symbol := make([]byte, enc.SymbolBytes())
		if err := enc.Encode(uint32(row), symbol); err != nil {
			return 0, errors.Wrap(err, "Encode")
		}
		if err := dec.AddRecovery(uint32(row), symbol); err != nil {
			return 0, errors.Wrap(err, "AddRecovery")
		}
	}
	if _, err := dec.Decode(); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func runReedSolomon(k, m int, input [][]byte, rng *rand.Rand) (time.Duration, error) {
	enc, err := reedsolomon.New(k, m, reedsolomon.WithLeopardGF(true))
	if err != nil {
		return 0, errors.Wrap(err, "reedsolomon.New")
	}

	shardSize := len(input[0])
	shards := make([][]byte, k+m)
	for i := 0; i < k; i++ {
		shards[i] = make([]byte, shardSize)
		copy(shards[i], input[i])
	}
	for i := k; i < k+m; i++ {
		shards[i] = make([]byte, shardSize)
	}
	if err := enc.Encode(shards); err != nil {
		return 0, errors.Wrap(err, "Encode")
	}

	lost := rng.Intn(k)
	shards[lost] = nil

	start := time.Now()
	if err := enc.Reconstruct(shards); err != nil {
		return 0, errors.Wrap(err, "Reconstruct")
	}
	return time.Since(start), nil
}
