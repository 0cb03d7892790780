// Command fecalbench benchmarks and exercises the fecal codec: encode
// throughput, a round trip that decodes one lost symbol, and a head-to-head
// comparison against github.com/klauspost/reedsolomon's Leopard-8 mode on
// the same loss pattern.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/fec-al/fecal"
)

func main() {
	app := cli.NewApp()
	app.Name = "fecalbench"
	app.Usage = "FEC-AL encode/decode benchmark and round-trip harness"
	app.Commands = []cli.Command{
		encodeCommand,
		roundtripCommand,
		compareCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "fecalbench:", err)
		os.Exit(1)
	}
}

var encodeCommand = cli.Command{
	Name:  "encode",
	Usage: "measure Encode throughput for a fixed K and block size",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "k", Value: 128, Usage: "original symbol count"},
		cli.IntFlag{Name: "bytes", Value: 16 << 20, Usage: "total application bytes"},
		cli.IntFlag{Name: "rows", Value: 32, Usage: "recovery rows to generate"},
	},
	Action: func(c *cli.Context) error {
		k := c.Int("k")
		totalBytes := uint64(c.Int("bytes"))
		rows := c.Int("rows")

		input, err := randomInput(k, totalBytes)
		if err != nil {
			return errors.Wrap(err, "generating input")
		}

		enc, err := fecal.NewEncoder(k, input, totalBytes)
		if err != nil {
			return errors.Wrap(err, "NewEncoder")
		}

		out := make([]byte, enc.SymbolBytes())
		start := time.Now()
		for row := 0; row < rows; row++ {
			if err := enc.Encode(uint32(row), out); err != nil {
				return errors.Wrap(err, "Encode")
			}
		}
		elapsed := time.Since(start)

		produced := uint64(rows) * uint64(enc.SymbolBytes())
		speed := float64(produced) / elapsed.Seconds() / (1 << 20)
		fmt.Printf("encoded %d rows (%d bytes each) in %v: %.2f MiB/s\n",
			rows, enc.SymbolBytes(), elapsed.Round(time.Microsecond), speed)
		return nil
	},
}

var roundtripCommand = cli.Command{
	Name:  "roundtrip",
	Usage: "drop one random original symbol and report how many symbols Decode recovers (bytes are not compared)",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "k", Value: 128, Usage: "original symbol count"},
		cli.IntFlag{Name: "bytes", Value: 16 << 20, Usage: "total application bytes"},
		cli.IntFlag{Name: "extra", Value: 2, Usage: "recovery rows beyond K to send"},
		cli.Int64Flag{Name: "seed", Value: 1, Usage: "loss pattern PRNG seed"},
	},
	Action: func(c *cli.Context) error {
		k := c.Int("k")
		totalBytes := uint64(c.Int("bytes"))
		extra := c.Int("extra")
		rng := rand.New(rand.NewSource(c.Int64("seed")))

		input, err := randomInput(k, totalBytes)
		if err != nil {
			return errors.Wrap(err, "generating input")
		}

		enc, err := fecal.NewEncoder(k, input, totalBytes)
		if err != nil {
			return errors.Wrap(err, "NewEncoder")
		}

		dec, err := fecal.NewDecoder(k, totalBytes)
		if err != nil {
			return errors.Wrap(err, "NewDecoder")
		}

		lost := rng.Intn(k)
		for column := 0; column < k; column++ {
			if column == lost {
				continue
			}
			if err := dec.AddOriginal(column, input[column]); err != nil {
				return errors.Wrap(err, "AddOriginal")
			}
		}

		for row := 0; row < extra+1; row++ {
			symbol := make([]byte, enc.SymbolBytes())
			if err := enc.Encode(uint32(row), symbol); err != nil {
				return errors.Wrap(err, "Encode")
			}
			if err := dec.AddRecovery(uint32(row), symbol); err != nil {
				return errors.Wrap(err, "AddRecovery")
			}
		}

		recovered, err := dec.Decode()
		if err != nil {
			return errors.Wrap(err, "Decode")
		}

		fmt.Printf("dropped column %d, recovered %d symbol(s)\n", lost, len(recovered))
		return nil
	},
}
