package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mutagen-io/fastrsync/pkg/rsync"
)

// benchSize is the size, in bytes, of the synthetic base buffer used by the
// bench subcommand.
const benchSize = 64 * 1024 * 1024

func benchMain(_ *cobra.Command, _ []string) error {
	r := rand.New(rand.NewSource(1))
	base := make([]byte, benchSize)
	r.Read(base)

	target := append([]byte{}, base...)
	for i := 0; i < 1000; i++ {
		target[r.Intn(len(target))] ^= 0xFF
	}

	blockSize := rsync.OptimalBlockSizeForBaseLength(uint64(len(base)))

	report("signature", len(base), func() {
		_ = rsync.Calculate(base, rsync.SignatureOptions{BlockSize: blockSize, CryptoHashSize: 8})
	})

	sig := rsync.Calculate(base, rsync.SignatureOptions{BlockSize: blockSize, CryptoHashSize: 8})
	idx := sig.Index()

	var delta []byte
	report("diff", len(target), func() {
		d, err := rsync.DiffBytes(idx, target)
		if err != nil {
			fatal(err)
		}
		delta = d
	})

	report("patch", len(delta), func() {
		var out bytes.Buffer
		if err := rsync.Apply(base, delta, &out); err != nil {
			fatal(err)
		}
	})

	return nil
}

// report runs fn once, timing it, and prints a humanized throughput line.
func report(name string, inputBytes int, fn func()) {
	start := time.Now()
	fn()
	elapsed := time.Since(start)

	bytesPerSecond := float64(inputBytes) / elapsed.Seconds()
	fmt.Printf(
		"%-10s %10s in %8s (%s/s)\n",
		name,
		humanize.Bytes(uint64(inputBytes)),
		elapsed.Round(time.Millisecond),
		humanize.Bytes(uint64(bytesPerSecond)),
	)
}

var benchCommand = &cobra.Command{
	Use:          "bench",
	Short:        "Run a throughput benchmark over a synthetic in-memory buffer",
	RunE:         benchMain,
	SilenceUsage: true,
}
