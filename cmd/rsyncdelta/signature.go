package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mutagen-io/fastrsync/pkg/logging"
	"github.com/mutagen-io/fastrsync/pkg/rsync"
	"github.com/mutagen-io/fastrsync/pkg/rsyncconfig"
)

var signatureLogger = logging.RootLogger.Sublogger("signature")

func signatureMain(_ *cobra.Command, arguments []string) error {
	if len(arguments) != 2 {
		return errors.New("invalid number of arguments (expected input and output paths)")
	}
	inputPath, outputPath := arguments[0], arguments[1]

	cfg, err := loadConfiguration(signatureConfiguration.config)
	if err != nil {
		return err
	}

	blockSize := cfg.BlockSize
	if signatureConfiguration.blockSize != 0 {
		blockSize = signatureConfiguration.blockSize
	}
	hashSize := cfg.CryptoHashSize
	if signatureConfiguration.cryptoHashSize != 0 {
		hashSize = signatureConfiguration.cryptoHashSize
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return errors.Wrap(err, "unable to read input file")
	}

	if blockSize == 0 {
		blockSize = rsync.OptimalBlockSizeForBaseLength(uint64(len(data)))
		signatureLogger.Debugf("selected optimal block size %d for input of length %d", blockSize, len(data))
	}

	sig := rsync.Calculate(data, rsync.SignatureOptions{
		BlockSize:      blockSize,
		CryptoHashSize: hashSize,
	})

	if err := writeFileAtomically(outputPath, sig.Serialized()); err != nil {
		return errors.Wrap(err, "unable to write signature file")
	}

	fmt.Printf(
		"Wrote signature for %s blocks of %s data (%s) to %s\n",
		humanize.Comma(int64(sig.BlockCount())),
		humanize.Bytes(uint64(len(data))),
		humanize.Bytes(uint64(len(sig.Serialized()))),
		outputPath,
	)
	return nil
}

var signatureCommand = &cobra.Command{
	Use:          "signature <input> <output>",
	Short:        "Compute the signature of a file",
	RunE:         signatureMain,
	SilenceUsage: true,
}

var signatureConfiguration struct {
	help           bool
	config         string
	blockSize      uint32
	cryptoHashSize uint32
}

func init() {
	flags := signatureCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&signatureConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVar(&signatureConfiguration.config, "config", "", "Path to a YAML defaults file")
	flags.Uint32Var(&signatureConfiguration.blockSize, "block-size", 0, "Signature block size in bytes (0 falls back to the configured default; a configured block_size of 0 selects an optimal size)")
	flags.Uint32Var(&signatureConfiguration.cryptoHashSize, "crypto-hash-size", 0, "Truncated MD4 digest length in bytes")
}

// loadConfiguration loads the YAML defaults file at path, falling back to
// rsyncconfig.Default if path is empty or the file doesn't exist.
func loadConfiguration(path string) (*rsyncconfig.Config, error) {
	if path == "" {
		return rsyncconfig.Default(), nil
	}
	cfg, err := rsyncconfig.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.RootLogger.Warn(errors.Errorf("configuration file %s not found, using defaults", path))
			return rsyncconfig.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}
