package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mutagen-io/fastrsync/pkg/logging"
	"github.com/mutagen-io/fastrsync/pkg/rsync"
)

var patchLogger = logging.RootLogger.Sublogger("patch")

func patchMain(_ *cobra.Command, arguments []string) error {
	if len(arguments) != 3 {
		return errors.New("invalid number of arguments (expected base, delta, and output paths)")
	}
	basePath, deltaPath, outputPath := arguments[0], arguments[1], arguments[2]

	cfg, err := loadConfiguration(patchConfiguration.config)
	if err != nil {
		return err
	}
	maxOutputSize := cfg.MaxOutputSize
	if patchConfiguration.maxOutputSize != 0 {
		maxOutputSize = patchConfiguration.maxOutputSize
	}
	if maxOutputSize != 0 {
		patchLogger.Debugf("limiting output to %d bytes", maxOutputSize)
	}

	base, err := os.ReadFile(basePath)
	if err != nil {
		return errors.Wrap(err, "unable to read base file")
	}
	delta, err := os.ReadFile(deltaPath)
	if err != nil {
		return errors.Wrap(err, "unable to read delta file")
	}

	var out bytes.Buffer
	if maxOutputSize == 0 {
		err = rsync.Apply(base, delta, &out)
	} else {
		err = rsync.ApplyLimited(base, delta, &out, maxOutputSize)
	}
	if err != nil {
		return errors.Wrap(err, "unable to apply delta")
	}

	if err := writeFileAtomically(outputPath, out.Bytes()); err != nil {
		return errors.Wrap(err, "unable to write output file")
	}

	fmt.Printf("Wrote %s to %s\n", humanize.Bytes(uint64(out.Len())), outputPath)
	return nil
}

var patchCommand = &cobra.Command{
	Use:          "patch <base> <delta> <output>",
	Short:        "Apply a delta to a base file",
	RunE:         patchMain,
	SilenceUsage: true,
}

var patchConfiguration struct {
	help          bool
	config        string
	maxOutputSize uint64
}

func init() {
	flags := patchCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&patchConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVar(&patchConfiguration.config, "config", "", "Path to a YAML defaults file")
	flags.Uint64Var(&patchConfiguration.maxOutputSize, "max-output-size", 0, "Reject deltas that would produce more than this many bytes of output (0 falls back to the configured default, or no limit)")
}
