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

var diffLogger = logging.RootLogger.Sublogger("diff")

func diffMain(_ *cobra.Command, arguments []string) error {
	if len(arguments) != 3 {
		return errors.New("invalid number of arguments (expected signature, target, and output paths)")
	}
	signaturePath, targetPath, outputPath := arguments[0], arguments[1], arguments[2]

	signatureData, err := os.ReadFile(signaturePath)
	if err != nil {
		return errors.Wrap(err, "unable to read signature file")
	}
	sig, err := rsync.Deserialize(signatureData)
	if err != nil {
		return errors.Wrap(err, "unable to parse signature")
	}
	diffLogger.Debugf("loaded signature with %d blocks of %d bytes", sig.BlockCount(), sig.BlockSize)

	target, err := os.ReadFile(targetPath)
	if err != nil {
		return errors.Wrap(err, "unable to read target file")
	}

	var out bytes.Buffer
	if err := rsync.Diff(sig.Index(), target, &out); err != nil {
		return errors.Wrap(err, "unable to compute delta")
	}

	if err := writeFileAtomically(outputPath, out.Bytes()); err != nil {
		return errors.Wrap(err, "unable to write delta file")
	}

	fmt.Printf(
		"Wrote delta of %s (target) against signature to %s (%s)\n",
		humanize.Bytes(uint64(len(target))),
		outputPath,
		humanize.Bytes(uint64(out.Len())),
	)
	return nil
}

var diffCommand = &cobra.Command{
	Use:          "diff <signature> <target> <output>",
	Short:        "Compute a delta from a signature to a target file",
	RunE:         diffMain,
	SilenceUsage: true,
}
