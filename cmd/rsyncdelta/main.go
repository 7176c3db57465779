// Command rsyncdelta exposes pkg/rsync's signature/diff/patch operations as
// a file-oriented CLI, giving the domain-stack dependencies (cobra, pflag,
// color, go-humanize, uuid, yaml) a concrete home outside the core library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mutagen-io/fastrsync/pkg/logging"
)

// version is the CLI's reported version string.
const version = "0.1.0"

func rootMain(command *cobra.Command, _ []string) {
	if rootConfiguration.version {
		fmt.Println(version)
		return
	}
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:           "rsyncdelta",
	Short:         "rsyncdelta computes and applies librsync-compatible binary deltas",
	Run:           rootMain,
	SilenceErrors: true,
}

var rootConfiguration struct {
	help    bool
	version bool
	debug   bool
}

func init() {
	flags := rootCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")

	rootCommand.PersistentFlags().BoolVar(&rootConfiguration.debug, "debug", false, "Enable debug logging")

	cobra.EnableCommandSorting = false
	cobra.MousetrapHelpText = ""

	rootCommand.AddCommand(
		signatureCommand,
		diffCommand,
		patchCommand,
		benchCommand,
	)
}

func main() {
	cobra.OnInitialize(func() {
		logging.DebugEnabled = rootConfiguration.debug
	})
	if err := rootCommand.Execute(); err != nil {
		logging.RootLogger.Error(err)
		os.Exit(1)
	}
}
