package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/intercase/internal/config"
	"github.com/roach88/intercase/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the intercase CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "intercase",
		Short: "intercase - shared interface test cases",
		Long: `Correlate interface test cases between consumer and provider suites.

Cases are request/response pairs shared by both sides. Provider-only data
needed to run a case is kept apart, keyed by a content hash of the request,
and reconciled from update documents into a compact store.`,
		Version:      ir.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", config.DefaultFile, "config file path")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewEnumerateCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewCommitCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewExtendCommand(opts))
	cmd.AddCommand(NewIDCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
