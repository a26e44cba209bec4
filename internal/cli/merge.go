package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/intercase/internal/merge"
)

// MergeSummary is the merge command output.
type MergeSummary struct {
	Main     string   `json:"main"`
	Appended []string `json:"appended"`
	Removed  []string `json:"removed"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Fold extension case documents into the main document",
		Long: `Append every case from the extension folder <interfaces>/<service>/
to the main case document, sorted by identifier, then remove the extension
documents.

The collection is loaded and checked first; a malformed or conflicting
collection is never rewritten. Existing content of the main document is
kept byte for byte.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(rootOpts, cmd)
		},
	}

	return cmd
}

func runMerge(opts *RootOptions, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.provider(nil)
	if err != nil {
		return s.formatter.Fail("failed to create provider", err)
	}

	result, err := merge.Merge(p.Loader(), p.Codec(), s.cfg.Interfaces, s.cfg.Service)
	if err != nil {
		return s.formatter.Fail("merge failed", err)
	}

	summary := MergeSummary{
		Main:     result.Main,
		Appended: append([]string{}, result.Appended...),
		Removed:  append([]string{}, result.Removed...),
	}
	return s.formatter.Result(summary, func(w io.Writer) {
		if len(summary.Removed) == 0 {
			fmt.Fprintln(w, "No extension documents to merge")
			return
		}
		fmt.Fprintf(w, "✓ Merged %d extension document(s) into %s: %d case(s) appended\n",
			len(summary.Removed), summary.Main, len(summary.Appended))
		for _, path := range summary.Removed {
			s.formatter.VerboseLog("  removed %s", path)
		}
	})
}
