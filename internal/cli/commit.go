package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/provider"
)

// CommitCmdOptions holds flags for the commit command.
type CommitCmdOptions struct {
	*RootOptions
	KeepUpdates bool
	DryRun      bool
}

// CommitSummary is the commit command output.
type CommitSummary struct {
	Store       string            `json:"store"`
	Sources     []string          `json:"sources"`
	Inserted    []string          `json:"inserted"`
	Updated     []string          `json:"updated"`
	Unchanged   int               `json:"unchanged"`
	Written     bool              `json:"written"`
	Removed     []string          `json:"removed,omitempty"`
	CommitID    string            `json:"commit_id,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommitCmdOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Reconcile update documents into the compact store",
		Long: `Fold every update document into the compact store.

New identifiers are inserted, equal values are left alone and differing
values replace the stored ones (reported as overrides). Two update
documents giving one case different values is a conflict; nothing is
written then. Update documents are removed after a successful save unless
--keep-updates is given. With a journal configured, each commit is recorded.

Examples:
  intercase commit
  intercase commit --dry-run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.KeepUpdates, "keep-updates", false, "do not remove committed update documents")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without writing")

	return cmd
}

func runCommit(opts *CommitCmdOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.provider(nil)
	if err != nil {
		return s.formatter.Fail("failed to create provider", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := p.Commit(ctx, provider.CommitOptions{
		KeepUpdates: opts.KeepUpdates,
		DryRun:      opts.DryRun,
	})
	if err != nil {
		return s.formatter.Fail("commit failed", err)
	}

	summary := CommitSummary{
		Store:       s.cfg.Augmentation.Store,
		Sources:     result.Sources,
		Inserted:    []string{},
		Updated:     []string{},
		Unchanged:   len(result.Report.Unchanged),
		Written:     result.Written,
		Removed:     result.Removed,
		Diagnostics: result.Report.Diagnostics,
	}
	for _, c := range result.Report.Inserted {
		summary.Inserted = append(summary.Inserted, c.ID)
	}
	for _, c := range result.Report.Updated {
		summary.Updated = append(summary.Updated, c.ID)
	}
	if result.Commit != nil {
		summary.CommitID = result.Commit.ID
	}

	return s.formatter.Result(summary, func(w io.Writer) {
		if len(summary.Sources) == 0 {
			fmt.Fprintln(w, "No update documents to commit")
			return
		}
		verb := "Committed"
		if opts.DryRun {
			verb = "Would commit"
		}
		fmt.Fprintf(w, "✓ %s %d update document(s): %d inserted, %d updated, %d unchanged\n",
			verb, len(summary.Sources), len(summary.Inserted), len(summary.Updated), summary.Unchanged)
		writeDiagnostics(w, summary.Diagnostics)
		if summary.CommitID != "" {
			fmt.Fprintf(w, "  journal commit %s\n", summary.CommitID)
		}
	})
}
