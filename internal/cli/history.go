package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/intercase/internal/ir"
	"github.com/roach88/intercase/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryCommit is one commit in history output.
type HistoryCommit struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	CommittedAt time.Time `json:"committed_at"`
	StoreHash   string    `json:"store_hash"`
	Inserted    int       `json:"inserted"`
	Updated     int       `json:"updated"`
	Unchanged   int       `json:"unchanged"`
	Orphans     int       `json:"orphans"`
	Sources     []string  `json:"sources,omitempty"`
}

// HistoryChange is one recorded change of an identifier.
type HistoryChange struct {
	CommitID string         `json:"commit_id"`
	Seq      int64          `json:"seq"`
	Action   journal.Action `json:"action"`
	Prior    ir.IRObject    `json:"prior,omitempty"`
	Value    ir.IRObject    `json:"value"`
	Source   string         `json:"source"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [identifier]",
		Short: "Show recorded commits",
		Long: `Show commits recorded in the journal, newest first.

With an identifier, show every recorded change to that case's
augmentation instead, oldest first. Requires "journal" in the config.

Examples:
  intercase history --limit 5
  intercase history 52d116e1fae40065f993ab834173ff9a3f774cf8daccb0099f6b960b1f6a134a`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of commits (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if s.cfg.Journal == "" {
		_ = s.formatter.Error(ErrCodeConfig, "no journal configured", nil)
		return NewExitError(ExitCommandError, "no journal configured")
	}
	j, err := s.openJournal()
	if err != nil {
		return s.formatter.Fail("failed to open journal", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if len(args) == 1 {
		return historyOf(ctx, s, j, args[0])
	}

	commits, err := j.List(ctx, s.cfg.Service, opts.Limit)
	if err != nil {
		return s.formatter.Fail("failed to list commits", err)
	}
	out := make([]HistoryCommit, 0, len(commits))
	for _, c := range commits {
		out = append(out, HistoryCommit{
			ID:          c.ID,
			Seq:         c.Seq,
			CommittedAt: c.CommittedAt,
			StoreHash:   c.StoreHash,
			Inserted:    c.Inserted,
			Updated:     c.Updated,
			Unchanged:   c.Unchanged,
			Orphans:     c.Orphans,
			Sources:     c.Sources,
		})
	}

	return s.formatter.Result(out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintf(w, "No commits recorded for %s\n", s.cfg.Service)
			return
		}
		for _, c := range out {
			fmt.Fprintf(w, "%4d  %s  %s  +%d ~%d =%d orphans:%d\n",
				c.Seq, c.CommittedAt.Format(time.RFC3339), c.ID,
				c.Inserted, c.Updated, c.Unchanged, c.Orphans)
		}
	})
}

func historyOf(ctx context.Context, s *session, j *journal.Journal, id string) error {
	if !ir.IsID(id) {
		_ = s.formatter.Error(ErrCodeInput, fmt.Sprintf("%q is not an identifier", id), nil)
		return NewExitError(ExitCommandError, "invalid identifier")
	}

	entries, err := j.History(ctx, id)
	if err != nil {
		return s.formatter.Fail("failed to read history", err)
	}
	out := make([]HistoryChange, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryChange{
			CommitID: e.CommitID,
			Seq:      e.Seq,
			Action:   e.Action,
			Prior:    e.Prior,
			Value:    e.Value,
			Source:   e.Source,
		})
	}

	return s.formatter.Result(out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintf(w, "No changes recorded for %s\n", id)
			return
		}
		for _, c := range out {
			value, _ := c.Value.MarshalJSON()
			fmt.Fprintf(w, "%4d  %-6s  %s  %s\n", c.Seq, c.Action, value, c.Source)
		}
	})
}
