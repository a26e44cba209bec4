package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/intercase/internal/augment"
	"github.com/roach88/intercase/internal/ir"
)

// ExtendSummary is the extend command output.
type ExtendSummary struct {
	Path      string `json:"path"`
	Entries   int    `json:"entries"`
	Augmented int    `json:"augmented"`
}

// NewExtendCommand creates the extend command.
func NewExtendCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extend <base>",
		Short: "Copy cases into an update document for editing",
		Long: `Read case entries from stdin and append them, together with their
current augmentation, to <staging>/<store>.<base>.update.yml, where
<store> is the compact store's file name without extension.

The update document can then be edited by hand and committed. Entries
whose extra fields are left empty are ignored by commit.

Examples:
  intercase enumerate | intercase extend fixtures
  pbpaste | intercase extend users-edge-cases`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtend(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExtend(opts *RootOptions, base string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	base = strings.TrimSuffix(base, augment.UpdateSuffix)
	if base == "" || base == "." || base == ".." || strings.ContainsAny(base, `/\`) {
		_ = s.formatter.Error(ErrCodeInput, fmt.Sprintf("base %q must be a plain file name", base), nil)
		return NewExitError(ExitCommandError, "invalid base")
	}

	p, err := s.provider(nil)
	if err != nil {
		return s.formatter.Fail("failed to create provider", err)
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return s.formatter.Fail("failed to read stdin", err)
	}
	set, err := p.Loader().Read("<stdin>", data)
	if err != nil {
		return s.formatter.Fail("failed to read cases", err)
	}
	store, err := augment.LoadStore(p.Codec(), s.cfg.Augmentation.Store)
	if err != nil {
		return s.formatter.Fail("failed to load compact store", err)
	}

	path := filepath.Join(s.cfg.Augmentation.Staging, updateName(s.cfg.StoreBase(), base))
	summary := ExtendSummary{Path: path}

	entries := make([]ir.IRObject, 0, set.Len())
	for _, c := range set.Cases() {
		extra, ok := store.Lookup(c.ID)
		if ok {
			summary.Augmented++
		}
		entries = append(entries, augment.NewUpdateEntry(c.Request, c.Response, extra))
	}
	summary.Entries = len(entries)

	if err := augment.AppendUpdateEntries(p.Codec(), path, entries); err != nil {
		_ = s.formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write update document", err)
	}

	return s.formatter.Result(summary, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Appended %d case(s) to %s (%d with augmentation)\n",
			summary.Entries, summary.Path, summary.Augmented)
	})
}

// updateName names the update document for base so that it falls under the
// store's default update patterns.
func updateName(storeBase, base string) string {
	if base == storeBase || strings.HasPrefix(base, storeBase+".") {
		return base + augment.UpdateSuffix
	}
	return storeBase + "." + base + augment.UpdateSuffix
}
