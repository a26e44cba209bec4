package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/intercase/internal/augment"
	"github.com/roach88/intercase/internal/ir"
)

// EnumerateOptions holds flags for the enumerate command.
type EnumerateOptions struct {
	*RootOptions
	Output string // "yaml" | "jsonl"
}

// NewEnumerateCommand creates the enumerate command.
func NewEnumerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnumerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enumerate",
		Short: "Print every case with its augmentation",
		Long: `Print every case of the collection in load order, with stored
augmentation merged in. Fields the case declares win over stored ones.

Output is a YAML sequence (-o yaml) or one JSON object per line (-o jsonl).
Each JSON line is {"id": <identifier>, "case": <fields>}.

Examples:
  intercase enumerate
  intercase enumerate -o jsonl | jq .id`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnumerate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "yaml", "output encoding (yaml|jsonl)")

	return cmd
}

func runEnumerate(opts *EnumerateOptions, cmd *cobra.Command) error {
	if opts.Output != "yaml" && opts.Output != "jsonl" {
		formatter := newFormatter(opts.RootOptions, cmd)
		_ = formatter.Error(ErrCodeInput, fmt.Sprintf("invalid output %q: must be yaml or jsonl", opts.Output), nil)
		return NewExitError(ExitCommandError, "invalid output")
	}

	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	p, err := s.provider(nil)
	if err != nil {
		return s.formatter.Fail("failed to create provider", err)
	}
	seq, set, err := p.Cases()
	if err != nil {
		return s.formatter.Fail("failed to load cases", err)
	}
	s.formatter.VerboseLog("Loaded %d case(s) from %d file(s)", set.Len(), len(set.Files()))

	var entries []ir.IRObject
	var ids []string
	for entry := range seq {
		entries = append(entries, entry.Augmented())
		ids = append(ids, entry.ID)
	}

	w := bufio.NewWriter(cmd.OutOrStdout())

	if opts.Output == "yaml" {
		data := []byte("[]\n")
		if len(entries) > 0 {
			data, err = p.Codec().RenderEntries(entries, augment.KeyRequest, augment.KeyResponse)
			if err != nil {
				return s.formatter.Fail("failed to render cases", err)
			}
		}
		if _, err := w.Write(data); err != nil {
			return WrapExitError(ExitCommandError, "failed to write cases", err)
		}
		return flushOutput(w)
	}

	for i, entry := range entries {
		line := ir.IRObject{"id": ir.IRString(ids[i]), "case": entry}
		data, err := line.MarshalJSON()
		if err != nil {
			return s.formatter.Fail("failed to encode case", err)
		}
		if _, err := w.Write(data); err != nil {
			return WrapExitError(ExitCommandError, "failed to write cases", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return WrapExitError(ExitCommandError, "failed to write cases", err)
		}
	}
	return flushOutput(w)
}

func flushOutput(w *bufio.Writer) error {
	if err := w.Flush(); err != nil {
		return WrapExitError(ExitCommandError, "failed to write cases", err)
	}
	return nil
}
