package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/intercase/internal/atomicfile"
	"github.com/roach88/intercase/internal/config"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Interfaces string
	Service    string
	Force      bool
}

// InitResult describes the files init created.
type InitResult struct {
	Config  string   `json:"config"`
	Created []string `json:"created,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a starter config for one case collection.

The config names the interfaces directory and the service whose cases it
holds, and puts the compact store under augmentation/<service>.yml. An
empty main case document is created if none exists.

Examples:
  intercase init --service users
  intercase init --interfaces api/cases --service billing -c billing.yml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Interfaces, "interfaces", "interfaces", "directory holding case collections")
	cmd.Flags().StringVar(&opts.Service, "service", "", "collection name (required)")
	_ = cmd.MarkFlagRequired("service")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.Config); err == nil && !opts.Force {
		_ = formatter.Error(ErrCodeInput, fmt.Sprintf("config %s already exists (use --force to overwrite)", opts.Config), nil)
		return NewExitError(ExitCommandError, "config exists")
	}

	cfg := config.Starter(opts.Interfaces, opts.Service)
	data, err := cfg.Render()
	if err != nil {
		return formatter.Fail("failed to render config", err)
	}

	// Validate what a later Load will see.
	dir, err := filepath.Abs(filepath.Dir(opts.Config))
	if err != nil {
		return formatter.Fail("failed to resolve config path", err)
	}
	parsed, err := config.Parse(data, dir, nil)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return formatter.Fail("failed to create config directory", err)
	}
	if err := atomicfile.WriteFile(opts.Config, data); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to write config", err)
	}

	result := InitResult{Config: opts.Config}
	mainDoc := filepath.Join(parsed.Interfaces, parsed.Service+parsed.Extension)
	if _, err := os.Stat(mainDoc); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(mainDoc), 0o755); err != nil {
			return formatter.Fail("failed to create interfaces directory", err)
		}
		if err := os.WriteFile(mainDoc, []byte("[]\n"), 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write case document", err)
		}
		result.Created = append(result.Created, mainDoc)
	}

	return formatter.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Wrote %s\n", opts.Config)
		for _, path := range result.Created {
			fmt.Fprintf(w, "  created %s\n", path)
		}
	})
}
