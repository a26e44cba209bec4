package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/intercase/internal/augment"
	"github.com/roach88/intercase/internal/codec"
	"github.com/roach88/intercase/internal/config"
	"github.com/roach88/intercase/internal/ir"
)

// IDResult is the id command output.
type IDResult struct {
	ID string `json:"id"`
}

// NewIDCommand creates the id command.
func NewIDCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Print the identifier of a request",
		Long: `Read one request mapping from stdin and print its identifier.

A whole case entry (a mapping with a "request" key) is accepted too. The
identify.include/exclude selection of the config file applies when the
config file exists; otherwise the full request is hashed.

Examples:
  echo '{method: GET, path: /x}' | intercase id
  printf 'request: {method: GET, path: /x}\nresponse: {status: 200}\n' | intercase id`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runID(rootOpts, cmd)
		},
	}

	return cmd
}

func runID(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	var (
		sel       ir.Selection
		codecOpts codec.Options
	)
	cfg, err := config.Load(opts.Config)
	switch {
	case err == nil:
		sel = cfg.Identify
		codecOpts = cfg.CodecOptions()
	case errors.Is(err, fs.ErrNotExist):
		formatter.VerboseLog("No config at %s, hashing the full request", opts.Config)
	default:
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	c, err := codec.New(codecOpts)
	if err != nil {
		return formatter.Fail("failed to create codec", err)
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return formatter.Fail("failed to read stdin", err)
	}
	docs, err := c.Parse("<stdin>", data)
	if err != nil {
		return formatter.Fail("failed to parse request", err)
	}

	var request ir.IRObject
	for _, doc := range docs {
		if obj, ok := doc.Root.(ir.IRObject); ok {
			request = obj
			break
		}
	}
	if request == nil {
		_ = formatter.Error(ErrCodeInput, "stdin must hold a request mapping", nil)
		return NewExitError(ExitCommandError, "no request")
	}
	if inner, ok := request[augment.KeyRequest].(ir.IRObject); ok {
		request = inner
	}

	id, err := ir.RequestID(request, sel)
	if err != nil {
		return formatter.Fail("failed to compute identifier", err)
	}

	return formatter.Result(IDResult{ID: id}, func(w io.Writer) {
		fmt.Fprintln(w, id)
	})
}
