package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/intercase/internal/config"
	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/metrics"
	"github.com/roach88/intercase/internal/provider"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	MetricsTextfile string
}

// CheckResult is the outcome for one collection.
type CheckResult struct {
	Config      string            `json:"config"`
	Service     string            `json:"service,omitempty"`
	Cases       int               `json:"cases"`
	Augmented   int               `json:"augmented"`
	Pending     int               `json:"pending_updates"`
	Inserts     int               `json:"would_insert"`
	Updates     int               `json:"would_update"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
	Error       *CLIError         `json:"error,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [config...]",
		Short: "Validate cases and pending augmentation",
		Long: `Load case collections, the compact store and all pending update
documents, and reconcile them without writing anything.

Malformed documents, duplicate case conflicts and conflicting updates fail
the check. Orphan updates, duplicate cases and overrides are reported as
diagnostics. With no arguments the --config collection is checked; several
config files may be named and are checked concurrently.

Examples:
  intercase check
  intercase check users.yml billing.yml --metrics-textfile ./metrics/intercase.prom`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")

	return cmd
}

func runCheck(opts *CheckOptions, paths []string, cmd *cobra.Command) error {
	s, err := startSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if len(paths) == 0 {
		paths = []string{opts.Config}
	}

	var rec *metrics.Recorder
	if opts.MetricsTextfile != "" {
		rec = metrics.New()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]CheckResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			results[i] = checkCollection(ctx, s.logger, path, rec)
			return nil
		})
	}
	_ = g.Wait()

	if opts.MetricsTextfile != "" {
		if err := rec.WriteTextfile(opts.MetricsTextfile); err != nil {
			return s.formatter.Fail("failed to write metrics", err)
		}
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
		}
	}

	if opts.Format == "json" {
		if failed > 0 {
			_ = s.formatter.Error(ErrCodeGeneric, fmt.Sprintf("%d of %d collection(s) failed", failed, len(results)), results)
			return NewExitError(ExitFailure, "check failed")
		}
		return s.formatter.Success(results)
	}

	for _, r := range results {
		writeCheckResult(s.formatter.Writer, r)
	}
	if failed > 0 {
		return NewExitError(ExitFailure, "check failed")
	}
	return nil
}

// checkCollection loads and dry-run reconciles the collection of one config
// file. Errors are returned inside the result.
func checkCollection(ctx context.Context, logger *zap.Logger, path string, rec *metrics.Recorder) CheckResult {
	result := CheckResult{Config: path}
	fail := func(code, message string, err error) CheckResult {
		result.Error = &CLIError{Code: code, Message: fmt.Sprintf("%s: %v", message, err)}
		if d, ok := diag.AsDiagnostic(err); ok {
			result.Error.Details = d
		}
		return result
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fail(ErrCodeConfig, "failed to load config", err)
	}
	result.Service = cfg.Service

	p, err := provider.New(cfg,
		provider.WithLogger(logger.With(zap.String("service", cfg.Service))),
		provider.WithMetrics(rec),
	)
	if err != nil {
		code, _ := classify(err)
		return fail(code, "failed to create provider", err)
	}
	seq, set, err := p.Cases()
	if err != nil {
		code, _ := classify(err)
		return fail(code, "failed to load cases", err)
	}
	result.Cases = set.Len()
	result.Diagnostics = append(result.Diagnostics, set.Diagnostics()...)
	for entry := range seq {
		if entry.Extra != nil {
			result.Augmented++
		}
	}

	commit, err := p.Commit(ctx, provider.CommitOptions{DryRun: true})
	if err != nil {
		code, _ := classify(err)
		return fail(code, "failed to reconcile updates", err)
	}
	result.Pending = len(commit.Sources)
	result.Inserts = len(commit.Report.Inserted)
	result.Updates = len(commit.Report.Updated)
	result.Diagnostics = append(result.Diagnostics, commit.Report.Diagnostics...)
	return result
}

func writeCheckResult(w io.Writer, r CheckResult) {
	name := r.Service
	if name == "" {
		name = r.Config
	}
	if r.Error != nil {
		fmt.Fprintf(w, "✗ %s\n", name)
		fmt.Fprintf(w, "Error [%s]: %s\n", r.Error.Code, r.Error.Message)
		return
	}
	fmt.Fprintf(w, "✓ %s: %d case(s), %d augmented\n", name, r.Cases, r.Augmented)
	if r.Pending > 0 {
		fmt.Fprintf(w, "  %d pending update document(s): %d insert(s), %d update(s)\n", r.Pending, r.Inserts, r.Updates)
	}
	writeDiagnostics(w, r.Diagnostics)
}
