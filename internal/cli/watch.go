package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/intercase/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check the collection whenever its documents change",
		Long: `Watch the case documents, the extension folder, the compact store and
the staging directory, and run check after every change.

Runs until interrupted. Check failures are reported and watching
continues.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "quiet period before re-checking")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := s.cfg
	dirs := []string{
		cfg.Interfaces,
		filepath.Join(cfg.Interfaces, cfg.Service),
		filepath.Dir(cfg.Augmentation.Store),
		cfg.Augmentation.Staging,
	}
	for _, pattern := range cfg.Augmentation.Updates {
		dirs = append(dirs, filepath.Dir(pattern))
	}

	isDocument := watch.DocumentFilter([]string{cfg.Extension}, filepath.Join(cfg.Interfaces, cfg.Service))
	w, err := watch.New(dirs,
		watch.WithLogger(s.logger),
		watch.WithDebounce(opts.Debounce),
		watch.WithFilter(isDocument),
	)
	if err != nil {
		return s.formatter.Fail("failed to start watcher", err)
	}

	check := func(ctx context.Context) {
		result := checkCollection(ctx, s.logger, opts.Config, nil)
		if opts.Format == "json" {
			if result.Error != nil {
				_ = s.formatter.Error(result.Error.Code, result.Error.Message, result.Error.Details)
				return
			}
			_ = s.formatter.Success(result)
			return
		}
		writeCheckResult(s.formatter.Writer, result)
	}

	s.formatter.VerboseLog("Watching %d director(ies)", len(w.Dirs()))
	check(ctx)

	return w.Run(ctx, func(ctx context.Context, paths []string) error {
		s.logger.Debug("re-checking", zap.Strings("changed", paths))
		if opts.Format != "json" {
			fmt.Fprintf(s.formatter.Writer, "\n%d document(s) changed\n", len(paths))
		}
		check(ctx)
		return nil
	})
}
