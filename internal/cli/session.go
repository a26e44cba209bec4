package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/intercase/internal/config"
	"github.com/roach88/intercase/internal/journal"
	"github.com/roach88/intercase/internal/logging"
	"github.com/roach88/intercase/internal/metrics"
	"github.com/roach88/intercase/internal/provider"
)

// session is what a command needs once the global flags are applied.
type session struct {
	opts      *RootOptions
	formatter *OutputFormatter
	logger    *zap.Logger
	cfg       *config.Config
	journal   *journal.Journal
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// startSession builds the logger. Failures are reported through the
// formatter and returned as an ExitError.
func startSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	formatter := newFormatter(opts, cmd)

	logger, err := logging.New(opts.Verbose, logging.Format(opts.Format))
	if err != nil {
		return nil, formatter.Fail("failed to initialize logger", err)
	}
	return &session{
		opts:      opts,
		formatter: formatter,
		logger:    logger,
	}, nil
}

// openSession is startSession plus loading the --config file.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	s, err := startSession(opts, cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := s.loadConfig(opts.Config)
	if err != nil {
		s.close()
		return nil, err
	}
	s.cfg = cfg
	return s, nil
}

func (s *session) loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		_ = s.formatter.Error(ErrCodeConfig, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	s.formatter.VerboseLog("Using config %s (service %s)", path, cfg.Service)
	return cfg, nil
}

// openJournal opens the configured journal once. It returns nil when no
// journal is configured.
func (s *session) openJournal() (*journal.Journal, error) {
	if s.journal != nil || s.cfg.Journal == "" {
		return s.journal, nil
	}
	j, err := journal.Open(s.cfg.Journal)
	if err != nil {
		return nil, err
	}
	s.journal = j
	return j, nil
}

// provider builds a provider for the session config, recording commits in
// the configured journal.
func (s *session) provider(rec *metrics.Recorder) (*provider.Provider, error) {
	cfg := s.cfg
	opts := []provider.Option{
		provider.WithLogger(s.logger.With(zap.String("service", cfg.Service))),
		provider.WithMetrics(rec),
	}
	j, err := s.openJournal()
	if err != nil {
		return nil, err
	}
	if j != nil {
		opts = append(opts, provider.WithJournal(j))
	}
	return provider.New(cfg, opts...)
}

func (s *session) close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("failed to close journal", zap.Error(err))
		}
	}
	_ = s.logger.Sync()
}
