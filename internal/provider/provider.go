// Package provider joins cases with their augmentation and stages new
// augmentation for later reconciliation.
//
// A Provider is the composition point used by a test harness:
//
//	p, _ := provider.New(cfg)
//	seq, _, err := p.Cases()
//	for entry := range seq {
//	    err := p.Execute(ctx, entry, runCase)
//	    ...
//	}
//	p.Commit(ctx, provider.CommitOptions{})
//
// Execution never writes the compact store. Staged extras go to a per-run
// update document and reach the store only through Commit.
package provider

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roach88/intercase/internal/augment"
	"github.com/roach88/intercase/internal/cases"
	"github.com/roach88/intercase/internal/codec"
	"github.com/roach88/intercase/internal/config"
	"github.com/roach88/intercase/internal/ir"
	"github.com/roach88/intercase/internal/journal"
	"github.com/roach88/intercase/internal/metrics"
)

// CommitRecorder persists commit records. *journal.Journal implements it.
type CommitRecorder interface {
	Record(ctx context.Context, c journal.Commit) (journal.Commit, error)
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics recorder. Default records nothing.
func WithMetrics(r *metrics.Recorder) Option {
	return func(p *Provider) {
		p.metrics = r
	}
}

// WithJournal records every commit that consumed update documents.
func WithJournal(j CommitRecorder) Option {
	return func(p *Provider) {
		p.journal = j
	}
}

// WithClock replaces time.Now for commit timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// WithRunID fixes the run identifier used to name the staging document.
// Default is a fresh UUIDv7.
func WithRunID(id string) Option {
	return func(p *Provider) {
		p.runID = id
	}
}

// WithCodec shares a document codec, and its parse cache, with the caller.
func WithCodec(c *codec.Codec) Option {
	return func(p *Provider) {
		p.codec = c
	}
}

// Provider serves the cases of one collection.
type Provider struct {
	cfg     *config.Config
	codec   *codec.Codec
	loader  *cases.Loader
	logger  *zap.Logger
	metrics *metrics.Recorder
	journal CommitRecorder
	now     func() time.Time
	runID   string

	mu     sync.Mutex
	staged map[string]ir.IRObject
}

// New creates a Provider for the collection described by cfg.
func New(cfg *config.Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p := &Provider{
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
		staged: make(map[string]ir.IRObject),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
		p.runID = id.String()
	}
	if p.codec == nil {
		c, err := codec.New(cfg.CodecOptions())
		if err != nil {
			return nil, err
		}
		p.codec = c
	}

	loader, err := cases.NewLoader(p.codec,
		cases.WithLogger(p.logger),
		cases.WithSelection(cfg.Identify),
		cases.WithIgnoreFields(cfg.Cases.IgnoreFields...),
		cases.WithExtension(cfg.Extension),
	)
	if err != nil {
		return nil, err
	}
	p.loader = loader
	return p, nil
}

// Config returns the configuration the provider was built with.
func (p *Provider) Config() *config.Config {
	return p.cfg
}

// Codec returns the document codec.
func (p *Provider) Codec() *codec.Codec {
	return p.codec
}

// Loader returns the case loader.
func (p *Provider) Loader() *cases.Loader {
	return p.loader
}

// RunID returns the identifier of this provider run.
func (p *Provider) RunID() string {
	return p.runID
}

// StagingPath is the update document this run stages into. It is named
// after the compact store so only commits to that store pick it up.
func (p *Provider) StagingPath() string {
	name := fmt.Sprintf("%s.%s%s", p.cfg.StoreBase(), p.runID, augment.UpdateSuffix)
	return filepath.Join(p.cfg.Augmentation.Staging, name)
}

// Entry is a case joined with its stored augmentation.
type Entry struct {
	cases.Case

	// Extra is the stored augmentation, nil when the case has none.
	Extra ir.IRObject
}

// Augmented returns the case fields with the extra fields added. Keys the
// case already declares keep the case's value.
func (e Entry) Augmented() ir.IRObject {
	out := ir.CloneObject(e.Fields)
	if out == nil {
		out = ir.IRObject{}
	}
	for k, v := range e.Extra {
		if _, ok := out[k]; !ok {
			out[k] = ir.Clone(v)
		}
	}
	return out
}

// Cases reads the collection and the compact store and returns the joined
// entries in case order. Every call reads storage again, so edits made
// between runs are observed. All load errors are returned here, before any
// entry is yielded.
//
// The returned sequence iterates the snapshot read by this call. Ranging
// over it again yields the same entries; call Cases again to see changes.
func (p *Provider) Cases() (iter.Seq[Entry], *cases.Set, error) {
	start := p.now()

	set, err := p.loader.Load(p.cfg.Interfaces, p.cfg.Service)
	if err != nil {
		return nil, nil, err
	}
	store, err := augment.LoadStore(p.codec, p.cfg.Augmentation.Store)
	if err != nil {
		return nil, nil, err
	}

	p.metrics.ObserveLoad(p.cfg.Service, set.Len(), len(set.Diagnostics()))
	p.metrics.ObserveDuration(p.cfg.Service, "load", p.now().Sub(start))
	p.logger.Debug("cases loaded",
		zap.String("service", p.cfg.Service),
		zap.Int("cases", set.Len()),
		zap.Int("augmented", len(store)))

	snapshot := set.Cases()
	seq := func(yield func(Entry) bool) {
		for _, c := range snapshot {
			e := Entry{Case: c}
			if extra, ok := store.Lookup(c.ID); ok {
				e.Extra = ir.CloneObject(extra)
			}
			if !yield(e) {
				return
			}
		}
	}
	return seq, set, nil
}
