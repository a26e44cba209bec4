package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/roach88/intercase/internal/augment"
	"github.com/roach88/intercase/internal/journal"
)

// CommitOptions controls Commit.
type CommitOptions struct {
	// KeepUpdates leaves the consumed update documents in place.
	KeepUpdates bool

	// DryRun reconciles and reports without writing anything.
	DryRun bool
}

// CommitResult describes a completed commit.
type CommitResult struct {
	Report *augment.Report

	// Store is the reconciled compact store.
	Store augment.CompactStore

	// Sources are the update documents that were reconciled.
	Sources []string

	// Written is true when the compact store file was replaced.
	Written bool

	// Removed lists the update documents deleted after the save.
	Removed []string

	// Commit is the journal record, nil without a journal or sources.
	Commit *journal.Commit
}

// Commit reconciles every update document into the compact store.
//
// The case set, the store and all update documents are loaded and checked
// before anything is written. The store is saved atomically, and only then
// are the update documents removed. A conflict leaves every file untouched.
func (p *Provider) Commit(ctx context.Context, opts CommitOptions) (*CommitResult, error) {
	start := p.now()
	service := p.cfg.Service

	set, err := p.loader.Load(p.cfg.Interfaces, service)
	if err != nil {
		return nil, err
	}
	store, err := augment.LoadStore(p.codec, p.cfg.Augmentation.Store)
	if err != nil {
		return nil, err
	}

	paths, err := augment.FindUpdateDocuments(p.cfg.Augmentation.Updates)
	if err != nil {
		return nil, err
	}
	docs := make([]*augment.UpdateDocument, 0, len(paths))
	for _, path := range paths {
		doc, err := augment.LoadUpdateDocument(p.codec, path, p.loader.Selection())
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	next, report, err := augment.Reconcile(store, docs, set.IDs())
	if err != nil {
		return nil, err
	}
	for _, d := range report.Diagnostics {
		p.logger.Warn(d.Message,
			zap.String("kind", string(d.Kind)),
			zap.String("id", d.Identifier))
	}

	result := &CommitResult{Report: report, Store: next, Sources: paths}
	if opts.DryRun {
		return result, nil
	}

	if report.Changed() {
		if err := augment.SaveStore(p.codec, p.cfg.Augmentation.Store, next); err != nil {
			return nil, err
		}
		result.Written = true
	}

	if !opts.KeepUpdates {
		for _, path := range paths {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return result, fmt.Errorf("remove update document: %w", err)
			}
			result.Removed = append(result.Removed, path)
		}
	}

	p.metrics.ObserveReconcile(service, len(report.Inserted), len(report.Updated), len(report.Unchanged), len(report.Orphans()))
	p.metrics.ObserveDuration(service, "commit", p.now().Sub(start))
	p.logger.Info("augmentation committed",
		zap.String("service", service),
		zap.Int("sources", len(paths)),
		zap.Int("inserted", len(report.Inserted)),
		zap.Int("updated", len(report.Updated)),
		zap.Int("unchanged", len(report.Unchanged)))

	if p.journal != nil && len(paths) > 0 {
		commit, err := p.record(ctx, result)
		if err != nil {
			return result, err
		}
		result.Commit = commit
	}
	return result, nil
}

func (p *Provider) record(ctx context.Context, result *CommitResult) (*journal.Commit, error) {
	rendered, err := augment.RenderStore(p.codec, result.Store)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(rendered)

	c := journal.Commit{
		Service:     p.cfg.Service,
		StorePath:   p.cfg.Augmentation.Store,
		StoreHash:   hex.EncodeToString(sum[:]),
		Inserted:    len(result.Report.Inserted),
		Updated:     len(result.Report.Updated),
		Unchanged:   len(result.Report.Unchanged),
		Orphans:     len(result.Report.Orphans()),
		CommittedAt: p.now().UTC(),
		Sources:     result.Sources,
	}
	for _, ch := range result.Report.Inserted {
		c.Entries = append(c.Entries, journal.Entry{
			Identifier: ch.ID,
			Action:     journal.ActionInsert,
			Value:      ch.Value,
			Source:     ch.Source.String(),
		})
	}
	for _, ch := range result.Report.Updated {
		c.Entries = append(c.Entries, journal.Entry{
			Identifier: ch.ID,
			Action:     journal.ActionUpdate,
			Prior:      ch.Prior,
			Value:      ch.Value,
			Source:     ch.Source.String(),
		})
	}

	recorded, err := p.journal.Record(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("journal commit: %w", err)
	}
	return &recorded, nil
}
