package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/intercase/internal/augment"
	"github.com/roach88/intercase/internal/ir"
)

// ExecuteFunc runs one case. It returns the extra fields the run actually
// used, or an error when the case failed. A nil or empty extra stages
// nothing.
type ExecuteFunc func(ctx context.Context, entry Entry) (ir.IRObject, error)

// Execute runs fn for entry and stages the returned extra fields only when
// fn succeeds. The error from fn is returned unchanged.
func (p *Provider) Execute(ctx context.Context, entry Entry, fn ExecuteFunc) error {
	if p.logger.Core().Enabled(zap.DebugLevel) {
		if doc, err := p.codec.RenderEntries([]ir.IRObject{entry.Augmented()}, augment.KeyRequest, augment.KeyResponse); err == nil {
			p.logger.Debug("case tested", zap.String("id", entry.ID), zap.ByteString("case", doc))
		}
	}

	extra, err := fn(ctx, entry)
	if err != nil {
		return err
	}
	return p.StageUpdate(entry, extra)
}

// Wrap returns a function that calls Execute with fn.
func (p *Provider) Wrap(fn ExecuteFunc) func(ctx context.Context, entry Entry) error {
	return func(ctx context.Context, entry Entry) error {
		return p.Execute(ctx, entry, fn)
	}
}

// StageUpdate appends extra for entry to this run's update document.
// Nothing is written when extra is empty, equal to the stored value, or
// equal to what this run already staged for the case.
func (p *Provider) StageUpdate(entry Entry, extra ir.IRObject) error {
	extra = extra.Without(augment.KeyRequest, augment.KeyResponse)
	if len(extra) == 0 || ir.Equal(entry.Extra, extra) {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.staged[entry.ID]; ok && ir.Equal(prev, extra) {
		return nil
	}

	doc := augment.NewUpdateEntry(entry.Request, entry.Response, extra)
	path := p.StagingPath()
	if err := augment.AppendUpdateEntries(p.codec, path, []ir.IRObject{doc}); err != nil {
		return err
	}
	p.staged[entry.ID] = ir.CloneObject(extra)

	p.metrics.ObserveStaged(p.cfg.Service, 1)
	p.logger.Info("augmentation staged",
		zap.String("id", entry.ID),
		zap.String("path", path))
	return nil
}
