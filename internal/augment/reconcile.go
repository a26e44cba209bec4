package augment

import (
	"github.com/roach88/intercase/internal/diag"
	"github.com/roach88/intercase/internal/ir"
)

// Change is an insert or update applied to the store.
type Change struct {
	ID string

	// Prior is the replaced value, nil for inserts.
	Prior ir.IRObject

	Value  ir.IRObject
	Source diag.Location
}

// Report describes what a reconciliation did.
type Report struct {
	Inserted  []Change
	Updated   []Change
	Unchanged []string

	// Diagnostics holds ORPHAN_UPDATE and AUGMENTATION_OVERRIDE records.
	Diagnostics []diag.Diagnostic
}

// Changed reports whether the resulting store differs from the input.
func (r *Report) Changed() bool {
	return len(r.Inserted) > 0 || len(r.Updated) > 0
}

// Orphans returns the identifiers of update entries that match no case.
func (r *Report) Orphans() []string {
	var ids []string
	for _, d := range r.Diagnostics {
		if d.Kind == diag.KindOrphanUpdate {
			ids = append(ids, d.Identifier)
		}
	}
	return ids
}

// Reconcile folds the update documents into store and returns the new store.
//
// Rules:
//   - entries without extra fields are ignored
//   - within one document the last entry for an identifier wins
//   - two documents giving one identifier different extras is CONFLICTING_UPDATES
//   - new identifiers are inserted, equal extras are left alone and
//     differing extras replace the stored value (reported as AUGMENTATION_OVERRIDE)
//   - when known is non-nil, identifiers outside it are reported as
//     ORPHAN_UPDATE and still applied
//
// The input store is never mutated.
func Reconcile(store CompactStore, updates []*UpdateDocument, known map[string]struct{}) (CompactStore, *Report, error) {
	var order []string
	chosen := make(map[string]UpdateEntry)

	for _, doc := range updates {
		// Last entry per identifier within the document.
		effective := make(map[string]UpdateEntry)
		var docOrder []string
		for _, e := range doc.Entries {
			if len(e.Extra) == 0 {
				continue
			}
			if _, seen := effective[e.ID]; !seen {
				docOrder = append(docOrder, e.ID)
			}
			effective[e.ID] = e
		}

		for _, id := range docOrder {
			e := effective[id]
			prev, seen := chosen[id]
			if !seen {
				chosen[id] = e
				order = append(order, id)
				continue
			}
			if !ir.Equal(prev.Extra, e.Extra) {
				return nil, nil, diag.NewConflictingUpdates(id, prev.Source, e.Source)
			}
		}
	}

	out := store.Clone()
	report := &Report{}

	for _, id := range order {
		e := chosen[id]

		if known != nil {
			if _, ok := known[id]; !ok {
				report.Diagnostics = append(report.Diagnostics, diag.Diagnostic{
					Kind:       diag.KindOrphanUpdate,
					Identifier: id,
					Locations:  []diag.Location{e.Source},
					Message:    "update entry matches no known case",
				})
			}
		}

		value := ir.CloneObject(e.Extra)
		prior, exists := out[id]
		switch {
		case !exists:
			out[id] = value
			report.Inserted = append(report.Inserted, Change{ID: id, Value: value, Source: e.Source})
		case ir.Equal(prior, value):
			report.Unchanged = append(report.Unchanged, id)
		default:
			out[id] = value
			report.Updated = append(report.Updated, Change{ID: id, Prior: prior, Value: value, Source: e.Source})
			report.Diagnostics = append(report.Diagnostics, diag.Diagnostic{
				Kind:       diag.KindAugmentationOverride,
				Identifier: id,
				Locations:  []diag.Location{e.Source},
				Message:    "update document replaced a different stored value",
			})
		}
	}
	return out, report, nil
}
