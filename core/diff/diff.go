// Package diff compares a pulled product set against the last committed
// snapshot and derives change events.
//
// The comparison is identity-indexed: one pass over the union of both key
// sets, never a pairwise scan. A product with several simultaneous
// differences emits one event per kind so consumers can filter kinds
// independently.
package diff

import (
	"math"
	"sort"
	"strconv"
	"time"

	"catalog-sync/core/catalog"
)

// Options tunes diff behavior.
type Options struct {
	// PriceEpsilon is the delta below which a price difference is noise,
	// in currency units.
	PriceEpsilon float64

	// Scope limits removal detection to the named categories. Products in
	// the previous snapshot outside the scope are ignored entirely: during
	// a partial pull their absence means "page failed", not "removed".
	// Nil or empty means the full category space.
	Scope []string

	// PulledAt stamps the emitted events.
	PulledAt time.Time
}

// Diff classifies the differences between the previous snapshot and the
// currently pulled product set. Events are returned sorted by product id
// then kind, so a cycle emits a given change exactly once and in a stable
// order.
func Diff(previous *catalog.Snapshot, current map[string]catalog.Product, opts Options) []catalog.ChangeEvent {
	var prior map[string]catalog.Product
	if previous != nil {
		prior = previous.Products
	}

	inScope := scopeSet(opts.Scope)
	var events []catalog.ChangeEvent

	for id, cur := range current {
		prev, existed := prior[id]
		if !existed {
			events = append(events, catalog.ChangeEvent{
				ProductID: id,
				Kind:      catalog.ChangeNew,
				After:     cur.Name,
				PulledAt:  opts.PulledAt,
			})
			continue
		}

		if prev.Available != cur.Available {
			events = append(events, catalog.ChangeEvent{
				ProductID: id,
				Kind:      catalog.ChangeAvailability,
				Before:    strconv.FormatBool(prev.Available),
				After:     strconv.FormatBool(cur.Available),
				PulledAt:  opts.PulledAt,
			})
		}

		if math.Abs(prev.Price-cur.Price) > opts.PriceEpsilon {
			events = append(events, catalog.ChangeEvent{
				ProductID: id,
				Kind:      catalog.ChangePrice,
				Before:    strconv.FormatFloat(prev.Price, 'f', 2, 64),
				After:     strconv.FormatFloat(cur.Price, 'f', 2, 64),
				PulledAt:  opts.PulledAt,
			})
		}
	}

	for id, prev := range prior {
		if _, stillThere := current[id]; stillThere {
			continue
		}
		if inScope != nil {
			if _, ok := inScope[prev.Category]; !ok {
				continue
			}
		}
		events = append(events, catalog.ChangeEvent{
			ProductID: id,
			Kind:      catalog.ChangeRemoved,
			Before:    prev.Name,
			PulledAt:  opts.PulledAt,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].ProductID != events[j].ProductID {
			return events[i].ProductID < events[j].ProductID
		}
		return events[i].Kind < events[j].Kind
	})
	return events
}

func scopeSet(scope []string) map[string]struct{} {
	if len(scope) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(scope))
	for _, c := range scope {
		set[c] = struct{}{}
	}
	return set
}
