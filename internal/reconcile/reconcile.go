// Package reconcile merges normalized snapshots into the authoritative cart
// state, applying the retention policy for items that drop out of the feed.
//
// Merge is a pure transition (previous state, snapshot) -> next state.
// Reconciler wraps it and owns the last known state; nothing else holds it.
package reconcile

import (
	"sort"
	"time"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/snapshot"
)

// DefaultRetentionWindow is how long a line that vanished from the feed stays
// visible at zero quantity before it is dropped.
const DefaultRetentionWindow = 5000 * time.Millisecond

// Outcome describes what a merge did beyond the resulting state.
type Outcome struct {
	// Refreshed lists names seen with a positive quantity in this snapshot.
	Refreshed []string

	// Retained lists names kept as zero-quantity placeholders.
	Retained []string

	// Expired lists names dropped because their window elapsed.
	Expired []string

	// DeclaredTotalUsed is true when the total came from the snapshot
	// rather than from summing subtotals.
	DeclaredTotalUsed bool
}

// Merge computes the next cart state from prev and snap.
//
// Positive-quantity candidates overwrite any previous line and are stamped
// with the snapshot time. Previous lines not refreshed stay as zeroed
// placeholders while snap time minus their last sighting is below window, and
// are dropped otherwise. A zero-quantity candidate counts as absent.
//
// The total is the declared total when the snapshot has at least one
// positive-quantity candidate and declared a total; otherwise it is the sum of
// positive subtotals.
func Merge(prev cart.State, snap snapshot.Snapshot, window time.Duration) (cart.State, Outcome) {
	now := snap.ReceivedAt
	var out Outcome

	merged := make(map[string]cart.LineItem, prev.Len()+len(snap.Candidates))
	for _, c := range snap.Candidates {
		if !c.Active() {
			continue
		}
		merged[c.Name] = c.Touched(now)
		out.Refreshed = append(out.Refreshed, c.Name)
	}

	for _, it := range prev.Lines() {
		if _, seen := merged[it.Name]; seen {
			continue
		}
		if now.Sub(it.LastSeenAt) < window {
			merged[it.Name] = it.Zeroed()
			out.Retained = append(out.Retained, it.Name)
			continue
		}
		out.Expired = append(out.Expired, it.Name)
	}

	items := make([]cart.LineItem, 0, len(merged))
	for _, it := range merged {
		items = append(items, it)
	}

	// A declared total is trusted only when some candidate had a positive
	// quantity; frames of zero-quantity lines fall back to the sum.
	total := cart.SumActive(items)
	if len(out.Refreshed) > 0 && snap.TotalDeclared {
		total = snap.DeclaredTotal
		out.DeclaredTotalUsed = true
	}

	sort.Strings(out.Refreshed)
	return cart.NewState(items, total), out
}

// Reconciler owns the live cart state and applies snapshots to it in order.
// Not safe for concurrent use; the session loop is its only caller.
type Reconciler struct {
	window time.Duration
	state  cart.State
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRetentionWindow overrides DefaultRetentionWindow.
func WithRetentionWindow(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.window = d
		}
	}
}

// New creates a Reconciler starting from an empty cart.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{window: DefaultRetentionWindow, state: cart.Empty()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Window returns the retention window in use.
func (r *Reconciler) Window() time.Duration {
	return r.window
}

// State returns the current cart state.
func (r *Reconciler) State() cart.State {
	return r.state
}

// Apply merges snap into the current state and replaces it.
func (r *Reconciler) Apply(snap snapshot.Snapshot) (cart.State, Outcome) {
	next, out := Merge(r.state, snap, r.window)
	r.state = next
	return next, out
}
