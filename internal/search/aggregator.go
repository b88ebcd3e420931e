package search

import (
	"github.com/runger/flare/internal/source"
)

var _ Sink = (*Aggregator)(nil)

// Aggregator holds the result set of the current round. It is owned by the
// cooperative loop and must not be used from other goroutines.
type Aggregator struct {
	round    uint64
	query    Query
	items    []source.Item
	ranked   []source.Item
	onChange func(round uint64, items []source.Item)
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// OnChange registers fn to receive every new ranked snapshot.
func (a *Aggregator) OnChange(fn func(round uint64, items []source.Item)) {
	a.onChange = fn
}

// Begin discards the previous round and starts round with the immediate
// (synchronous) results.
func (a *Aggregator) Begin(round uint64, q Query, immediate []source.Item) {
	a.round = round
	a.query = q
	a.items = append([]source.Item(nil), immediate...)
	a.rerank()
}

// Apply appends items of round. It is a no-op returning false when round is
// not the current one.
func (a *Aggregator) Apply(round uint64, items []source.Item) bool {
	if round != a.round {
		return false
	}
	if len(items) == 0 {
		return true
	}
	a.items = append(a.items, items...)
	a.rerank()
	return true
}

// Round returns the current round.
func (a *Aggregator) Round() uint64 { return a.round }

// Query returns the query of the current round.
func (a *Aggregator) Query() Query { return a.query }

// Items returns the ranked results of the current round. The slice must not
// be modified.
func (a *Aggregator) Items() []source.Item { return a.ranked }

func (a *Aggregator) rerank() {
	a.ranked = Rank(a.query.Text, a.items)
	if a.onChange != nil {
		a.onChange(a.round, a.ranked)
	}
}
